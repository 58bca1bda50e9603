package analytics

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/costlens/internal/fx"
)

// ErrInvalidOptions indicates an Options value that failed validation.
var ErrInvalidOptions = errors.New("analytics: invalid options")

var optionsValidator = validator.New()

// Options collects the knobs shared by every view of the pipeline.
type Options struct {
	StatusFilter bool
	Rates        *fx.RateTable `validate:"required"`
	TopN         int           `validate:"min=1,max=1000"`
	TableN       int           `validate:"min=1,max=1000"`
	StatusTopN   int           `validate:"min=1,max=100"`
	MarginFloor  float64
}

// DefaultOptions mirrors the dashboard defaults: top 10 rankings, 15-row
// difference table, 8 statuses and a zero margin floor.
func DefaultOptions() Options {
	return Options{
		Rates:      fx.DefaultRates(),
		TopN:       10,
		TableN:     15,
		StatusTopN: 8,
	}
}

// Validate checks the option ranges.
func (o Options) Validate() error {
	if err := optionsValidator.Struct(o); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			fields := make([]string, 0, len(fieldErrs))
			for _, fieldErr := range fieldErrs {
				fields = append(fields, fmt.Sprintf("%s(%s)", fieldErr.Field(), fieldErr.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidOptions, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return nil
}
