package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/odyssey-erp/costlens/internal/fx"
)

// RatesCLI offers operational helpers for the currency rate table.
type RatesCLI struct {
	logger *slog.Logger
}

// NewRatesCLI constructs a new helper instance. A nil logger discards
// ingestion logs.
func NewRatesCLI(logger *slog.Logger) *RatesCLI {
	if logger == nil {
		logger = quietLogger()
	}
	return &RatesCLI{logger: logger}
}

// RatesValidateOptions defines available flags for the rates validate command.
type RatesValidateOptions struct {
	File         string
	RatesFile    string
	StatusFilter bool
	JSONOutput   bool
	Stdout       io.Writer
	Stderr       io.Writer
}

// RatesValidateSummary describes the JSON response for rates validate.
type RatesValidateSummary struct {
	OK        bool           `json:"ok"`
	Reporting string         `json:"reporting"`
	Checked   int            `json:"checked"`
	Gaps      []fx.Gap       `json:"gaps"`
	Available []RateQuote    `json:"available"`
	Observed  map[string]int `json:"observed"`
}

// RateQuote reports a configured conversion factor.
type RateQuote struct {
	Code string  `json:"code"`
	Rate float64 `json:"rate"`
}

// ValidateCommand lists currencies used by the file that the rate table
// cannot convert. It returns 10 when gaps exist.
func (c *RatesCLI) ValidateCommand(ctx context.Context, opts RatesValidateOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	rates, err := fx.LoadRateFile(opts.RatesFile)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "rates validate: %v\n", err)
		return 1
	}
	ds, err := loadSource(ctx, c.logger, opts.File, rates, opts.StatusFilter)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "rates validate: %v\n", err)
		return 1
	}
	observed := make(map[string]int, len(ds.Currencies))
	for _, cc := range ds.Currencies {
		observed[cc.Code] += cc.Rows
	}
	result := fx.Validate(rates, observed)

	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(buildRatesSummary(result, observed)); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "rates validate: encode json: %v\n", err)
			return 1
		}
	} else {
		renderRatesHuman(opts.Stdout, result)
	}
	if len(result.Gaps) > 0 {
		return 10
	}
	return 0
}

func buildRatesSummary(result fx.Result, observed map[string]int) RatesValidateSummary {
	available := make([]RateQuote, 0, len(result.Available))
	for code, rate := range result.Available {
		available = append(available, RateQuote{Code: code, Rate: rate})
	}
	sort.Slice(available, func(i, j int) bool {
		return available[i].Code < available[j].Code
	})
	return RatesValidateSummary{
		OK:        len(result.Gaps) == 0,
		Reporting: result.Reporting,
		Checked:   result.Checked,
		Gaps:      result.Gaps,
		Available: available,
		Observed:  observed,
	}
}

func renderRatesHuman(out io.Writer, result fx.Result) {
	_, _ = fmt.Fprintf(out, "Rate coverage into %s: %d currencies checked\n", result.Reporting, result.Checked)
	if len(result.Gaps) == 0 {
		_, _ = fmt.Fprintln(out, "All observed currencies have a rate.")
		return
	}
	_, _ = fmt.Fprintf(out, "%d gap(s) detected:\n", len(result.Gaps))
	for _, gap := range result.Gaps {
		_, _ = fmt.Fprintf(out, " - %s (%d rows passed through unconverted)\n", gap.Code, gap.Rows)
	}
}
