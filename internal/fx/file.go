package fx

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RateFile is the on-disk representation of a rate table.
//
//	reporting: EUR
//	rates:
//	  GBP: 1.17
//	  USD: 0.92
type RateFile struct {
	Reporting string             `yaml:"reporting"`
	Rates     map[string]float64 `yaml:"rates"`
}

// LoadRateFile reads a YAML rate table. An empty path yields DefaultRates.
func LoadRateFile(path string) (*RateTable, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRates(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fx: open rate file: %w", err)
	}
	defer f.Close()
	return ParseRates(f)
}

// ParseRates decodes a YAML rate table from r.
func ParseRates(r io.Reader) (*RateTable, error) {
	var file RateFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("fx: decode rate file: %w", err)
	}
	if len(file.Rates) == 0 {
		return nil, fmt.Errorf("%w: rate file lists no currencies", ErrInvalidRate)
	}
	return NewRateTable(file.Reporting, file.Rates)
}
