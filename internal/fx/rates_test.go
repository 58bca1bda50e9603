package fx

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestDefaultRatesConvert(t *testing.T) {
	table := DefaultRates()
	got, known := table.Convert(100, "GBP")
	if !known {
		t.Fatalf("expected GBP to be known")
	}
	if math.Abs(got-117) > 1e-9 {
		t.Fatalf("expected 117 got %v", got)
	}
	got, known = table.Convert(10, " usd ")
	if !known || math.Abs(got-9.2) > 1e-9 {
		t.Fatalf("expected 9.2 for usd, got %v (known=%v)", got, known)
	}
	if table.Reporting() != "EUR" {
		t.Fatalf("unexpected reporting currency %s", table.Reporting())
	}
}

func TestConvertUnknownPassesThrough(t *testing.T) {
	table := DefaultRates()
	got, known := table.Convert(42.5, "CHF")
	if known {
		t.Fatalf("expected CHF to be unknown")
	}
	if got != 42.5 {
		t.Fatalf("expected identity conversion, got %v", got)
	}
}

func TestConvertZeroShortCircuits(t *testing.T) {
	var table *RateTable
	got, known := table.Convert(0, "XYZ")
	if got != 0 || !known {
		t.Fatalf("zero should convert to zero without lookup, got %v known=%v", got, known)
	}
}

func TestNewRateTableRejectsInvalidFactors(t *testing.T) {
	cases := map[string]map[string]float64{
		"negative":  {"USD": -1},
		"zero":      {"USD": 0},
		"nan":       {"USD": math.NaN()},
		"reporting": {"EUR": 1.1},
		"blank":     {" ": 1},
	}
	for name, rates := range cases {
		if _, err := NewRateTable("EUR", rates); !errors.Is(err, ErrInvalidRate) {
			t.Fatalf("%s: expected ErrInvalidRate, got %v", name, err)
		}
	}
}

func TestNewRateTableAddsReporting(t *testing.T) {
	table, err := NewRateTable("chf", map[string]float64{"eur": 1.05})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if factor, ok := table.Lookup("CHF"); !ok || factor != 1.0 {
		t.Fatalf("expected reporting currency at 1.0, got %v ok=%v", factor, ok)
	}
	codes := table.Codes()
	if strings.Join(codes, ",") != "CHF,EUR" {
		t.Fatalf("unexpected codes %v", codes)
	}
	rates := table.Rates()
	rates["EUR"] = 99
	if factor, _ := table.Lookup("EUR"); factor != 1.05 {
		t.Fatalf("rate table must not be mutated through Rates copy")
	}
}

func TestParseRates(t *testing.T) {
	doc := "reporting: EUR\nrates:\n  gbp: 1.2\n  USD: 0.9\n"
	table, err := ParseRates(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ParseRates returned error: %v", err)
	}
	if factor, ok := table.Lookup("GBP"); !ok || factor != 1.2 {
		t.Fatalf("unexpected GBP factor %v", factor)
	}
	if _, err := ParseRates(strings.NewReader("reporting: EUR\n")); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("expected error for empty rate list, got %v", err)
	}
	if _, err := ParseRates(strings.NewReader("rates: [")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestLoadRateFileDefaults(t *testing.T) {
	table, err := LoadRateFile("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := table.Lookup("KRW"); !ok {
		t.Fatalf("expected default table to include KRW")
	}
	if _, err := LoadRateFile("/nonexistent/rates.yaml"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
