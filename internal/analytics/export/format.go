package export

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	recordsPrefix  = "cost_analysis_"
	accountsPrefix = "account_summary_"
	stampLayout    = "20060102_150405"
)

var printer = message.NewPrinter(language.English)

// FormatMoney renders a reporting amount as €1,234.56.
func FormatMoney(value float64) string {
	rounded := decimal.NewFromFloat(value).Round(2).InexactFloat64()
	return printer.Sprintf("€%.2f", rounded)
}

// FormatPercent rounds to two decimals, then prints the rounded float with
// one decimal and a percent sign. The second step formats the binary value,
// so 24.25 prints as 24.2. A nil value renders empty.
func FormatPercent(value *float64) string {
	if value == nil {
		return ""
	}
	rounded := decimal.NewFromFloat(*value).Round(2).InexactFloat64()
	return strconv.FormatFloat(rounded, 'f', 1, 64) + "%"
}

// RecordsFilename names the filtered record export generated at t.
func RecordsFilename(t time.Time) string {
	return recordsPrefix + t.Format(stampLayout) + ".csv"
}

// AccountsFilename names the account summary export generated at t.
func AccountsFilename(t time.Time) string {
	return accountsPrefix + t.Format(stampLayout) + ".csv"
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
