package ingest

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/cast"
	"github.com/xuri/excelize/v2"
)

// Serial day numbers outside this range are not treated as Excel dates.
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465 // 9999-12-31
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"1/2/2006",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"2/1/2006",
	"02.01.2006",
	"1-2-06",
	"02-Jan-2006",
	"20060102",
	"02 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// CleanAmount converts a cell into a monetary amount. Blank cells are zero.
// Text has thousands separators and whitespace removed before parsing. A
// value that still cannot be parsed yields zero with ok=false.
func CleanAmount(v any) (amount float64, ok bool) {
	switch val := v.(type) {
	case nil:
		return 0, true
	case string:
		cleaned := strings.Map(func(r rune) rune {
			if r == ',' || unicode.IsSpace(r) {
				return -1
			}
			return r
		}, val)
		if cleaned == "" {
			return 0, true
		}
		v = cleaned
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseOrderDate converts a cell into a calendar date. Numbers are read as
// Excel serial dates first; numbers outside the serial range are tried
// against the text layouts, so 20250105 parses. ok is false when nothing
// matches.
func ParseOrderDate(v any) (time.Time, bool) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return val, !val.IsZero()
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return time.Time{}, false
		}
		if serial, err := strconv.ParseFloat(s, 64); err == nil {
			if t, ok := serialToTime(serial); ok {
				return t, true
			}
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	}
	serial, err := cast.ToFloat64E(v)
	if err != nil {
		return time.Time{}, false
	}
	if t, ok := serialToTime(serial); ok {
		return t, true
	}
	if serial == math.Trunc(serial) {
		return ParseOrderDate(strconv.FormatFloat(serial, 'f', 0, 64))
	}
	return time.Time{}, false
}

func serialToTime(serial float64) (time.Time, bool) {
	if math.IsNaN(serial) || serial < minExcelSerial || serial > maxExcelSerial {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// cellText renders a cell as trimmed text.
func cellText(v any) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(cast.ToString(v))
}

func blankCell(v any) bool {
	return cellText(v) == ""
}
