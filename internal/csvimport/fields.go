package csvimport

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const isoDate = "2006-01-02"

var (
	isoPattern      = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	usSlashPattern  = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	usDashPattern   = regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4})$`)
	shortYearSlash  = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2})$`)
	currencySymbols = strings.NewReplacer("$", "", "€", "", "£", "", "¥", "", ",", "")
)

// fallbackLayouts are tried after the numeric patterns
var fallbackLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"Mon, 02 Jan 2006",
}

// ParseDate normalizes a statement date to YYYY-MM-DD. Two-digit years are
// read as 20YY. Dates that do not exist on the calendar are rejected.
func ParseDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	if m := isoPattern.FindStringSubmatch(s); m != nil {
		return calendarDate(m[1], m[2], m[3])
	}
	if m := usSlashPattern.FindStringSubmatch(s); m != nil {
		return calendarDate(m[3], m[1], m[2])
	}
	if m := usDashPattern.FindStringSubmatch(s); m != nil {
		return calendarDate(m[3], m[1], m[2])
	}
	if m := shortYearSlash.FindStringSubmatch(s); m != nil {
		return calendarDate("20"+m[3], m[1], m[2])
	}

	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(isoDate), true
		}
	}
	return "", false
}

func calendarDate(year, month, day string) (string, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return "", false
	}
	m, err := strconv.Atoi(month)
	if err != nil {
		return "", false
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return "", false
	}

	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return "", false
	}
	return t.Format(isoDate), true
}

// ParseAmount reads a statement amount. Currency symbols, thousands
// separators and whitespace are ignored; (x) is negative.
func ParseAmount(s string) (float64, bool) {
	cleaned := strings.Join(strings.Fields(currencySymbols.Replace(s)), "")

	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = cleaned[1 : len(cleaned)-1]
	}
	if cleaned == "" {
		return 0, false
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, false
	}
	if negative {
		d = d.Neg()
	}
	f, _ := d.Float64()
	return f, true
}
