// Package csvimport turns bank statement exports into normalized
// transaction rows and filters out rows that were already imported.
package csvimport

import (
	"errors"
	"regexp"
	"strings"
)

// ErrEmptyCSV is returned when the content has no header or no data rows
var ErrEmptyCSV = errors.New("csv has no data rows")

var lineBreak = regexp.MustCompile(`\r?\n`)

// ParseCSV splits content into a header row and data rows. Lines are split
// before fields, so a quoted field cannot span lines. Blank lines are dropped.
func ParseCSV(content string) ([]string, [][]string, error) {
	var lines []string
	for _, line := range lineBreak.Split(content, -1) {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 2 {
		return nil, nil, ErrEmptyCSV
	}

	headers := SplitLine(lines[0])
	rows := make([][]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		rows = append(rows, SplitLine(line))
	}
	return headers, rows, nil
}

// SplitLine splits one line on commas, honoring double quotes and the ""
// escape inside quoted fields. Fields are trimmed.
func SplitLine(line string) []string {
	var (
		fields   []string
		field    strings.Builder
		inQuotes bool
	)

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '"' && inQuotes && i+1 < len(runes) && runes[i+1] == '"':
			field.WriteRune('"')
			i++
		case c == '"':
			inQuotes = !inQuotes
		case c == ',' && !inQuotes:
			fields = append(fields, strings.TrimSpace(field.String()))
			field.Reset()
		default:
			field.WriteRune(c)
		}
	}
	return append(fields, strings.TrimSpace(field.String()))
}
