package csvimport

import (
	"fmt"

	"github.com/finance-coach/internal/types"
)

// HeaderOffset converts a zero-based data index to the line number a user
// sees in a spreadsheet: one for the header, one for one-based counting.
const HeaderOffset = 2

// Row is a parsed, normalized CSV line
type Row struct {
	Line        int
	Date        string
	Amount      float64
	Description string
	Hash        string
}

// Outcome is the result of normalizing every data row
type Outcome struct {
	Rows       []Row
	Errors     []types.RowError
	Duplicates int
}

// NormalizeRows parses every data row and drops rows already in seen. Rows
// that are kept are added to seen, so repeats within one file are caught too.
func NormalizeRows(rows [][]string, cols Columns, seen HashSet) Outcome {
	var out Outcome
	for i, fields := range rows {
		line := i + HeaderOffset

		rawDate := field(fields, cols.Date)
		date, ok := ParseDate(rawDate)
		if !ok {
			out.Errors = append(out.Errors, types.RowError{Row: line, Error: fmt.Sprintf("Invalid date: %q", rawDate)})
			continue
		}

		rawAmount := field(fields, cols.Amount)
		amount, ok := ParseAmount(rawAmount)
		if !ok {
			out.Errors = append(out.Errors, types.RowError{Row: line, Error: fmt.Sprintf("Invalid amount: %q", rawAmount)})
			continue
		}

		description := field(fields, cols.Description)
		if description == "" {
			out.Errors = append(out.Errors, types.RowError{Row: line, Error: "Missing description"})
			continue
		}

		hash := DedupHash(date, amount, description)
		if !seen.Add(hash) {
			out.Duplicates++
			continue
		}

		out.Rows = append(out.Rows, Row{
			Line:        line,
			Date:        date,
			Amount:      amount,
			Description: description,
			Hash:        hash,
		})
	}
	return out
}

func field(fields []string, idx int) string {
	if idx < 0 || idx >= len(fields) {
		return ""
	}
	return fields[idx]
}
