package csvimport

import (
	"strings"

	"github.com/finance-coach/internal/types"
)

// ColumnAliases lists the header names a bank uses for each required column
type ColumnAliases struct {
	Date        []string
	Amount      []string
	Description []string
}

// BankLayout pairs a bank format with its aliases
type BankLayout struct {
	Format  types.BankFormat
	Aliases ColumnAliases
}

// KnownBanks are tried in order; the first full match wins
var KnownBanks = []BankLayout{
	{types.BankChase, ColumnAliases{
		Date:        []string{"Transaction Date", "Posting Date"},
		Amount:      []string{"Amount"},
		Description: []string{"Description"},
	}},
	{types.BankOfAmerica, ColumnAliases{
		Date:        []string{"Date", "Posted Date"},
		Amount:      []string{"Amount"},
		Description: []string{"Description", "Payee"},
	}},
	{types.BankWellsFargo, ColumnAliases{
		Date:        []string{"Date"},
		Amount:      []string{"Amount"},
		Description: []string{"Description"},
	}},
	{types.BankCapitalOne, ColumnAliases{
		Date:        []string{"Transaction Date", "Posted Date"},
		Amount:      []string{"Debit", "Credit", "Amount"},
		Description: []string{"Description"},
	}},
}

// GenericLayout is used when no known bank matches
var GenericLayout = BankLayout{types.BankGeneric, ColumnAliases{
	Date:        []string{"date", "transaction_date", "transaction date", "posted date"},
	Amount:      []string{"amount", "value"},
	Description: []string{"description", "memo", "payee"},
}}

// Columns holds the indices of the required fields
type Columns struct {
	Date        int
	Amount      int
	Description int
}

// MappingConfig names the header of each required column explicitly
type MappingConfig struct {
	DateColumn        string `json:"dateColumn"`
	AmountColumn      string `json:"amountColumn"`
	DescriptionColumn string `json:"descriptionColumn"`
}

// DetectBankFormat returns the first known layout whose three alias lists
// each match a header, or the generic layout.
func DetectBankFormat(headers []string) BankLayout {
	for _, bank := range KnownBanks {
		if indexOfAny(headers, bank.Aliases.Date) >= 0 &&
			indexOfAny(headers, bank.Aliases.Amount) >= 0 &&
			indexOfAny(headers, bank.Aliases.Description) >= 0 {
			return bank
		}
	}
	return GenericLayout
}

// FindColumns locates the required columns. missing names every column that
// could not be found.
func FindColumns(headers []string, aliases ColumnAliases) (cols Columns, missing []string) {
	cols = Columns{
		Date:        indexOfAny(headers, aliases.Date),
		Amount:      indexOfAny(headers, aliases.Amount),
		Description: indexOfAny(headers, aliases.Description),
	}
	if cols.Date < 0 {
		missing = append(missing, "date")
	}
	if cols.Amount < 0 {
		missing = append(missing, "amount")
	}
	if cols.Description < 0 {
		missing = append(missing, "description")
	}
	return cols, missing
}

// ResolveColumns applies the mapping when given, otherwise detects the bank
func ResolveColumns(headers []string, mapping *MappingConfig) (types.BankFormat, Columns, []string) {
	if mapping != nil {
		cols, missing := FindColumns(headers, ColumnAliases{
			Date:        []string{mapping.DateColumn},
			Amount:      []string{mapping.AmountColumn},
			Description: []string{mapping.DescriptionColumn},
		})
		return types.BankCustom, cols, missing
	}

	bank := DetectBankFormat(headers)
	cols, missing := FindColumns(headers, bank.Aliases)
	return bank.Format, cols, missing
}

// indexOfAny returns the index of the first header matching an alias,
// trying aliases in order. Matching ignores case and surrounding space.
func indexOfAny(headers []string, aliases []string) int {
	for _, alias := range aliases {
		want := strings.ToLower(strings.TrimSpace(alias))
		if want == "" {
			continue
		}
		for i, h := range headers {
			if strings.ToLower(strings.TrimSpace(h)) == want {
				return i
			}
		}
	}
	return -1
}
