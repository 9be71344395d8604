// Package models provides data models for the finance coach services.
package models

import "time"

// FinancialProfile is the stored financial state a projection starts from
type FinancialProfile struct {
	UserID         string    `json:"userId" db:"user_id"`
	NetWorth       float64   `json:"netWorth" db:"net_worth"`
	Savings        float64   `json:"savings" db:"savings"`
	AnnualIncome   float64   `json:"annualIncome" db:"annual_income"`
	AnnualExpenses float64   `json:"annualExpenses" db:"annual_expenses"`
	Age            int       `json:"age" db:"age"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

// ConnectedAccount is a linked bank or investment account with its latest balance
type ConnectedAccount struct {
	ID             string    `json:"id" db:"id"`
	UserID         string    `json:"userId" db:"user_id"`
	Name           string    `json:"name" db:"name"`
	CurrentBalance float64   `json:"currentBalance" db:"current_balance"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}
