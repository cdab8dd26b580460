package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is an amount one member paid that is shared by the whole household.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// HouseholdID is the household this expense belongs to.
	HouseholdID string

	// Amount is the positive amount that was paid.
	Amount decimal.Decimal

	// Description says what the money was spent on (e.g., "Groceries").
	Description string

	// PayerID is the member who paid.
	PayerID string

	// CreatedAt is when the expense was recorded.
	CreatedAt time.Time
}
