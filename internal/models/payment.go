package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment represents a direct settlement between two household members.
type Payment struct {
	// ID is the unique identifier for the payment (UUID format).
	ID string

	// HouseholdID is the household this payment belongs to.
	HouseholdID string

	// PayerID is the member who handed over the money (debtor settling up).
	PayerID string

	// PayeeID is the member who received it (creditor being paid).
	PayeeID string

	// Amount is the positive amount transferred.
	Amount decimal.Decimal

	// CreatedAt is when the payment was recorded.
	CreatedAt time.Time
}
