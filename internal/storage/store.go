// Package storage provides abstractions for the backing data service.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/splitbaba/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInviteCode is returned when no household has the given invite code.
	ErrInvalidInviteCode = errors.New("invalid invite code")
)

// Ledger is the household-scoped record API the state store depends on.
// Fetches return records ordered by creation time, most recent first.
type Ledger interface {
	// FetchMembers lists the members of a household.
	FetchMembers(ctx context.Context, householdID string) ([]models.Member, error)

	// FetchExpenses lists the expenses of a household.
	FetchExpenses(ctx context.Context, householdID string) ([]models.Expense, error)

	// FetchPayments lists the payments of a household.
	FetchPayments(ctx context.Context, householdID string) ([]models.Payment, error)

	// CreateExpense persists a new expense.
	// The expense.ID and expense.CreatedAt fields are populated by the store when empty.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// CreatePayment persists a new payment.
	// The payment.ID and payment.CreatedAt fields are populated by the store when empty.
	CreatePayment(ctx context.Context, payment *models.Payment) error
}

// Households manages household membership.
type Households interface {
	// CreateHousehold creates a household with a fresh invite code and adds
	// the owner as its first member.
	CreateHousehold(ctx context.Context, name, ownerID string) (*models.Household, error)

	// JoinHousehold adds the user to the household with the given invite code.
	// Returns ErrInvalidInviteCode if no household matches.
	JoinHousehold(ctx context.Context, inviteCode, userID string) (*models.Household, error)

	// HouseholdForUser returns the household the user belongs to.
	// Returns nil and no error if the user has none.
	HouseholdForUser(ctx context.Context, userID string) (*models.Household, error)
}

// Users manages registered accounts.
type Users interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Store is the complete data service.
// This abstraction allows swapping storage backends (SQLite, hosted database, etc.)
// without changing the state store or the service layer.
type Store interface {
	Ledger
	Households
	Users

	// Close releases any resources held by the store.
	Close() error
}
