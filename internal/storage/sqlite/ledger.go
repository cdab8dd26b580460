package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitbaba/internal/models"
	"github.com/mmynk/splitbaba/internal/realtime"
)

// CreateExpense persists a new expense to the database.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
	// Generate ID if not set
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expenses (id, household_id, amount, description, payer_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		expense.ID, expense.HouseholdID, expense.Amount.String(), expense.Description,
		expense.PayerID, expense.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	s.notify(ctx, expense.HouseholdID, realtime.TableExpenses)
	return nil
}

// FetchExpenses retrieves all expenses of a household, most recent first.
func (s *SQLiteStore) FetchExpenses(ctx context.Context, householdID string) ([]models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, household_id, amount, description, payer_id, created_at
		 FROM expenses WHERE household_id = ? ORDER BY created_at DESC, id`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		var (
			e         models.Expense
			amount    string
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.HouseholdID, &amount, &e.Description, &e.PayerID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("failed to parse amount of expense %s: %w", e.ID, err)
		}
		e.CreatedAt = time.Unix(0, createdAt).UTC()
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	return expenses, nil
}

// CreatePayment persists a new payment to the database.
func (s *SQLiteStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	// Generate ID if not set
	if payment.ID == "" {
		payment.ID = uuid.New().String()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payments (id, household_id, payer_id, payee_id, amount, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		payment.ID, payment.HouseholdID, payment.PayerID, payment.PayeeID,
		payment.Amount.String(), payment.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	s.notify(ctx, payment.HouseholdID, realtime.TablePayments)
	return nil
}

// FetchPayments retrieves all payments of a household, most recent first.
func (s *SQLiteStore) FetchPayments(ctx context.Context, householdID string) ([]models.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, household_id, payer_id, payee_id, amount, created_at
		 FROM payments WHERE household_id = ? ORDER BY created_at DESC, id`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var (
			p         models.Payment
			amount    string
			createdAt int64
		)
		if err := rows.Scan(&p.ID, &p.HouseholdID, &p.PayerID, &p.PayeeID, &amount, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("failed to parse amount of payment %s: %w", p.ID, err)
		}
		p.CreatedAt = time.Unix(0, createdAt).UTC()
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}

	return payments, nil
}
