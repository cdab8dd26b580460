package ledger

import (
	"cmp"
	"iter"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitbaba/internal/models"
)

// Kind tags an activity item.
type Kind int

const (
	KindExpense Kind = iota + 1
	KindPayment
)

func (k Kind) String() string {
	switch k {
	case KindExpense:
		return "expense"
	case KindPayment:
		return "payment"
	default:
		return "unknown"
	}
}

// ActivityItem is one entry of the activity feed: either an expense or a payment.
// Exactly one of Expense and Payment is set, matching Kind.
type ActivityItem struct {
	Kind    Kind
	Expense *models.Expense
	Payment *models.Payment
}

// ID returns the underlying record ID.
func (a ActivityItem) ID() string {
	if a.Kind == KindPayment {
		return a.Payment.ID
	}
	return a.Expense.ID
}

// CreatedAt returns when the underlying record was created.
func (a ActivityItem) CreatedAt() time.Time {
	if a.Kind == KindPayment {
		return a.Payment.CreatedAt
	}
	return a.Expense.CreatedAt
}

// Amount returns the record amount.
func (a ActivityItem) Amount() decimal.Decimal {
	if a.Kind == KindPayment {
		return a.Payment.Amount
	}
	return a.Expense.Amount
}

// PayerID returns the member who paid.
func (a ActivityItem) PayerID() string {
	if a.Kind == KindPayment {
		return a.Payment.PayerID
	}
	return a.Expense.PayerID
}

// BuildActivityFeed merges expenses and payments into one sequence, most
// recent first. Equal timestamps are ordered by record ID, then by kind, so
// the order is deterministic for equal inputs.
//
// The sequence is lazy and restartable: each range over it sorts a fresh copy
// of the records and shares no cursor with other iterations.
func BuildActivityFeed(expenses []models.Expense, payments []models.Payment) iter.Seq[ActivityItem] {
	return func(yield func(ActivityItem) bool) {
		items := make([]ActivityItem, 0, len(expenses)+len(payments))
		for _, e := range expenses {
			items = append(items, ActivityItem{Kind: KindExpense, Expense: &e})
		}
		for _, p := range payments {
			items = append(items, ActivityItem{Kind: KindPayment, Payment: &p})
		}

		slices.SortFunc(items, compareActivity)

		for _, item := range items {
			if !yield(item) {
				return
			}
		}
	}
}

func compareActivity(a, b ActivityItem) int {
	if c := b.CreatedAt().Compare(a.CreatedAt()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.ID(), b.ID()); c != 0 {
		return c
	}
	return cmp.Compare(a.Kind, b.Kind)
}
