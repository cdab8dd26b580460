package ledger

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitbaba/internal/models"
)

var epsilon = decimal.New(1, -9)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func members(ids ...string) []models.Member {
	out := make([]models.Member, len(ids))
	for i, id := range ids {
		out[i] = models.Member{ID: id, DisplayName: id}
	}
	return out
}

func expense(id, payer, amount string) models.Expense {
	return models.Expense{ID: id, HouseholdID: "h1", PayerID: payer, Amount: d(amount), Description: id}
}

func payment(id, payer, payee, amount string) models.Payment {
	return models.Payment{ID: id, HouseholdID: "h1", PayerID: payer, PayeeID: payee, Amount: d(amount)}
}

func TestComputeBalances(t *testing.T) {
	tests := []struct {
		name     string
		members  []models.Member
		expenses []models.Expense
		payments []models.Payment
		want     map[string]string
	}{
		{
			name:     "empty household",
			members:  nil,
			expenses: []models.Expense{expense("e1", "A", "30")},
			payments: []models.Payment{payment("p1", "B", "A", "10")},
			want:     map[string]string{},
		},
		{
			name:    "no records",
			members: members("A", "B"),
			want:    map[string]string{"A": "0", "B": "0"},
		},
		{
			name:     "single expense equal split",
			members:  members("A", "B", "C"),
			expenses: []models.Expense{expense("e1", "A", "30")},
			want:     map[string]string{"A": "20", "B": "-10", "C": "-10"},
		},
		{
			name:     "payment cancels debt",
			members:  members("A", "B", "C"),
			expenses: []models.Expense{expense("e1", "A", "30")},
			payments: []models.Payment{payment("p1", "B", "A", "10")},
			want:     map[string]string{"A": "10", "B": "0", "C": "-10"},
		},
		{
			name:    "expenses by different payers offset",
			members: members("A", "B"),
			expenses: []models.Expense{
				expense("e1", "A", "40"),
				expense("e2", "B", "20"),
			},
			want: map[string]string{"A": "10", "B": "-10"},
		},
		{
			name:     "payment only",
			members:  members("A", "B"),
			payments: []models.Payment{payment("p1", "A", "B", "5.25")},
			want:     map[string]string{"A": "5.25", "B": "-5.25"},
		},
		{
			name:     "duplicate members counted once",
			members:  members("A", "B", "A"),
			expenses: []models.Expense{expense("e1", "A", "10")},
			want:     map[string]string{"A": "5", "B": "-5"},
		},
		{
			name:     "payer who left keeps an entry",
			members:  members("A", "B"),
			expenses: []models.Expense{expense("e1", "Z", "10")},
			want:     map[string]string{"A": "-5", "B": "-5", "Z": "10"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeBalances(tt.members, tt.expenses, tt.payments)
			if len(got) != len(tt.want) {
				t.Fatalf("ComputeBalances() returned %d entries, want %d: %v", len(got), len(tt.want), got)
			}
			for id, want := range tt.want {
				bal, ok := got[id]
				if !ok {
					t.Errorf("missing balance for %s", id)
					continue
				}
				if !bal.Equal(d(want)) {
					t.Errorf("%s balance = %s, want %s", id, bal, want)
				}
			}
		})
	}
}

func TestComputeBalances_Conservation(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for round := 0; round < 200; round++ {
		n := 1 + rng.IntN(7)
		ids := make([]string, n)
		for i := range ids {
			ids[i] = fmt.Sprintf("m%d", i)
		}

		var expenses []models.Expense
		numExpenses, numPayments := rng.IntN(20), rng.IntN(10)
		for i := 0; i < numExpenses; i++ {
			amount := decimal.New(int64(1+rng.IntN(100000)), -2)
			expenses = append(expenses, models.Expense{
				ID:      fmt.Sprintf("e%d", i),
				PayerID: ids[rng.IntN(n)],
				Amount:  amount,
			})
		}
		var payments []models.Payment
		for i := 0; i < numPayments; i++ {
			amount := decimal.New(int64(1+rng.IntN(50000)), -2)
			payments = append(payments, models.Payment{
				ID:      fmt.Sprintf("p%d", i),
				PayerID: ids[rng.IntN(n)],
				PayeeID: ids[rng.IntN(n)],
				Amount:  amount,
			})
		}

		balances := ComputeBalances(members(ids...), expenses, payments)
		if sum := balances.Sum(); sum.Abs().GreaterThan(epsilon) {
			t.Fatalf("round %d: balances sum to %s, want 0 (members=%d expenses=%d payments=%d)",
				round, sum, n, len(expenses), len(payments))
		}
	}
}

func TestComputeBalances_Idempotent(t *testing.T) {
	ms := members("A", "B", "C")
	expenses := []models.Expense{expense("e1", "A", "10"), expense("e2", "C", "7.77")}
	payments := []models.Payment{payment("p1", "B", "A", "3")}

	first := ComputeBalances(ms, expenses, payments)
	second := ComputeBalances(ms, expenses, payments)

	if len(first) != len(second) {
		t.Fatalf("entry count changed: %d vs %d", len(first), len(second))
	}
	for id, bal := range first {
		if !bal.Equal(second[id]) {
			t.Errorf("%s: first = %s, second = %s", id, bal, second[id])
		}
	}
	if !expenses[0].Amount.Equal(d("10")) || expenses[0].PayerID != "A" {
		t.Errorf("input expense was modified: %+v", expenses[0])
	}
}

func TestComputeBalances_ThirdsStayUnrounded(t *testing.T) {
	balances := ComputeBalances(members("A", "B", "C"), []models.Expense{expense("e1", "A", "10")}, nil)

	if balances["B"].Equal(d("-3.33")) {
		t.Errorf("share was rounded to cents: %s", balances["B"])
	}
	if sum := balances.Sum(); sum.Abs().GreaterThan(epsilon) {
		t.Errorf("sum = %s, want ~0", sum)
	}
}

func TestBalancesOf(t *testing.T) {
	b := Balances{"A": d("4")}
	if !b.Of("A").Equal(d("4")) {
		t.Errorf("Of(A) = %s, want 4", b.Of("A"))
	}
	if !b.Of("nobody").IsZero() {
		t.Errorf("Of(nobody) = %s, want 0", b.Of("nobody"))
	}
}

func TestSimplifyDebts(t *testing.T) {
	tests := []struct {
		name     string
		balances Balances
		want     []Transfer
	}{
		{
			name:     "all settled",
			balances: Balances{"A": d("0"), "B": d("0.004")},
			want:     nil,
		},
		{
			name:     "one creditor two debtors",
			balances: Balances{"A": d("20"), "B": d("-10"), "C": d("-10")},
			want: []Transfer{
				{From: "B", To: "A", Amount: d("10")},
				{From: "C", To: "A", Amount: d("10")},
			},
		},
		{
			name:     "largest debtor pays largest creditor first",
			balances: Balances{"A": d("30"), "B": d("5"), "C": d("-25"), "D": d("-10")},
			want: []Transfer{
				{From: "C", To: "A", Amount: d("25")},
				{From: "D", To: "A", Amount: d("5")},
				{From: "D", To: "B", Amount: d("5")},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SimplifyDebts(tt.balances)
			if len(got) != len(tt.want) {
				t.Fatalf("SimplifyDebts() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i].From != tt.want[i].From || got[i].To != tt.want[i].To || !got[i].Amount.Equal(tt.want[i].Amount) {
					t.Errorf("transfer %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSimplifyDebts_SettlesComputedBalances(t *testing.T) {
	ms := members("A", "B", "C", "D")
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	expenses := []models.Expense{
		{ID: "e1", PayerID: "A", Amount: d("100"), CreatedAt: base},
		{ID: "e2", PayerID: "B", Amount: d("40"), CreatedAt: base},
	}
	balances := ComputeBalances(ms, expenses, nil)

	var payments []models.Payment
	for i, tr := range SimplifyDebts(balances) {
		payments = append(payments, models.Payment{ID: fmt.Sprintf("p%d", i), PayerID: tr.From, PayeeID: tr.To, Amount: tr.Amount})
	}

	after := ComputeBalances(ms, expenses, payments)
	for id, bal := range after {
		if StatusOf(bal) != StatusSettled {
			t.Errorf("%s still has balance %s after suggested transfers", id, bal)
		}
	}
}
