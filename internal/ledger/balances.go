package ledger

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitbaba/internal/models"
)

// Balances maps a member ID to the member's net position.
// Positive = owed money, Negative = owes money.
type Balances map[string]decimal.Decimal

// Transfer is a suggested payment that settles part of the outstanding debt.
type Transfer struct {
	From   string // Member who owes
	To     string // Member who is owed
	Amount decimal.Decimal
}

// noise is the smallest amount treated as a real debt.
var noise = decimal.New(1, -2)

// ComputeBalances computes every member's net balance.
//
// Algorithm:
//   - Every current member starts at zero
//   - For each expense: share = amount / len(members); the payer is credited
//     the full amount and every member, payer included, is debited the share
//   - For each payment: the payer is credited and the payee debited the amount
//
// Expenses are split across the members passed in, so a change of membership
// re-splits every historical expense. Parties that are no longer members keep
// their own entry so that the balances still sum to zero. An empty member list
// yields an empty mapping.
func ComputeBalances(members []models.Member, expenses []models.Expense, payments []models.Payment) Balances {
	ids := memberIDs(members)
	balances := make(Balances, len(ids))
	if len(ids) == 0 {
		return balances
	}
	for _, id := range ids {
		balances[id] = decimal.Zero
	}

	count := decimal.NewFromInt(int64(len(ids)))
	for _, exp := range expenses {
		share := exp.Amount.Div(count)
		balances[exp.PayerID] = balances[exp.PayerID].Add(exp.Amount)
		for _, id := range ids {
			balances[id] = balances[id].Sub(share)
		}
	}

	for _, pay := range payments {
		balances[pay.PayerID] = balances[pay.PayerID].Add(pay.Amount)
		balances[pay.PayeeID] = balances[pay.PayeeID].Sub(pay.Amount)
	}

	return balances
}

// Sum returns the total of all balances. It is zero up to division rounding.
func (b Balances) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, v := range b {
		total = total.Add(v)
	}
	return total
}

// Of returns the balance of one member, zero if unknown.
func (b Balances) Of(memberID string) decimal.Decimal {
	if v, ok := b[memberID]; ok {
		return v
	}
	return decimal.Zero
}

// SimplifyDebts suggests a short list of transfers that would settle every
// balance, matching the largest debtors with the largest creditors first.
func SimplifyDebts(balances Balances) []Transfer {
	type position struct {
		id     string
		amount decimal.Decimal
	}

	var creditors, debtors []position
	for id, bal := range balances {
		if bal.GreaterThan(noise) {
			creditors = append(creditors, position{id, bal})
		} else if bal.LessThan(noise.Neg()) {
			debtors = append(debtors, position{id, bal.Neg()}) // Make positive
		}
	}

	byAmount := func(a, b position) int {
		if c := b.amount.Cmp(a.amount); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	}
	slices.SortFunc(creditors, byAmount)
	slices.SortFunc(debtors, byAmount)

	var transfers []Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := decimal.Min(debtors[i].amount, creditors[j].amount)
		if amount.GreaterThan(noise) {
			transfers = append(transfers, Transfer{
				From:   debtors[i].id,
				To:     creditors[j].id,
				Amount: amount,
			})
		}

		debtors[i].amount = debtors[i].amount.Sub(amount)
		creditors[j].amount = creditors[j].amount.Sub(amount)

		// Move to next debtor/creditor if fully settled
		if debtors[i].amount.LessThan(noise) {
			i++
		}
		if creditors[j].amount.LessThan(noise) {
			j++
		}
	}

	return transfers
}

// memberIDs returns the distinct member IDs in input order.
func memberIDs(members []models.Member) []string {
	seen := make(map[string]bool, len(members))
	ids := make([]string, 0, len(members))
	for _, m := range members {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		ids = append(ids, m.ID)
	}
	return ids
}
