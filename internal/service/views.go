package service

import (
	"github.com/mmynk/splitbaba/internal/ledger"
	"github.com/mmynk/splitbaba/internal/models"
	"github.com/mmynk/splitbaba/internal/state"
)

func userView(u *models.User) UserView {
	return UserView{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName}
}

func householdView(h *models.Household) HouseholdView {
	return HouseholdView{ID: h.ID, Name: h.Name, InviteCode: h.InviteCode}
}

// snapshotView converts a snapshot for presentation, formatting amounts in
// currency.
func snapshotView(snap state.Snapshot, currency string) SnapshotView {
	view := SnapshotView{
		Phase:       snap.Phase.String(),
		Members:     make([]MemberBalance, 0, len(snap.Members)),
		Activity:    make([]ActivityView, 0, len(snap.Feed)),
		Settlements: []TransferView{},
	}
	if snap.User != nil {
		u := userView(snap.User)
		view.User = &u
	}
	if snap.Household != nil {
		h := householdView(snap.Household)
		view.Household = &h
	}

	for _, m := range snap.Members {
		balance := snap.Balances.Of(m.ID)
		view.Members = append(view.Members, MemberBalance{
			ID:          m.ID,
			DisplayName: m.DisplayName,
			Balance:     balance.String(),
			Display:     ledger.FormatAmount(balance, currency),
			Status:      ledger.StatusOf(balance).String(),
		})
	}

	for _, item := range snap.Feed {
		a := ActivityView{
			Kind:          item.Kind.String(),
			ID:            item.ID(),
			Amount:        item.Amount().String(),
			DisplayAmount: ledger.FormatAmount(item.Amount(), currency),
			PayerID:       item.PayerID(),
			CreatedAt:     item.CreatedAt(),
		}
		switch item.Kind {
		case ledger.KindExpense:
			a.Description = item.Expense.Description
		case ledger.KindPayment:
			a.PayeeID = item.Payment.PayeeID
		}
		view.Activity = append(view.Activity, a)
	}

	for _, t := range ledger.SimplifyDebts(snap.Balances) {
		view.Settlements = append(view.Settlements, TransferView{
			From:    t.From,
			To:      t.To,
			Amount:  t.Amount.String(),
			Display: ledger.FormatAmount(t.Amount, currency),
		})
	}
	return view
}
