package state

import (
	"github.com/mmynk/splitbaba/internal/ledger"
	"github.com/mmynk/splitbaba/internal/models"
)

// Phase is the session readiness state.
type Phase int

const (
	PhaseSignedOut Phase = iota
	PhaseNoHousehold
	PhaseInHousehold
)

func (p Phase) String() string {
	switch p {
	case PhaseNoHousehold:
		return "authenticated_no_household"
	case PhaseInHousehold:
		return "authenticated_in_household"
	default:
		return "unauthenticated"
	}
}

// Snapshot is an immutable view of the session state.
// Receivers must not modify the slices or maps it holds.
type Snapshot struct {
	Phase     Phase
	User      *models.User
	Household *models.Household
	Members   []models.Member
	Expenses  []models.Expense
	Payments  []models.Payment
	Balances  ledger.Balances
	Feed      []ledger.ActivityItem
}

func emptySnapshot() Snapshot {
	return Snapshot{Balances: ledger.Balances{}}
}

func phaseOf(s Snapshot) Phase {
	switch {
	case s.User == nil:
		return PhaseSignedOut
	case s.Household == nil:
		return PhaseNoHousehold
	default:
		return PhaseInHousehold
	}
}

// Member looks up a member of the loaded household.
func (s Snapshot) Member(id string) (models.Member, bool) {
	for _, m := range s.Members {
		if m.ID == id {
			return m, true
		}
	}
	return models.Member{}, false
}

// householdData is one fetch of the household-scoped collections.
type householdData struct {
	members  []models.Member
	expenses []models.Expense
	payments []models.Payment
}

func (d householdData) applyTo(s *Snapshot) {
	s.Members = d.members
	s.Expenses = d.expenses
	s.Payments = d.payments
}
