package service

import "time"

type SignUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName,omitempty"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by SignUp and SignIn. Token authorizes every
// other call as "Authorization: Bearer <token>".
type AuthResponse struct {
	Token    string       `json:"token"`
	User     UserView     `json:"user"`
	Snapshot SnapshotView `json:"snapshot"`
}

type SignOutRequest struct{}

type SignOutResponse struct{}

type CreateHouseholdRequest struct {
	Name string `json:"name"`
}

type JoinHouseholdRequest struct {
	InviteCode string `json:"inviteCode"`
}

// AddExpenseRequest records an expense. Amount is a decimal string.
type AddExpenseRequest struct {
	Amount      string `json:"amount"`
	Description string `json:"description"`
	PayerID     string `json:"payerId"`
}

// AddPaymentRequest records a settlement payment. Amount is a decimal string.
type AddPaymentRequest struct {
	PayerID string `json:"payerId"`
	PayeeID string `json:"payeeId"`
	Amount  string `json:"amount"`
}

type GetSnapshotRequest struct{}

type RefreshRequest struct{}

type SubscribeRequest struct{}

type SnapshotResponse struct {
	Snapshot SnapshotView `json:"snapshot"`
}

type UserView struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

type HouseholdView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	InviteCode string `json:"inviteCode"`
}

// MemberBalance is a member with their net position. Balance is exact;
// Display is rounded for presentation and unsigned, Status carries the sign.
type MemberBalance struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Balance     string `json:"balance"`
	Display     string `json:"display"`
	Status      string `json:"status"`
}

type ActivityView struct {
	Kind          string    `json:"kind"`
	ID            string    `json:"id"`
	Amount        string    `json:"amount"`
	DisplayAmount string    `json:"displayAmount"`
	Description   string    `json:"description,omitempty"`
	PayerID       string    `json:"payerId"`
	PayeeID       string    `json:"payeeId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type TransferView struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Amount  string `json:"amount"`
	Display string `json:"display"`
}

// SnapshotView is the presentation form of a session snapshot.
type SnapshotView struct {
	Phase       string          `json:"phase"`
	User        *UserView       `json:"user,omitempty"`
	Household   *HouseholdView  `json:"household,omitempty"`
	Members     []MemberBalance `json:"members"`
	Activity    []ActivityView  `json:"activity"`
	Settlements []TransferView  `json:"settlements"`
}
