package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmynk/splitbaba/internal/auth"
	"github.com/mmynk/splitbaba/internal/metrics"
	"github.com/mmynk/splitbaba/internal/middleware"
	"github.com/mmynk/splitbaba/internal/models"
	"github.com/mmynk/splitbaba/internal/realtime"
	"github.com/mmynk/splitbaba/internal/storage/sqlite"
)

type testServer struct {
	client   *Client
	sessions *Sessions
}

// setupTestServer serves a LedgerService backed by a temporary SQLite database.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	broker := realtime.NewBroker()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"), sqlite.WithPublisher(broker))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	logger := slog.Default()
	jwtManager := auth.NewJWTManager(strings.Repeat("s", 32), time.Hour)
	sessions := NewSessions(store, broker, logger, metrics.New(prometheus.NewRegistry()))
	svc := NewLedgerService(auth.NewPasswordAuthenticator(store), jwtManager, sessions, "USD", logger)

	path, handler := svc.Handler(connect.WithInterceptors(
		middleware.RequireAuth(jwtManager, PublicProcedures...),
		middleware.LoggingInterceptor(logger),
	))
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		sessions.CloseAll()
		broker.Close()
		store.Close()
	})

	return &testServer{
		client:   NewClient(server.Client(), server.URL),
		sessions: sessions,
	}
}

func (s *testServer) signUp(t *testing.T, email, name string) *AuthResponse {
	t.Helper()
	resp, err := s.client.SignUp(context.Background(), connect.NewRequest(&SignUpRequest{
		Email:       email,
		Password:    "long enough password",
		DisplayName: name,
	}))
	if err != nil {
		t.Fatalf("SignUp(%s) failed: %v", email, err)
	}
	return resp.Msg
}

func memberByID(t *testing.T, view SnapshotView, id string) MemberBalance {
	t.Helper()
	for _, m := range view.Members {
		if m.ID == id {
			return m
		}
	}
	t.Fatalf("member %s not in snapshot", id)
	return MemberBalance{}
}

// setupHousehold signs up alice and bob and puts them in one household.
func setupHousehold(t *testing.T, s *testServer) (alice, bob *AuthResponse) {
	t.Helper()
	ctx := context.Background()

	alice = s.signUp(t, "alice@example.com", "Alice")
	created, err := s.client.CreateHousehold(ctx, Authorize(connect.NewRequest(&CreateHouseholdRequest{Name: "Apt 4B"}), alice.Token))
	if err != nil {
		t.Fatalf("CreateHousehold failed: %v", err)
	}
	code := created.Msg.Snapshot.Household.InviteCode

	bob = s.signUp(t, "bob@example.com", "Bob")
	joinReq := &JoinHouseholdRequest{InviteCode: "  " + strings.ToLower(code) + " "}
	if _, err := s.client.JoinHousehold(ctx, Authorize(connect.NewRequest(joinReq), bob.Token)); err != nil {
		t.Fatalf("JoinHousehold failed: %v", err)
	}
	return alice, bob
}

func TestSignUpStartsWithoutHousehold(t *testing.T) {
	s := setupTestServer(t)

	resp := s.signUp(t, "Carol@Example.com", "")

	if resp.Token == "" {
		t.Error("expected token in response")
	}
	if resp.User.Email != "carol@example.com" || resp.User.DisplayName != "carol" {
		t.Errorf("user = %+v, want normalized email and derived display name", resp.User)
	}
	if resp.Snapshot.Phase != "authenticated_no_household" {
		t.Errorf("phase = %q, want authenticated_no_household", resp.Snapshot.Phase)
	}
	if resp.Snapshot.Household != nil || len(resp.Snapshot.Members) != 0 {
		t.Errorf("expected no household data, got %+v", resp.Snapshot)
	}
}

func TestHouseholdLedger(t *testing.T) {
	s := setupTestServer(t)
	ctx := context.Background()
	alice, bob := setupHousehold(t, s)

	resp, err := s.client.AddExpense(ctx, Authorize(connect.NewRequest(&AddExpenseRequest{
		Amount:      "30",
		Description: "Groceries",
		PayerID:     alice.User.ID,
	}), alice.Token))
	if err != nil {
		t.Fatalf("AddExpense failed: %v", err)
	}

	view := resp.Msg.Snapshot
	if view.Phase != "authenticated_in_household" {
		t.Fatalf("phase = %q, want authenticated_in_household", view.Phase)
	}
	if len(view.Members) != 2 {
		t.Fatalf("members = %d, want 2", len(view.Members))
	}

	a := memberByID(t, view, alice.User.ID)
	if a.Balance != "15" || a.Display != "$15.00" || a.Status != "owed" {
		t.Errorf("alice = %+v, want 15 / $15.00 / owed", a)
	}
	b := memberByID(t, view, bob.User.ID)
	if b.Balance != "-15" || b.Display != "$15.00" || b.Status != "owes" {
		t.Errorf("bob = %+v, want -15 / $15.00 / owes", b)
	}

	if len(view.Settlements) != 1 {
		t.Fatalf("settlements = %+v, want one transfer", view.Settlements)
	}
	if got := view.Settlements[0]; got.From != bob.User.ID || got.To != alice.User.ID || got.Amount != "15" {
		t.Errorf("settlement = %+v, want bob pays alice 15", got)
	}

	// Bob settles up.
	resp, err = s.client.AddPayment(ctx, Authorize(connect.NewRequest(&AddPaymentRequest{
		PayerID: bob.User.ID,
		PayeeID: alice.User.ID,
		Amount:  "15.00",
	}), bob.Token))
	if err != nil {
		t.Fatalf("AddPayment failed: %v", err)
	}

	view = resp.Msg.Snapshot
	for _, m := range view.Members {
		if m.Status != "settled" {
			t.Errorf("member %s status = %q, want settled", m.DisplayName, m.Status)
		}
	}
	if len(view.Settlements) != 0 {
		t.Errorf("settlements = %+v, want none", view.Settlements)
	}
	if len(view.Activity) != 2 {
		t.Fatalf("activity = %d items, want 2", len(view.Activity))
	}
	if view.Activity[0].Kind != "payment" || view.Activity[0].PayeeID != alice.User.ID {
		t.Errorf("newest activity = %+v, want bob's payment", view.Activity[0])
	}
	if view.Activity[1].Kind != "expense" || view.Activity[1].Description != "Groceries" {
		t.Errorf("oldest activity = %+v, want the groceries expense", view.Activity[1])
	}
}

func TestErrorCodes(t *testing.T) {
	s := setupTestServer(t)
	ctx := context.Background()
	alice, bob := setupHousehold(t, s)
	loner := s.signUp(t, "loner@example.com", "")

	tests := []struct {
		name string
		call func() error
		want connect.Code
	}{
		{
			name: "missing token",
			call: func() error {
				_, err := s.client.GetSnapshot(ctx, connect.NewRequest(&GetSnapshotRequest{}))
				return err
			},
			want: connect.CodeUnauthenticated,
		},
		{
			name: "forged token",
			call: func() error {
				_, err := s.client.GetSnapshot(ctx, Authorize(connect.NewRequest(&GetSnapshotRequest{}), "forged"))
				return err
			},
			want: connect.CodeUnauthenticated,
		},
		{
			name: "wrong password",
			call: func() error {
				_, err := s.client.SignIn(ctx, connect.NewRequest(&SignInRequest{Email: "alice@example.com", Password: "nope nope nope"}))
				return err
			},
			want: connect.CodeUnauthenticated,
		},
		{
			name: "duplicate sign up",
			call: func() error {
				_, err := s.client.SignUp(ctx, connect.NewRequest(&SignUpRequest{Email: "bob@example.com", Password: "long enough password"}))
				return err
			},
			want: connect.CodeAlreadyExists,
		},
		{
			name: "weak password",
			call: func() error {
				_, err := s.client.SignUp(ctx, connect.NewRequest(&SignUpRequest{Email: "dan@example.com", Password: "short"}))
				return err
			},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "malformed amount",
			call: func() error {
				_, err := s.client.AddExpense(ctx, Authorize(connect.NewRequest(&AddExpenseRequest{
					Amount: "twelve", Description: "x", PayerID: alice.User.ID,
				}), alice.Token))
				return err
			},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "payment to self",
			call: func() error {
				_, err := s.client.AddPayment(ctx, Authorize(connect.NewRequest(&AddPaymentRequest{
					PayerID: bob.User.ID, PayeeID: bob.User.ID, Amount: "5",
				}), bob.Token))
				return err
			},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "expense without household",
			call: func() error {
				_, err := s.client.AddExpense(ctx, Authorize(connect.NewRequest(&AddExpenseRequest{
					Amount: "5", Description: "x", PayerID: loner.User.ID,
				}), loner.Token))
				return err
			},
			want: connect.CodeFailedPrecondition,
		},
		{
			name: "second household",
			call: func() error {
				_, err := s.client.CreateHousehold(ctx, Authorize(connect.NewRequest(&CreateHouseholdRequest{Name: "Another"}), alice.Token))
				return err
			},
			want: connect.CodeFailedPrecondition,
		},
		{
			name: "unknown invite code",
			call: func() error {
				_, err := s.client.JoinHousehold(ctx, Authorize(connect.NewRequest(&JoinHouseholdRequest{InviteCode: "HOUSE-0000"}), loner.Token))
				return err
			},
			want: connect.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if got := connect.CodeOf(err); got != tt.want {
				t.Errorf("code = %s, want %s (error: %v)", got, tt.want, err)
			}
		})
	}
}

func TestSubscribeStreamsHouseholdChanges(t *testing.T) {
	s := setupTestServer(t)
	alice, bob := setupHousehold(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := s.client.Subscribe(ctx, Authorize(connect.NewRequest(&SubscribeRequest{}), bob.Token))
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer stream.Close()

	if !stream.Receive() {
		t.Fatalf("no initial snapshot: %v", stream.Err())
	}
	if got := len(stream.Msg().Snapshot.Members); got != 2 {
		t.Fatalf("initial snapshot has %d members, want 2", got)
	}

	// Alice's write reaches bob's session through the change broker.
	if _, err := s.client.AddExpense(ctx, Authorize(connect.NewRequest(&AddExpenseRequest{
		Amount: "12.50", Description: "Internet", PayerID: alice.User.ID,
	}), alice.Token)); err != nil {
		t.Fatalf("AddExpense failed: %v", err)
	}

	for stream.Receive() {
		view := stream.Msg().Snapshot
		if len(view.Activity) == 0 {
			continue
		}
		if got := memberByID(t, view, bob.User.ID); got.Balance != "-6.25" {
			t.Errorf("bob balance = %s, want -6.25", got.Balance)
		}
		return
	}
	t.Fatalf("stream ended before the expense arrived: %v", stream.Err())
}

func TestSignOutEndsSubscription(t *testing.T) {
	s := setupTestServer(t)
	alice := s.signUp(t, "alice@example.com", "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := s.client.Subscribe(ctx, Authorize(connect.NewRequest(&SubscribeRequest{}), alice.Token))
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer stream.Close()
	if !stream.Receive() {
		t.Fatalf("no initial snapshot: %v", stream.Err())
	}

	if _, err := s.client.SignOut(ctx, Authorize(connect.NewRequest(&SignOutRequest{}), alice.Token)); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}

	var last SnapshotView
	for stream.Receive() {
		last = stream.Msg().Snapshot
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if last.Phase != "unauthenticated" || last.User != nil {
		t.Errorf("last snapshot = %+v, want signed out", last)
	}
}

func TestSessionRestoredFromToken(t *testing.T) {
	s := setupTestServer(t)
	ctx := context.Background()
	alice, _ := setupHousehold(t, s)

	if _, err := s.client.SignOut(ctx, Authorize(connect.NewRequest(&SignOutRequest{}), alice.Token)); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if got := s.sessions.Len(); got != 1 {
		t.Fatalf("open sessions = %d, want 1 (bob)", got)
	}

	resp, err := s.client.GetSnapshot(ctx, Authorize(connect.NewRequest(&GetSnapshotRequest{}), alice.Token))
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if resp.Msg.Snapshot.Phase != "authenticated_in_household" || len(resp.Msg.Snapshot.Members) != 2 {
		t.Errorf("restored snapshot = %+v, want alice back in her household", resp.Msg.Snapshot)
	}
	if got := s.sessions.Len(); got != 2 {
		t.Errorf("open sessions = %d, want 2", got)
	}
}

func TestConnectError(t *testing.T) {
	passthrough := connect.NewError(connect.CodePermissionDenied, errors.New("nope"))
	if got := connectError(passthrough); got != error(passthrough) {
		t.Errorf("connectError rewrapped an existing connect error: %v", got)
	}
	if got := connect.CodeOf(connectError(errors.New("disk on fire"))); got != connect.CodeInternal {
		t.Errorf("unknown error code = %s, want internal", got)
	}
	if got := connect.CodeOf(connectError(context.Canceled)); got != connect.CodeCanceled {
		t.Errorf("canceled code = %s, want canceled", got)
	}

	for _, err := range []error{auth.ErrTokenExpired, auth.ErrMissingToken, fmt.Errorf("%w: bad", auth.ErrInvalidToken)} {
		if got := connect.CodeOf(connectError(err)); got != connect.CodeUnauthenticated {
			t.Errorf("connectError(%v) code = %s, want unauthenticated", err, got)
		}
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	s := setupTestServer(t)
	user := s.signUp(t, "dana@example.com", "Dana")

	expired, err := auth.NewJWTManager(strings.Repeat("s", 32), -time.Minute).Generate(&models.User{
		ID:    user.User.ID,
		Email: user.User.Email,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	_, err = s.client.GetSnapshot(context.Background(), Authorize(connect.NewRequest(&GetSnapshotRequest{}), expired))
	if connect.CodeOf(err) != connect.CodeUnauthenticated {
		t.Fatalf("GetSnapshot code = %s, want unauthenticated", connect.CodeOf(err))
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Errorf("error %q does not say the token expired", err)
	}
}
