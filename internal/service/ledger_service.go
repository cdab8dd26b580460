package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/splitbaba/internal/auth"
	"github.com/mmynk/splitbaba/internal/ledger"
	"github.com/mmynk/splitbaba/internal/middleware"
	"github.com/mmynk/splitbaba/internal/models"
	"github.com/mmynk/splitbaba/internal/state"
)

// LedgerServiceName is the fully-qualified name of the LedgerService.
const LedgerServiceName = "splitbaba.v1.LedgerService"

// Procedure paths of the LedgerService RPCs.
const (
	SignUpProcedure          = "/" + LedgerServiceName + "/SignUp"
	SignInProcedure          = "/" + LedgerServiceName + "/SignIn"
	SignOutProcedure         = "/" + LedgerServiceName + "/SignOut"
	CreateHouseholdProcedure = "/" + LedgerServiceName + "/CreateHousehold"
	JoinHouseholdProcedure   = "/" + LedgerServiceName + "/JoinHousehold"
	AddExpenseProcedure      = "/" + LedgerServiceName + "/AddExpense"
	AddPaymentProcedure      = "/" + LedgerServiceName + "/AddPayment"
	GetSnapshotProcedure     = "/" + LedgerServiceName + "/GetSnapshot"
	RefreshProcedure         = "/" + LedgerServiceName + "/Refresh"
	SubscribeProcedure       = "/" + LedgerServiceName + "/Subscribe"
)

// PublicProcedures can be called without a bearer token.
var PublicProcedures = []string{SignUpProcedure, SignInProcedure}

// LedgerService exposes the household ledger over Connect.
type LedgerService struct {
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	sessions      *Sessions
	currency      string
	logger        *slog.Logger
}

// NewLedgerService creates the service. Amounts are displayed in currency.
func NewLedgerService(authenticator auth.Authenticator, jwtManager *auth.JWTManager, sessions *Sessions, currency string, logger *slog.Logger) *LedgerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerService{
		authenticator: authenticator,
		jwtManager:    jwtManager,
		sessions:      sessions,
		currency:      currency,
		logger:        logger,
	}
}

// Handler returns the path prefix and handler serving every RPC of the
// service. The JSON codec is always installed; opts add interceptors and the like.
func (s *LedgerService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(SignUpProcedure, connect.NewUnaryHandler(SignUpProcedure, s.SignUp, opts...))
	mux.Handle(SignInProcedure, connect.NewUnaryHandler(SignInProcedure, s.SignIn, opts...))
	mux.Handle(SignOutProcedure, connect.NewUnaryHandler(SignOutProcedure, s.SignOut, opts...))
	mux.Handle(CreateHouseholdProcedure, connect.NewUnaryHandler(CreateHouseholdProcedure, s.CreateHousehold, opts...))
	mux.Handle(JoinHouseholdProcedure, connect.NewUnaryHandler(JoinHouseholdProcedure, s.JoinHousehold, opts...))
	mux.Handle(AddExpenseProcedure, connect.NewUnaryHandler(AddExpenseProcedure, s.AddExpense, opts...))
	mux.Handle(AddPaymentProcedure, connect.NewUnaryHandler(AddPaymentProcedure, s.AddPayment, opts...))
	mux.Handle(GetSnapshotProcedure, connect.NewUnaryHandler(GetSnapshotProcedure, s.GetSnapshot, opts...))
	mux.Handle(RefreshProcedure, connect.NewUnaryHandler(RefreshProcedure, s.Refresh, opts...))
	mux.Handle(SubscribeProcedure, connect.NewServerStreamHandler(SubscribeProcedure, s.Subscribe, opts...))
	return "/" + LedgerServiceName + "/", mux
}

// session returns the caller's State Store.
func (s *LedgerService) session(ctx context.Context) (*state.Store, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	store, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return nil, connectError(err)
	}
	return store, nil
}

func (s *LedgerService) snapshotResponse(store *state.Store) *connect.Response[SnapshotResponse] {
	return connect.NewResponse(&SnapshotResponse{Snapshot: snapshotView(store.Snapshot(), s.currency)})
}

// authenticated issues a session token for user and opens their session.
func (s *LedgerService) authenticated(ctx context.Context, user *models.User) (*connect.Response[AuthResponse], error) {
	token, err := s.jwtManager.Generate(user)
	if err != nil {
		s.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	store, err := s.sessions.Open(ctx, user)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&AuthResponse{
		Token:    token,
		User:     userView(user),
		Snapshot: snapshotView(store.Snapshot(), s.currency),
	}), nil
}

// SignUp registers an account and signs it in.
func (s *LedgerService) SignUp(ctx context.Context, req *connect.Request[SignUpRequest]) (*connect.Response[AuthResponse], error) {
	s.logger.Info("SignUp request received", "email", req.Msg.Email)

	user, err := s.authenticator.Register(ctx, req.Msg.Email, req.Msg.DisplayName, req.Msg.Password)
	if err != nil {
		s.logger.Warn("Registration failed", "email", req.Msg.Email, "error", err)
		return nil, connectError(err)
	}

	s.logger.Info("User registered", "user_id", user.ID)
	return s.authenticated(ctx, user)
}

// SignIn authenticates an account and opens its session.
func (s *LedgerService) SignIn(ctx context.Context, req *connect.Request[SignInRequest]) (*connect.Response[AuthResponse], error) {
	s.logger.Info("SignIn request received", "email", req.Msg.Email)

	user, err := s.authenticator.Authenticate(ctx, req.Msg.Email, req.Msg.Password)
	if err != nil {
		s.logger.Warn("Authentication failed", "email", req.Msg.Email, "error", err)
		return nil, connectError(err)
	}
	return s.authenticated(ctx, user)
}

// SignOut closes the caller's session.
func (s *LedgerService) SignOut(ctx context.Context, req *connect.Request[SignOutRequest]) (*connect.Response[SignOutResponse], error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	s.sessions.Close(userID)
	return connect.NewResponse(&SignOutResponse{}), nil
}

// CreateHousehold creates a household for the caller.
func (s *LedgerService) CreateHousehold(ctx context.Context, req *connect.Request[CreateHouseholdRequest]) (*connect.Response[SnapshotResponse], error) {
	store, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := store.CreateHousehold(ctx, req.Msg.Name); err != nil {
		return nil, connectError(err)
	}
	return s.snapshotResponse(store), nil
}

// JoinHousehold adds the caller to the household with the given invite code.
func (s *LedgerService) JoinHousehold(ctx context.Context, req *connect.Request[JoinHouseholdRequest]) (*connect.Response[SnapshotResponse], error) {
	store, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := store.JoinHousehold(ctx, req.Msg.InviteCode); err != nil {
		return nil, connectError(err)
	}
	return s.snapshotResponse(store), nil
}

// AddExpense records an expense in the caller's household.
func (s *LedgerService) AddExpense(ctx context.Context, req *connect.Request[AddExpenseRequest]) (*connect.Response[SnapshotResponse], error) {
	store, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	amount, err := ledger.ParseAmount(req.Msg.Amount)
	if err != nil {
		return nil, connectError(err)
	}
	if err := s.written(store.AddExpense(ctx, amount, req.Msg.Description, req.Msg.PayerID)); err != nil {
		return nil, connectError(err)
	}
	return s.snapshotResponse(store), nil
}

// AddPayment records a payment between two members of the caller's household.
func (s *LedgerService) AddPayment(ctx context.Context, req *connect.Request[AddPaymentRequest]) (*connect.Response[SnapshotResponse], error) {
	store, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	amount, err := ledger.ParseAmount(req.Msg.Amount)
	if err != nil {
		return nil, connectError(err)
	}
	if err := s.written(store.AddPayment(ctx, req.Msg.PayerID, req.Msg.PayeeID, amount)); err != nil {
		return nil, connectError(err)
	}
	return s.snapshotResponse(store), nil
}

// written drops a refresh failure that followed a saved write. The record
// exists, so the caller gets the current snapshot and waits for the next change.
func (s *LedgerService) written(err error) error {
	if errors.Is(err, state.ErrNotRefreshed) {
		s.logger.Warn("Write saved with stale snapshot", "error", err)
		return nil
	}
	return err
}

// GetSnapshot returns the caller's current snapshot without refetching.
func (s *LedgerService) GetSnapshot(ctx context.Context, req *connect.Request[GetSnapshotRequest]) (*connect.Response[SnapshotResponse], error) {
	store, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	return s.snapshotResponse(store), nil
}

// Refresh refetches the caller's household data.
func (s *LedgerService) Refresh(ctx context.Context, req *connect.Request[RefreshRequest]) (*connect.Response[SnapshotResponse], error) {
	store, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	if err := store.Refresh(ctx); err != nil {
		return nil, connectError(err)
	}
	return s.snapshotResponse(store), nil
}

// Subscribe streams the caller's snapshot now and after every change.
// A slow receiver skips intermediate snapshots and gets the latest one.
// The stream ends after the session signs out.
func (s *LedgerService) Subscribe(ctx context.Context, req *connect.Request[SubscribeRequest], stream *connect.ServerStream[SnapshotResponse]) error {
	store, err := s.session(ctx)
	if err != nil {
		return err
	}

	latest := make(chan state.Snapshot, 1)
	unsubscribe := store.Subscribe(func(snap state.Snapshot) {
		// Listener calls are serialized, so after draining the send cannot block.
		select {
		case <-latest:
		default:
		}
		latest <- snap
	})
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return connectError(ctx.Err())
		case snap := <-latest:
			if err := stream.Send(&SnapshotResponse{Snapshot: snapshotView(snap, s.currency)}); err != nil {
				return err
			}
			if snap.Phase == state.PhaseSignedOut {
				return nil
			}
		}
	}
}
