package state

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/splitbaba/internal/ledger"
	"github.com/mmynk/splitbaba/internal/metrics"
	"github.com/mmynk/splitbaba/internal/models"
	"github.com/mmynk/splitbaba/internal/realtime"
	"github.com/mmynk/splitbaba/internal/storage"
)

// DataService is the part of the backing data service the store uses.
type DataService interface {
	storage.Ledger
	storage.Households
}

// Listener receives every new snapshot.
// A listener runs synchronously inside the notifying call and must not call
// methods of the store that change state or subscribe.
type Listener func(Snapshot)

type subscription struct {
	id int
	fn Listener
}

// Options configures a Store.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Store owns the snapshot of one session.
type Store struct {
	data    DataService
	logger  *slog.Logger
	metrics *metrics.Metrics

	// notifyMu serializes commits with their deliveries so that listeners see
	// snapshots in commit order.
	notifyMu sync.Mutex

	mu        sync.RWMutex
	snap      Snapshot
	listeners []subscription
	nextID    int
	issued    uint64 // last refresh token handed out
	applied   uint64 // newest token whose data is in snap
}

// New creates a signed-out store backed by data.
func New(data DataService, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		data:    data,
		logger:  logger,
		metrics: opts.Metrics,
		snap:    emptySnapshot(),
	}
}

// Subscribe registers fn and immediately calls it with the current snapshot,
// then again after every change. The returned function unregisters it.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})
	snap := s.snap
	s.mu.Unlock()

	fn(snap)
	s.metrics.Notified(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.listeners = slices.DeleteFunc(s.listeners, func(sub subscription) bool {
				return sub.id == id
			})
		})
	}
}

// commit applies mutate to a copy of the current snapshot, recomputes the
// derived data and notifies every listener once. mutate runs with s.mu held;
// when it returns false nothing changes and nobody is notified.
func (s *Store) commit(mutate func(next *Snapshot) bool) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	next := s.snap
	if !mutate(&next) {
		s.mu.Unlock()
		return false
	}
	next.Phase = phaseOf(next)
	next.Balances = ledger.ComputeBalances(next.Members, next.Expenses, next.Payments)
	next.Feed = slices.Collect(ledger.BuildActivityFeed(next.Expenses, next.Payments))
	s.snap = next
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	s.metrics.Recomputed()
	s.logger.Debug("Ledger recomputed",
		"phase", next.Phase,
		"members", len(next.Members),
		"expenses", len(next.Expenses),
		"payments", len(next.Payments),
		"listeners", len(listeners),
	)

	for _, l := range listeners {
		l.fn(next)
	}
	s.metrics.Notified(len(listeners))
	return true
}

// nextToken hands out the token for a new refresh.
func (s *Store) nextToken() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// fetch loads the household-scoped collections concurrently.
func (s *Store) fetch(ctx context.Context, householdID string) (householdData, error) {
	var d householdData
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.members, err = s.data.FetchMembers(ctx, householdID)
		return err
	})
	g.Go(func() (err error) {
		d.expenses, err = s.data.FetchExpenses(ctx, householdID)
		return err
	})
	g.Go(func() (err error) {
		d.payments, err = s.data.FetchPayments(ctx, householdID)
		return err
	})
	if err := g.Wait(); err != nil {
		return householdData{}, err
	}
	return d, nil
}

// SignIn loads the session of an externally authenticated user. If the user
// already belongs to a household its data is loaded before the single
// resulting notification.
func (s *Store) SignIn(ctx context.Context, user *models.User) error {
	if user == nil {
		return ErrNotSignedIn
	}

	token := s.nextToken()
	household, err := s.data.HouseholdForUser(ctx, user.ID)
	if err != nil {
		return err
	}

	var d householdData
	if household != nil {
		if d, err = s.fetch(ctx, household.ID); err != nil {
			return err
		}
	}

	ok := s.commit(func(next *Snapshot) bool {
		if token <= s.applied {
			return false
		}
		s.applied = token
		*next = emptySnapshot()
		next.User = user
		next.Household = household
		d.applyTo(next)
		return true
	})
	if !ok {
		return ErrSuperseded
	}

	s.logger.Info("Session signed in", "user_id", user.ID, "has_household", household != nil)
	return nil
}

// SignOut clears the user and every household-scoped collection in one
// notification. In-flight refreshes are discarded when they complete.
func (s *Store) SignOut() {
	s.commit(func(next *Snapshot) bool {
		s.applied = s.issued
		*next = emptySnapshot()
		return true
	})
	s.logger.Info("Session signed out")
}

// CreateHousehold creates a household owned by the signed-in user and loads it.
func (s *Store) CreateHousehold(ctx context.Context, name string) (*models.Household, error) {
	user, err := s.requireNoHousehold()
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	household, err := s.data.CreateHousehold(ctx, name, user.ID)
	if err != nil {
		return nil, err
	}
	if err := s.loadHousehold(ctx, user.ID, household); err != nil {
		return nil, err
	}

	s.logger.Info("Household created", "household_id", household.ID, "user_id", user.ID)
	return household, nil
}

// JoinHousehold joins the household with the given invite code and loads it.
func (s *Store) JoinHousehold(ctx context.Context, inviteCode string) (*models.Household, error) {
	user, err := s.requireNoHousehold()
	if err != nil {
		return nil, err
	}

	household, err := s.data.JoinHousehold(ctx, inviteCode, user.ID)
	if err != nil {
		return nil, err
	}
	if err := s.loadHousehold(ctx, user.ID, household); err != nil {
		return nil, err
	}

	s.logger.Info("Household joined", "household_id", household.ID, "user_id", user.ID)
	return household, nil
}

func (s *Store) requireNoHousehold() (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap.User == nil {
		return nil, ErrNotSignedIn
	}
	if s.snap.Household != nil {
		return nil, ErrAlreadyInHousehold
	}
	return s.snap.User, nil
}

// loadHousehold fetches a household's data and moves the session into it.
func (s *Store) loadHousehold(ctx context.Context, userID string, household *models.Household) error {
	token := s.nextToken()
	d, err := s.fetch(ctx, household.ID)
	if err != nil {
		return err
	}

	ok := s.commit(func(next *Snapshot) bool {
		if token <= s.applied || next.User == nil || next.User.ID != userID {
			return false
		}
		s.applied = token
		next.Household = household
		d.applyTo(next)
		return true
	})
	if !ok {
		return ErrSuperseded
	}
	return nil
}

// Refresh refetches the household data and recomputes. A response that has
// been overtaken by a later refresh, a sign-out or a household change is
// dropped without notifying anyone.
func (s *Store) Refresh(ctx context.Context) error {
	household, err := s.currentHousehold()
	if err != nil {
		return err
	}

	token := s.nextToken()
	start := time.Now()
	d, err := s.fetch(ctx, household.ID)
	if err != nil {
		s.metrics.Refreshed(metrics.OutcomeFailed, time.Since(start))
		return err
	}

	ok := s.commit(func(next *Snapshot) bool {
		if token <= s.applied || next.Household == nil || next.Household.ID != household.ID {
			return false
		}
		s.applied = token
		d.applyTo(next)
		return true
	})
	if !ok {
		s.metrics.Refreshed(metrics.OutcomeDiscarded, time.Since(start))
		s.logger.Warn("Discarded stale refresh", "household_id", household.ID, "token", token)
		return nil
	}

	s.metrics.Refreshed(metrics.OutcomeApplied, time.Since(start))
	return nil
}

func (s *Store) currentHousehold() (*models.Household, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap.User == nil {
		return nil, ErrNotSignedIn
	}
	if s.snap.Household == nil {
		return nil, ErrNoHousehold
	}
	return s.snap.Household, nil
}

// AddExpense records an expense paid by payerID and refreshes.
// Invalid input is rejected before anything is sent to the data service.
// Errors from the data service's write are returned unmodified; a failed
// refresh after the write is wrapped in ErrNotRefreshed.
func (s *Store) AddExpense(ctx context.Context, amount decimal.Decimal, description, payerID string) error {
	snap, err := s.householdSnapshot()
	if err != nil {
		return err
	}
	if err := ledger.ValidateAmount(amount); err != nil {
		return err
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return ErrEmptyDescription
	}
	if _, ok := snap.Member(payerID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMember, payerID)
	}

	expense := &models.Expense{
		HouseholdID: snap.Household.ID,
		Amount:      amount,
		Description: description,
		PayerID:     payerID,
	}
	if err := s.data.CreateExpense(ctx, expense); err != nil {
		return err
	}

	s.logger.Info("Expense added",
		"household_id", expense.HouseholdID,
		"expense_id", expense.ID,
		"payer_id", payerID,
		"amount", amount,
	)
	return s.refreshAfterWrite(ctx, expense.HouseholdID)
}

// refreshAfterWrite refreshes after a successful write. A failure is wrapped
// in ErrNotRefreshed so callers can tell the record was saved.
func (s *Store) refreshAfterWrite(ctx context.Context, householdID string) error {
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("Refresh after write failed", "household_id", householdID, "error", err)
		return fmt.Errorf("%w: %w", ErrNotRefreshed, err)
	}
	return nil
}

// AddPayment records a settlement from payerID to payeeID and refreshes.
func (s *Store) AddPayment(ctx context.Context, payerID, payeeID string, amount decimal.Decimal) error {
	snap, err := s.householdSnapshot()
	if err != nil {
		return err
	}
	if payerID == payeeID {
		return ErrSameMember
	}
	if err := ledger.ValidateAmount(amount); err != nil {
		return err
	}
	for _, id := range []string{payerID, payeeID} {
		if _, ok := snap.Member(id); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownMember, id)
		}
	}

	payment := &models.Payment{
		HouseholdID: snap.Household.ID,
		PayerID:     payerID,
		PayeeID:     payeeID,
		Amount:      amount,
	}
	if err := s.data.CreatePayment(ctx, payment); err != nil {
		return err
	}

	s.logger.Info("Payment added",
		"household_id", payment.HouseholdID,
		"payment_id", payment.ID,
		"payer_id", payerID,
		"payee_id", payeeID,
		"amount", amount,
	)
	return s.refreshAfterWrite(ctx, payment.HouseholdID)
}

func (s *Store) householdSnapshot() (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap.User == nil {
		return Snapshot{}, ErrNotSignedIn
	}
	if s.snap.Household == nil {
		return Snapshot{}, ErrNoHousehold
	}
	return s.snap, nil
}

// Watch refetches whenever an event for the loaded household arrives, one
// full refresh per event. It returns when ctx is done or events is closed.
func (s *Store) Watch(ctx context.Context, events <-chan realtime.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			household, err := s.currentHousehold()
			if err != nil || household.ID != event.HouseholdID {
				continue
			}
			if err := s.Refresh(ctx); err != nil {
				s.logger.Error("Refresh after change event failed",
					"household_id", event.HouseholdID,
					"table", event.Table,
					"error", err,
				)
			}
		}
	}
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Balances returns a copy of the current balances.
func (s *Store) Balances() ledger.Balances {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.snap.Balances)
}

// Users returns the members of the loaded household.
func (s *Store) Users() []models.Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.snap.Members)
}

// ActivityFeed returns the merged activity feed, most recent first.
func (s *Store) ActivityFeed() []ledger.ActivityItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.snap.Feed)
}
