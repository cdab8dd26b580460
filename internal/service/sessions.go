package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mmynk/splitbaba/internal/metrics"
	"github.com/mmynk/splitbaba/internal/models"
	"github.com/mmynk/splitbaba/internal/realtime"
	"github.com/mmynk/splitbaba/internal/state"
	"github.com/mmynk/splitbaba/internal/storage"
)

// Sessions holds one State Store per signed-in user. Every store watches the
// change broker for its household.
type Sessions struct {
	data    storage.Store
	broker  *realtime.Broker
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	store       *state.Store
	stopWatch   context.CancelFunc
	unsubscribe func()
	done        chan struct{}
}

// stop ends the watcher and waits for it to return.
func (sess *session) stop() {
	sess.stopWatch()
	sess.unsubscribe()
	<-sess.done
}

// NewSessions creates an empty registry.
func NewSessions(data storage.Store, broker *realtime.Broker, logger *slog.Logger, m *metrics.Metrics) *Sessions {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sessions{
		data:     data,
		broker:   broker,
		logger:   logger,
		metrics:  m,
		sessions: make(map[string]*session),
	}
}

// Open returns the session of user, signing it in if none is open.
// The broker subscription starts before sign-in so that a change written
// while the household loads is replayed once the watcher runs.
func (s *Sessions) Open(ctx context.Context, user *models.User) (*state.Store, error) {
	if store, ok := s.lookup(user.ID); ok {
		return store, nil
	}

	events, unsubscribe := s.broker.Subscribe()
	store := state.New(s.data, state.Options{
		Logger:  s.logger.With("user_id", user.ID),
		Metrics: s.metrics,
	})
	if err := store.SignIn(ctx, user); err != nil {
		unsubscribe()
		return nil, err
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	sess := &session{
		store:       store,
		stopWatch:   stopWatch,
		unsubscribe: unsubscribe,
		done:        make(chan struct{}),
	}
	go func() {
		defer close(sess.done)
		if err := store.Watch(watchCtx, events); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("Session watch stopped", "user_id", user.ID, "error", err)
		}
	}()

	s.mu.Lock()
	existing, ok := s.sessions[user.ID]
	if !ok {
		s.sessions[user.ID] = sess
	}
	s.mu.Unlock()

	if ok {
		// A concurrent Open for the same user won.
		sess.stop()
		return existing.store, nil
	}

	s.metrics.SessionOpened()
	s.logger.Info("Session opened", "user_id", user.ID)
	return store, nil
}

func (s *Sessions) lookup(userID string) (*state.Store, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return nil, false
	}
	return sess.store, true
}

// Get returns the open session of userID. A user holding a valid token
// whose session is gone (after a restart) is signed in again.
func (s *Sessions) Get(ctx context.Context, userID string) (*state.Store, error) {
	if store, ok := s.lookup(userID); ok {
		return store, nil
	}

	user, err := s.data.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, state.ErrNotSignedIn
	}
	return s.Open(ctx, user)
}

// Close signs the session of userID out and stops its watcher.
func (s *Sessions) Close(userID string) {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	delete(s.sessions, userID)
	s.mu.Unlock()
	if !ok {
		return
	}

	sess.stop()
	sess.store.SignOut()

	s.metrics.SessionClosed()
	s.logger.Info("Session closed", "user_id", userID)
}

// CloseAll closes every open session.
func (s *Sessions) CloseAll() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.Close(id)
	}
}

// Len reports the number of open sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
