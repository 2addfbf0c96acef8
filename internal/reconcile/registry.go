package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nuturetable/nuturetable/internal/meal"
)

// Session is the meal state visible to one login. Sessions of the same user
// share a Syncer and Store but each has its own card and section state.
type Session struct {
	ID        int64
	UserID    int64
	Syncer    *Syncer
	Expansion *meal.Expansion

	unsubscribe func()
}

func (s *Session) Store() *meal.Store {
	return s.Syncer.Store()
}

type userState struct {
	mu       sync.Mutex
	syncer   *Syncer
	loaded   bool
	day      time.Time
	sessions int
}

// Registry creates per-user Stores on first use, loads them from the
// backend and releases them when the user's last session is dropped.
// A Store loaded on an earlier calendar day is reloaded so its buckets
// match the current date.
type Registry struct {
	backend  Backend
	opts     []Option
	onChange func(userID int64, ev meal.Event)
	now      func() time.Time
	logger   *slog.Logger

	mu       sync.Mutex
	users    map[int64]*userState
	sessions map[int64]*Session
}

type RegistryOption func(*Registry)

// WithNotify registers fn to receive every Store change for every user.
func WithNotify(fn func(userID int64, ev meal.Event)) RegistryOption {
	return func(r *Registry) { r.onChange = fn }
}

// WithSyncerOptions forwards options to each Syncer the Registry creates.
func WithSyncerOptions(opts ...Option) RegistryOption {
	return func(r *Registry) { r.opts = append(r.opts, opts...) }
}

func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// WithRegistryClock replaces the time source used for day rollover. It is
// also handed to every Syncer.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

func NewRegistry(backend Backend, opts ...RegistryOption) *Registry {
	r := &Registry{
		backend:  backend,
		now:      time.Now,
		logger:   slog.Default(),
		users:    make(map[int64]*userState),
		sessions: make(map[int64]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "registry")
	return r
}

// Session returns the state for sessionID, creating and loading the user's
// Store if needed. A failed load is retried on the next call. A Store
// loaded before today is reloaded.
func (r *Registry) Session(ctx context.Context, sessionID, userID int64) (*Session, error) {
	r.mu.Lock()
	sess, ok := r.sessions[sessionID]
	u, uok := r.users[userID]
	if !uok {
		u = &userState{syncer: r.newSyncer(userID)}
		r.users[userID] = u
	}
	if !ok {
		sess = &Session{
			ID:        sessionID,
			UserID:    userID,
			Syncer:    u.syncer,
			Expansion: meal.NewExpansion(),
		}
		sess.unsubscribe = u.syncer.Store().Subscribe(sess.Expansion.Observe)
		r.sessions[sessionID] = sess
		u.sessions++
	}
	r.mu.Unlock()

	u.mu.Lock()
	defer u.mu.Unlock()
	today := meal.Day(r.now())
	if !u.loaded || !u.day.Equal(today) {
		if err := u.syncer.Load(ctx); err != nil {
			return nil, err
		}
		if u.loaded {
			r.logger.Info("store reloaded for new day", "user_id", userID, "day", today.Format(time.DateOnly))
		} else {
			r.logger.Debug("store loaded", "user_id", userID)
		}
		u.loaded = true
		u.day = today
	}
	return sess, nil
}

func (r *Registry) newSyncer(userID int64) *Syncer {
	opts := append([]Option{WithLogger(r.logger), WithClock(r.now)}, r.opts...)
	s := NewSyncer(userID, meal.NewStore(), r.backend, opts...)
	if r.onChange != nil {
		notify := r.onChange
		s.Store().Subscribe(func(ev meal.Event) { notify(userID, ev) })
	}
	return s
}

// Drop forgets a session. The user's Store goes with its last session.
func (r *Registry) Drop(sessionID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	delete(r.sessions, sessionID)
	sess.unsubscribe()

	u := r.users[sess.UserID]
	if u == nil {
		return
	}
	u.sessions--
	if u.sessions <= 0 {
		delete(r.users, sess.UserID)
		r.logger.Debug("store released", "user_id", sess.UserID)
	}
}

// DropUser forgets every session belonging to userID.
func (r *Registry) DropUser(userID int64) {
	r.mu.Lock()
	var ids []int64
	for id, sess := range r.sessions {
		if sess.UserID == userID {
			ids = append(ids, id)
		}
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Drop(id)
	}
}

// Retain drops every session for which keep returns false and reports how
// many were dropped. keep runs without the Registry lock held.
func (r *Registry) Retain(keep func(sessionID int64) bool) int {
	r.mu.Lock()
	ids := make([]int64, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	dropped := 0
	for _, id := range ids {
		if !keep(id) {
			r.Drop(id)
			dropped++
		}
	}
	return dropped
}

// Len reports the number of users with a loaded Store.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}
