package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nuturetable/nuturetable/internal/meal"
	"github.com/nuturetable/nuturetable/internal/model"
)

// ErrBackend marks a failed backend write. The local change has been reverted
// by the time it is returned.
var ErrBackend = errors.New("backend write failed")

const DefaultTimeout = 5 * time.Second

// Backend persists meals for a user.
type Backend interface {
	ListMeals(ctx context.Context, userID int64, since time.Time) ([]model.MealRow, error)
	CreateMeal(ctx context.Context, userID int64, loggedOn time.Time, m model.Meal) error
	UpdateMeal(ctx context.Context, userID int64, m model.Meal) error
	DeleteMeal(ctx context.Context, userID int64, id string) error
}

// Syncer applies meal changes to a Store first and then to the Backend,
// undoing the local change when the backend write fails. Writes to the same
// meal are serialized.
type Syncer struct {
	userID  int64
	store   *meal.Store
	backend Backend
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger

	periods keyedMutex
	records keyedMutex
}

type Option func(*Syncer)

func WithTimeout(d time.Duration) Option {
	return func(s *Syncer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Syncer) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Syncer) { s.logger = l }
}

func NewSyncer(userID int64, store *meal.Store, backend Backend, opts ...Option) *Syncer {
	s := &Syncer{
		userID:  userID,
		store:   store,
		backend: backend,
		timeout: DefaultTimeout,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "reconcile", "user_id", userID)
	return s
}

func (s *Syncer) Store() *meal.Store {
	return s.store
}

// Load replaces the Store contents with the user's meals from the last week.
func (s *Syncer) Load(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now()
	rows, err := s.backend.ListMeals(ctx, s.userID, meal.AnchorDate(model.PeriodLastWeek, now))
	if err != nil {
		return fmt.Errorf("%w: list meals: %w", ErrBackend, err)
	}

	buckets := make(map[model.Period][]model.Meal)
	for _, row := range rows {
		p, ok := meal.Classify(row.LoggedOn, now)
		if !ok {
			continue
		}
		buckets[p] = append(buckets[p], row.Meal)
	}
	s.store.Reset(buckets)
	return nil
}

// barrier waits for any Add in period that has published an id but not yet
// taken that id's record lock.
func (s *Syncer) barrier(period model.Period) {
	s.periods.Lock(string(period))()
}

// Add stores candidate under a fresh id and creates it on the backend.
func (s *Syncer) Add(ctx context.Context, period model.Period, candidate model.Meal) (model.Meal, error) {
	unlockPeriod := s.periods.Lock(string(period))
	m, err := s.store.Add(period, candidate)
	if err != nil {
		unlockPeriod()
		return model.Meal{}, err
	}
	unlock := s.records.Lock(m.ID)
	unlockPeriod()
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.backend.CreateMeal(ctx, s.userID, meal.AnchorDate(period, s.now()), m); err != nil {
		s.store.Remove(period, m.ID)
		s.logger.Warn("create reverted", "period", period, "meal_id", m.ID, "error", err)
		return model.Meal{}, fmt.Errorf("%w: create meal: %w", ErrBackend, err)
	}
	return m, nil
}

// Update replaces the meal with id. The bool result is false when the meal
// is not in the Store, in which case nothing is written.
func (s *Syncer) Update(ctx context.Context, period model.Period, id string, m model.Meal) (model.Meal, bool, error) {
	s.barrier(period)
	unlock := s.records.Lock(id)
	defer unlock()

	prev, ok := s.store.Update(period, id, m)
	if !ok {
		return model.Meal{}, false, nil
	}
	m.ID = id

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.backend.UpdateMeal(ctx, s.userID, m); err != nil {
		s.store.Update(period, id, prev)
		s.logger.Warn("update reverted", "period", period, "meal_id", id, "error", err)
		return model.Meal{}, true, fmt.Errorf("%w: update meal: %w", ErrBackend, err)
	}
	return m, true, nil
}

// Remove deletes the meal with id. Removing an absent meal succeeds without
// contacting the backend.
func (s *Syncer) Remove(ctx context.Context, period model.Period, id string) error {
	s.barrier(period)
	unlock := s.records.Lock(id)
	defer unlock()

	removed, ok := s.store.Remove(period, id)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.backend.DeleteMeal(ctx, s.userID, id); err != nil {
		s.store.Restore(removed)
		s.logger.Warn("delete reverted", "period", period, "meal_id", id, "error", err)
		return fmt.Errorf("%w: delete meal: %w", ErrBackend, err)
	}
	return nil
}
