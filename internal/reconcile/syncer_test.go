package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuturetable/nuturetable/internal/meal"
	"github.com/nuturetable/nuturetable/internal/model"
)

var errDown = errors.New("connection refused")

type fakeBackend struct {
	mu      sync.Mutex
	rows    map[string]model.MealRow
	fail    error
	listErr error
	block   chan struct{}
	calls   []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{rows: make(map[string]model.MealRow)}
}

func (b *fakeBackend) wait(ctx context.Context) error {
	if b.block == nil {
		return nil
	}
	select {
	case <-b.block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *fakeBackend) record(op string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, op)
	return b.fail
}

func (b *fakeBackend) ListMeals(ctx context.Context, userID int64, since time.Time) ([]model.MealRow, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	var out []model.MealRow
	for _, r := range b.rows {
		if r.UserID == userID && !r.LoggedOn.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (b *fakeBackend) CreateMeal(ctx context.Context, userID int64, loggedOn time.Time, m model.Meal) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	if err := b.record("create " + m.ID); err != nil {
		return err
	}
	b.mu.Lock()
	b.rows[m.ID] = model.MealRow{Meal: m, UserID: userID, LoggedOn: loggedOn}
	b.mu.Unlock()
	return nil
}

func (b *fakeBackend) UpdateMeal(ctx context.Context, userID int64, m model.Meal) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	if err := b.record("update " + m.ID); err != nil {
		return err
	}
	b.mu.Lock()
	row := b.rows[m.ID]
	row.Meal = m
	b.rows[m.ID] = row
	b.mu.Unlock()
	return nil
}

func (b *fakeBackend) DeleteMeal(ctx context.Context, userID int64, id string) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	if err := b.record("delete " + id); err != nil {
		return err
	}
	b.mu.Lock()
	delete(b.rows, id)
	b.mu.Unlock()
	return nil
}

func (b *fakeBackend) setFail(err error) {
	b.mu.Lock()
	b.fail = err
	b.mu.Unlock()
}

var fixedNow = time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

func newTestSyncer(b Backend, opts ...Option) *Syncer {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewSyncer(1, meal.NewStore(), b, opts...)
}

func breakfast() model.Meal {
	return model.Meal{Name: "Oatmeal", Calories: 280, Protein: 12, Carbs: 48, Fat: 6, Time: "08:00"}
}

func TestSyncer_AddPersists(t *testing.T) {
	b := newFakeBackend()
	s := newTestSyncer(b)

	m, err := s.Add(context.Background(), model.PeriodYesterday, breakfast())
	require.NoError(t, err)

	require.Contains(t, b.rows, m.ID)
	assert.Equal(t, "2024-05-19", b.rows[m.ID].LoggedOn.Format(time.DateOnly))
	assert.Len(t, s.Store().View().Yesterday, 1)
}

func TestSyncer_AddRevertsOnFailure(t *testing.T) {
	b := newFakeBackend()
	b.setFail(errDown)
	s := newTestSyncer(b)

	var actions []string
	s.Store().Subscribe(func(ev meal.Event) { actions = append(actions, ev.Action) })

	_, err := s.Add(context.Background(), model.PeriodToday, breakfast())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackend)
	assert.ErrorIs(t, err, errDown)
	assert.Empty(t, s.Store().View().Today)
	assert.Equal(t, []string{meal.ActionAdded, meal.ActionRemoved}, actions)
}

func TestSyncer_AddUnknownPeriod(t *testing.T) {
	b := newFakeBackend()
	s := newTestSyncer(b)

	_, err := s.Add(context.Background(), "soon", breakfast())
	assert.ErrorIs(t, err, meal.ErrUnknownPeriod)
	assert.Empty(t, b.calls)
}

func TestSyncer_AddTimesOut(t *testing.T) {
	b := newFakeBackend()
	b.block = make(chan struct{})
	s := newTestSyncer(b, WithTimeout(20*time.Millisecond))

	_, err := s.Add(context.Background(), model.PeriodToday, breakfast())
	assert.ErrorIs(t, err, ErrBackend)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, s.Store().View().Today)
}

func TestSyncer_UpdateRevertsOnFailure(t *testing.T) {
	b := newFakeBackend()
	s := newTestSyncer(b)
	m, err := s.Add(context.Background(), model.PeriodToday, breakfast())
	require.NoError(t, err)

	b.setFail(errDown)
	changed := breakfast()
	changed.Name = "Granola"
	_, found, err := s.Update(context.Background(), model.PeriodToday, m.ID, changed)
	assert.True(t, found)
	assert.ErrorIs(t, err, ErrBackend)

	got, ok := s.Store().Get(model.PeriodToday, m.ID)
	require.True(t, ok)
	assert.Equal(t, "Oatmeal", got.Name)
	assert.Equal(t, "Oatmeal", b.rows[m.ID].Name)
}

func TestSyncer_UpdateMissingWritesNothing(t *testing.T) {
	b := newFakeBackend()
	s := newTestSyncer(b)

	_, found, err := s.Update(context.Background(), model.PeriodToday, "nope", breakfast())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, b.calls)
}

func TestSyncer_UpdatePersists(t *testing.T) {
	b := newFakeBackend()
	s := newTestSyncer(b)
	m, err := s.Add(context.Background(), model.PeriodToday, breakfast())
	require.NoError(t, err)

	changed := breakfast()
	changed.Calories = 300
	got, found, err := s.Update(context.Background(), model.PeriodToday, m.ID, changed)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, 300, b.rows[m.ID].Calories)
}

func TestSyncer_RemoveIsIdempotent(t *testing.T) {
	b := newFakeBackend()
	s := newTestSyncer(b)
	m, err := s.Add(context.Background(), model.PeriodToday, breakfast())
	require.NoError(t, err)

	require.NoError(t, s.Remove(context.Background(), model.PeriodToday, m.ID))
	require.NoError(t, s.Remove(context.Background(), model.PeriodToday, m.ID))

	assert.NotContains(t, b.rows, m.ID)
	assert.Equal(t, []string{"create " + m.ID, "delete " + m.ID}, b.calls)
}

func TestSyncer_RemoveRestoresOnFailure(t *testing.T) {
	b := newFakeBackend()
	s := newTestSyncer(b)
	first, err := s.Add(context.Background(), model.PeriodToday, breakfast())
	require.NoError(t, err)
	second, err := s.Add(context.Background(), model.PeriodToday, breakfast())
	require.NoError(t, err)

	b.setFail(errDown)
	err = s.Remove(context.Background(), model.PeriodToday, first.ID)
	assert.ErrorIs(t, err, ErrBackend)

	today := s.Store().View().Today
	require.Len(t, today, 2)
	assert.Equal(t, first.ID, today[0].ID)
	assert.Equal(t, second.ID, today[1].ID)
}

func TestSyncer_SerializesWritesPerMeal(t *testing.T) {
	b := newFakeBackend()
	s := newTestSyncer(b)
	m, err := s.Add(context.Background(), model.PeriodToday, breakfast())
	require.NoError(t, err)

	b.block = make(chan struct{})
	updated := make(chan struct{})
	go func() {
		defer close(updated)
		_, _, _ = s.Update(context.Background(), model.PeriodToday, m.ID, breakfast())
	}()

	// Wait until the update holds the record lock.
	require.Eventually(t, func() bool {
		s.records.mu.Lock()
		defer s.records.mu.Unlock()
		_, ok := s.records.locks[m.ID]
		return ok
	}, time.Second, time.Millisecond)

	removed := make(chan error, 1)
	go func() { removed <- s.Remove(context.Background(), model.PeriodToday, m.ID) }()

	select {
	case <-removed:
		t.Fatal("remove finished while update was in flight")
	case <-time.After(30 * time.Millisecond):
	}

	close(b.block)
	<-updated
	require.NoError(t, <-removed)
	assert.Equal(t, []string{"create " + m.ID, "update " + m.ID, "delete " + m.ID}, b.calls)
	assert.Zero(t, s.records.len())
}

func TestSyncer_Load(t *testing.T) {
	b := newFakeBackend()
	day := func(offset int) time.Time { return meal.Day(fixedNow).AddDate(0, 0, offset) }
	b.rows["a"] = model.MealRow{Meal: model.Meal{ID: "a", Time: "12:00"}, UserID: 1, LoggedOn: day(0)}
	b.rows["b"] = model.MealRow{Meal: model.Meal{ID: "b", Time: "09:00"}, UserID: 1, LoggedOn: day(-1)}
	b.rows["c"] = model.MealRow{Meal: model.Meal{ID: "c", Time: "07:00"}, UserID: 1, LoggedOn: day(-5)}
	b.rows["d"] = model.MealRow{Meal: model.Meal{ID: "d", Time: "07:00"}, UserID: 1, LoggedOn: day(-30)}
	b.rows["e"] = model.MealRow{Meal: model.Meal{ID: "e", Time: "07:00"}, UserID: 2, LoggedOn: day(0)}
	s := newTestSyncer(b)

	require.NoError(t, s.Load(context.Background()))

	v := s.Store().View()
	require.Len(t, v.Today, 1)
	assert.Equal(t, "a", v.Today[0].ID)
	require.Len(t, v.Yesterday, 1)
	assert.Equal(t, "b", v.Yesterday[0].ID)
	require.Len(t, v.LastWeek, 1)
	assert.Equal(t, "c", v.LastWeek[0].ID)
}

func TestSyncer_LoadError(t *testing.T) {
	b := newFakeBackend()
	b.listErr = errDown
	s := newTestSyncer(b)

	err := s.Load(context.Background())
	assert.ErrorIs(t, err, ErrBackend)
	assert.ErrorIs(t, err, errDown)
}
