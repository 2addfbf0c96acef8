package meal

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuturetable/nuturetable/internal/model"
)

func counterIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("m%d", n)
	}
}

func salad() model.Meal {
	return model.Meal{Name: "Salad", Calories: 350, Protein: 40, Carbs: 10, Fat: 15, Time: "08:30"}
}

func TestStore_AddAssignsFreshID(t *testing.T) {
	s := NewStore()

	candidate := salad()
	candidate.ID = "client-chosen"
	a, err := s.Add(model.PeriodToday, candidate)
	require.NoError(t, err)
	b, err := s.Add(model.PeriodToday, candidate)
	require.NoError(t, err)

	assert.NotEqual(t, "client-chosen", a.ID)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, s.View().Today, 2)
}

func TestStore_AddRegeneratesCollidingIDs(t *testing.T) {
	ids := []string{"x", "x", "", "y"}
	s := NewStore(WithIDFunc(func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}))

	a, err := s.Add(model.PeriodToday, salad())
	require.NoError(t, err)
	b, err := s.Add(model.PeriodYesterday, salad())
	require.NoError(t, err)

	assert.Equal(t, "x", a.ID)
	assert.Equal(t, "y", b.ID)
}

func TestStore_AddUnknownPeriod(t *testing.T) {
	s := NewStore()
	_, err := s.Add("tomorrow", salad())
	assert.ErrorIs(t, err, ErrUnknownPeriod)
}

func TestStore_RemoveIsIdempotent(t *testing.T) {
	s := NewStore(WithIDFunc(counterIDs()))
	m, err := s.Add(model.PeriodToday, salad())
	require.NoError(t, err)

	r, ok := s.Remove(model.PeriodToday, m.ID)
	require.True(t, ok)
	assert.Equal(t, 0, r.Index)
	assert.Equal(t, m, r.Meal)

	_, ok = s.Remove(model.PeriodToday, m.ID)
	assert.False(t, ok)
	_, ok = s.Remove(model.PeriodYesterday, "missing")
	assert.False(t, ok)
	assert.Empty(t, s.View().Today)
}

func TestStore_RemoveOnlyTouchesNamedPeriod(t *testing.T) {
	s := NewStore(WithIDFunc(counterIDs()))
	m, err := s.Add(model.PeriodToday, salad())
	require.NoError(t, err)

	_, ok := s.Remove(model.PeriodYesterday, m.ID)
	assert.False(t, ok)
	assert.Len(t, s.View().Today, 1)
}

func TestStore_RestorePutsMealBack(t *testing.T) {
	s := NewStore(WithIDFunc(counterIDs()))
	for _, tm := range []string{"07:00", "08:00", "09:00"} {
		m := salad()
		m.Time = tm
		_, err := s.Add(model.PeriodToday, m)
		require.NoError(t, err)
	}

	r, ok := s.Remove(model.PeriodToday, "m2")
	require.True(t, ok)
	assert.Equal(t, 1, r.Index)

	s.Restore(r)
	today := s.View().Today
	require.Len(t, today, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, ids(today))

	s.Restore(r)
	assert.Len(t, s.View().Today, 3, "restoring twice must not duplicate")
}

func TestStore_UpdateReplacesWholeRecord(t *testing.T) {
	s := NewStore(WithIDFunc(counterIDs()))
	m := salad()
	m.Sodium = ptr(85)
	stored, err := s.Add(model.PeriodToday, m)
	require.NoError(t, err)

	next := model.Meal{ID: "ignored", Name: "Soup", Calories: 120, Time: "19:00"}
	prev, ok := s.Update(model.PeriodToday, stored.ID, next)
	require.True(t, ok)
	assert.Equal(t, stored, prev)

	got, ok := s.Get(model.PeriodToday, stored.ID)
	require.True(t, ok)
	assert.Equal(t, stored.ID, got.ID)
	assert.Equal(t, "Soup", got.Name)
	assert.Nil(t, got.Sodium, "update is a full replace")
}

func TestStore_UpdateMissingIsNoop(t *testing.T) {
	s := NewStore()
	var events int
	s.Subscribe(func(Event) { events++ })

	_, ok := s.Update(model.PeriodToday, "missing", salad())
	assert.False(t, ok)
	assert.Zero(t, events)
}

func TestStore_ViewIsSortedAndCopied(t *testing.T) {
	s := NewStore(WithIDFunc(counterIDs()))
	for _, tm := range []string{"18:30", "08:30", "12:30"} {
		m := salad()
		m.Time = tm
		_, err := s.Add(model.PeriodToday, m)
		require.NoError(t, err)
	}

	v := s.View()
	assert.Equal(t, []string{"08:30", "12:30", "18:30"}, times(v.Today))
	assert.NotNil(t, v.Yesterday)
	assert.Empty(t, v.Yesterday)

	v.Today[0].Name = "mutated"
	assert.NotEqual(t, "mutated", s.View().Today[0].Name)
}

func TestStore_SubscribersSeeEveryMutation(t *testing.T) {
	s := NewStore(WithIDFunc(counterIDs()))
	var got []Event
	unsubscribe := s.Subscribe(func(ev Event) { got = append(got, ev) })

	m, err := s.Add(model.PeriodToday, salad())
	require.NoError(t, err)
	_, _ = s.Update(model.PeriodToday, m.ID, salad())
	_, _ = s.Remove(model.PeriodToday, m.ID)
	_, _ = s.Remove(model.PeriodToday, m.ID)

	require.Len(t, got, 3)
	assert.Equal(t, ActionAdded, got[0].Action)
	assert.Len(t, got[0].View.Today, 1)
	assert.Equal(t, ActionUpdated, got[1].Action)
	assert.Equal(t, ActionRemoved, got[2].Action)
	assert.Empty(t, got[2].View.Today)

	unsubscribe()
	unsubscribe()
	_, _ = s.Add(model.PeriodToday, salad())
	assert.Len(t, got, 3)
}

func TestStore_SubscriberMayReadStore(t *testing.T) {
	s := NewStore()
	var seen int
	s.Subscribe(func(Event) { seen = len(s.View().Today) })

	_, err := s.Add(model.PeriodToday, salad())
	require.NoError(t, err)
	assert.Equal(t, 1, seen)
}

func TestStore_ResetDropsDuplicatesAndUnknownPeriods(t *testing.T) {
	s := NewStore()
	s.Reset(map[model.Period][]model.Meal{
		model.PeriodToday:     {{ID: "a", Time: "09:00"}, {ID: "b", Time: "08:00"}},
		model.PeriodYesterday: {{ID: "a", Time: "10:00"}},
		"someday":             {{ID: "c"}},
	})

	v := s.View()
	assert.Equal(t, []string{"b", "a"}, ids(v.Today))
	assert.Empty(t, v.Yesterday)
	assert.Empty(t, v.LastWeek)
}

func TestStore_InsertKeepsID(t *testing.T) {
	s := NewStore()
	m := salad()
	m.ID = "server-id"
	assert.True(t, s.Insert(model.PeriodYesterday, m))
	assert.False(t, s.Insert(model.PeriodToday, m))

	got, ok := s.Get(model.PeriodYesterday, "server-id")
	require.True(t, ok)
	assert.Equal(t, m, got)
}

func TestStore_ConcurrentAddsKeepIDsUnique(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Add(model.PeriodToday, salad())
		}()
	}
	wg.Wait()

	today := s.View().Today
	require.Len(t, today, 50)
	seen := map[string]bool{}
	for _, m := range today {
		assert.False(t, seen[m.ID], "duplicate id %s", m.ID)
		seen[m.ID] = true
	}
}

func TestStore_ConcurrentEventsArriveInOrder(t *testing.T) {
	s := NewStore()
	m, err := s.Add(model.PeriodToday, salad())
	require.NoError(t, err)

	var mu sync.Mutex
	var got []Event
	s.Subscribe(func(ev Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = s.Add(model.PeriodYesterday, salad())
				return
			}
			next := salad()
			next.Calories = 100 + i
			_, _ = s.Update(model.PeriodToday, m.ID, next)
		}(i)
	}
	wg.Wait()

	require.Len(t, got, 40)
	for i, ev := range got {
		assert.Equal(t, uint64(i+2), ev.Seq, "event %d out of order", i)
		if i > 0 {
			assert.GreaterOrEqual(t, len(ev.View.Yesterday), len(got[i-1].View.Yesterday))
		}
	}
	assert.Equal(t, s.View(), got[len(got)-1].View)
}

func ids(meals []model.Meal) []string {
	out := make([]string, len(meals))
	for i, m := range meals {
		out[i] = m.ID
	}
	return out
}

func times(meals []model.Meal) []string {
	out := make([]string, len(meals))
	for i, m := range meals {
		out[i] = m.Time
	}
	return out
}
