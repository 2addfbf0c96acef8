package meal

import (
	"sync"

	"github.com/google/uuid"

	"github.com/nuturetable/nuturetable/internal/model"
)

// Store actions reported to subscribers.
const (
	ActionAdded    = "added"
	ActionRemoved  = "removed"
	ActionUpdated  = "updated"
	ActionRestored = "restored"
	ActionReset    = "reset"
)

// Event describes one Store mutation. View is the aggregated state after it.
// Seq increases by one per mutation and events are delivered in Seq order.
type Event struct {
	Seq    uint64
	Action string
	Period model.Period
	ID     string
	View   View
}

// Removed records where a meal sat before removal so the removal can be undone.
type Removed struct {
	Period model.Period
	Index  int
	Meal   model.Meal
}

// Store holds the meals of one session, partitioned by period.
// Every mutation recomputes the aggregated View before subscribers run.
type Store struct {
	// deliver is held from a mutation through its fan-out so subscribers
	// see events in commit order. Subscribers may read but not mutate.
	deliver sync.Mutex

	mu      sync.Mutex
	buckets map[model.Period][]model.Meal
	view    View
	seq     uint64
	subs    map[int]func(Event)
	nextSub int
	newID   func() string
}

type Option func(*Store)

// WithIDFunc replaces the id generator. Generated ids that collide with a
// stored meal are discarded and regenerated.
func WithIDFunc(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		buckets: emptyBuckets(),
		subs:    make(map[int]func(Event)),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.view = Aggregate(s.buckets)
	return s
}

func emptyBuckets() map[model.Period][]model.Meal {
	b := make(map[model.Period][]model.Meal, len(model.Periods))
	for _, p := range model.Periods {
		b[p] = nil
	}
	return b
}

// Subscribe registers fn for change notifications and returns a function
// that removes it. fn runs synchronously and must not mutate the Store.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// View returns a copy of the current aggregated view.
func (s *Store) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.clone()
}

// Get looks up a meal by id within one period.
func (s *Store) Get(period model.Period, id string) (model.Meal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.buckets[period], id)
	if i < 0 {
		return model.Meal{}, false
	}
	return s.buckets[period][i], true
}

// Reset replaces all buckets. Unknown periods are dropped; within a period,
// a meal whose id was already seen is skipped.
func (s *Store) Reset(buckets map[model.Period][]model.Meal) {
	next := emptyBuckets()
	seen := make(map[string]bool)
	for _, p := range model.Periods {
		for _, m := range buckets[p] {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			next[p] = append(next[p], m)
		}
	}

	s.deliver.Lock()
	defer s.deliver.Unlock()
	s.mu.Lock()
	s.buckets = next
	ev := s.commit(ActionReset, "", "")
	s.mu.Unlock()
	s.notify(ev)
}

// Add stores candidate under a freshly generated id and returns the stored
// record. Any id carried by candidate is ignored.
func (s *Store) Add(period model.Period, candidate model.Meal) (model.Meal, error) {
	if _, err := ParsePeriod(string(period)); err != nil {
		return model.Meal{}, err
	}

	s.deliver.Lock()
	defer s.deliver.Unlock()
	s.mu.Lock()
	candidate.ID = s.freshID()
	s.buckets[period] = append(s.buckets[period], candidate)
	ev := s.commit(ActionAdded, period, candidate.ID)
	s.mu.Unlock()

	s.notify(ev)
	return candidate, nil
}

// Insert stores m with its existing id. It is used to mirror records created
// elsewhere; if the id is already present the call is a no-op.
func (s *Store) Insert(period model.Period, m model.Meal) bool {
	if _, err := ParsePeriod(string(period)); err != nil {
		return false
	}

	s.deliver.Lock()
	defer s.deliver.Unlock()
	s.mu.Lock()
	if s.exists(m.ID) {
		s.mu.Unlock()
		return false
	}
	s.buckets[period] = append(s.buckets[period], m)
	ev := s.commit(ActionAdded, period, m.ID)
	s.mu.Unlock()

	s.notify(ev)
	return true
}

// Remove deletes the meal with id from period. Removing an absent id is a
// no-op and reports false.
func (s *Store) Remove(period model.Period, id string) (Removed, bool) {
	s.deliver.Lock()
	defer s.deliver.Unlock()
	s.mu.Lock()
	bucket := s.buckets[period]
	i := indexOf(bucket, id)
	if i < 0 {
		s.mu.Unlock()
		return Removed{}, false
	}
	r := Removed{Period: period, Index: i, Meal: bucket[i]}
	s.buckets[period] = append(bucket[:i:i], bucket[i+1:]...)
	ev := s.commit(ActionRemoved, period, id)
	s.mu.Unlock()

	s.notify(ev)
	return r, true
}

// Restore puts back a meal returned by Remove at its original position.
// It does nothing if the id has reappeared in the meantime.
func (s *Store) Restore(r Removed) {
	s.deliver.Lock()
	defer s.deliver.Unlock()
	s.mu.Lock()
	if s.exists(r.Meal.ID) {
		s.mu.Unlock()
		return
	}
	bucket := s.buckets[r.Period]
	i := min(max(r.Index, 0), len(bucket))
	next := make([]model.Meal, 0, len(bucket)+1)
	next = append(next, bucket[:i]...)
	next = append(next, r.Meal)
	next = append(next, bucket[i:]...)
	s.buckets[r.Period] = next
	ev := s.commit(ActionRestored, r.Period, r.Meal.ID)
	s.mu.Unlock()

	s.notify(ev)
}

// Update replaces every field of the meal with id, keeping the id. It
// returns the previous record. An absent id is a no-op.
func (s *Store) Update(period model.Period, id string, m model.Meal) (model.Meal, bool) {
	s.deliver.Lock()
	defer s.deliver.Unlock()
	s.mu.Lock()
	bucket := s.buckets[period]
	i := indexOf(bucket, id)
	if i < 0 {
		s.mu.Unlock()
		return model.Meal{}, false
	}
	prev := bucket[i]
	m.ID = id
	next := make([]model.Meal, len(bucket))
	copy(next, bucket)
	next[i] = m
	s.buckets[period] = next
	ev := s.commit(ActionUpdated, period, id)
	s.mu.Unlock()

	s.notify(ev)
	return prev, true
}

// commit recomputes the view and snapshots the event. Callers hold s.mu
// and s.deliver.
func (s *Store) commit(action string, period model.Period, id string) Event {
	s.view = Aggregate(s.buckets)
	s.seq++
	return Event{Seq: s.seq, Action: action, Period: period, ID: id, View: s.view.clone()}
}

func (s *Store) notify(ev Event) {
	s.mu.Lock()
	subs := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}

func (s *Store) freshID() string {
	for {
		id := s.newID()
		if id != "" && !s.exists(id) {
			return id
		}
	}
}

func (s *Store) exists(id string) bool {
	for _, bucket := range s.buckets {
		if indexOf(bucket, id) >= 0 {
			return true
		}
	}
	return false
}

func indexOf(meals []model.Meal, id string) int {
	for i, m := range meals {
		if m.ID == id {
			return i
		}
	}
	return -1
}
