package meal

import (
	"slices"
	"sync"

	"github.com/nuturetable/nuturetable/internal/model"
)

type CardState string

const (
	Collapsed CardState = "collapsed"
	Expanded  CardState = "expanded"
)

func (c CardState) Toggle() CardState {
	if c == Expanded {
		return Collapsed
	}
	return Expanded
}

// maxOpenSections bounds how many period sections may be expanded at once.
const maxOpenSections = 2

type cardKey struct {
	period model.Period
	id     string
}

// Expansion tracks which meal cards and period sections a session has open.
// Cards start collapsed.
type Expansion struct {
	mu       sync.Mutex
	cards    map[cardKey]struct{}
	sections []model.Period
}

func NewExpansion() *Expansion {
	return &Expansion{cards: make(map[cardKey]struct{})}
}

func (e *Expansion) Card(period model.Period, id string) CardState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.cards[cardKey{period, id}]; ok {
		return Expanded
	}
	return Collapsed
}

// ToggleCard flips one card and returns its new state.
func (e *Expansion) ToggleCard(period model.Period, id string) CardState {
	e.mu.Lock()
	defer e.mu.Unlock()
	k := cardKey{period, id}
	if _, ok := e.cards[k]; ok {
		delete(e.cards, k)
		return Collapsed
	}
	e.cards[k] = struct{}{}
	return Expanded
}

func (e *Expansion) Forget(period model.Period, id string) {
	e.mu.Lock()
	delete(e.cards, cardKey{period, id})
	e.mu.Unlock()
}

// Observe drops card state for meals that leave the Store.
func (e *Expansion) Observe(ev Event) {
	switch ev.Action {
	case ActionRemoved:
		e.Forget(ev.Period, ev.ID)
	case ActionReset:
		e.mu.Lock()
		clear(e.cards)
		e.mu.Unlock()
	}
}

func (e *Expansion) Sections() []model.Period {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.Period{}, e.sections...)
}

// ToggleSection closes an open section, or opens a closed one. Opening a
// section while maxOpenSections are already open leaves only the new one open.
func (e *Expansion) ToggleSection(p model.Period) []model.Period {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i := slices.Index(e.sections, p); i >= 0 {
		e.sections = slices.Delete(e.sections, i, i+1)
	} else if len(e.sections) >= maxOpenSections {
		e.sections = []model.Period{p}
	} else {
		e.sections = append(e.sections, p)
	}
	return append([]model.Period{}, e.sections...)
}
