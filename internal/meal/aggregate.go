package meal

import (
	"slices"
	"strings"

	"github.com/nuturetable/nuturetable/internal/model"
)

// View is the display-ready form of the three buckets, each sorted by time.
type View struct {
	Today     []model.Meal `json:"today"`
	Yesterday []model.Meal `json:"yesterday"`
	LastWeek  []model.Meal `json:"lastWeek"`
}

// Period returns the sorted sequence for one bucket.
func (v View) Period(p model.Period) []model.Meal {
	switch p {
	case model.PeriodToday:
		return v.Today
	case model.PeriodYesterday:
		return v.Yesterday
	case model.PeriodLastWeek:
		return v.LastWeek
	}
	return nil
}

func (v View) clone() View {
	return View{
		Today:     slices.Clone(v.Today),
		Yesterday: slices.Clone(v.Yesterday),
		LastWeek:  slices.Clone(v.LastWeek),
	}
}

// Aggregate groups buckets into a View. It never mutates its input.
func Aggregate(buckets map[model.Period][]model.Meal) View {
	return View{
		Today:     SortByTime(buckets[model.PeriodToday]),
		Yesterday: SortByTime(buckets[model.PeriodYesterday]),
		LastWeek:  SortByTime(buckets[model.PeriodLastWeek]),
	}
}

// SortByTime returns a copy of meals ordered ascending by their "HH:MM" time.
// Lexical comparison is only correct for zero-padded 24-hour times, which
// ParseForm enforces. Equal times keep their input order.
func SortByTime(meals []model.Meal) []model.Meal {
	out := make([]model.Meal, len(meals))
	copy(out, meals)
	slices.SortStableFunc(out, func(a, b model.Meal) int {
		return strings.Compare(a.Time, b.Time)
	})
	return out
}
