package meal

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/nuturetable/nuturetable/internal/model"
)

const (
	maxNameLen  = 100
	maxCalories = 100000
)

var timePattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// FieldErrors maps an input field to a human-readable problem.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + fe[k]
	}
	return "invalid meal: " + strings.Join(parts, "; ")
}

// Input is an unvalidated meal as submitted by the client. Pointer fields
// distinguish a missing value from zero.
type Input struct {
	Name         string   `json:"name"`
	Calories     *float64 `json:"calories"`
	Protein      *float64 `json:"protein"`
	Carbs        *float64 `json:"carbs"`
	Fat          *float64 `json:"fat"`
	Time         string   `json:"time"`
	Sodium       *float64 `json:"sodium"`
	Cholesterol  *float64 `json:"cholesterol"`
	SaturatedFat *float64 `json:"saturated_fat"`
	TransFat     *float64 `json:"trans_fat"`
}

// InputFrom converts a stored meal back to an Input, for partial edits.
func InputFrom(m model.Meal) Input {
	cal := float64(m.Calories)
	return Input{
		Name:         m.Name,
		Calories:     &cal,
		Protein:      &m.Protein,
		Carbs:        &m.Carbs,
		Fat:          &m.Fat,
		Time:         m.Time,
		Sodium:       clonePtr(m.Sodium),
		Cholesterol:  clonePtr(m.Cholesterol),
		SaturatedFat: clonePtr(m.SaturatedFat),
		TransFat:     clonePtr(m.TransFat),
	}
}

// clonePtr copies v so that decoding into an Input never writes through to
// a stored meal.
func clonePtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Validate checks every field and returns the meal it describes. The returned
// FieldErrors is nil when the input is valid. The meal has no id.
func (in Input) Validate() (model.Meal, FieldErrors) {
	errs := FieldErrors{}
	var m model.Meal

	m.Name = strings.TrimSpace(in.Name)
	switch {
	case m.Name == "":
		errs["name"] = "is required"
	case utf8.RuneCountInString(m.Name) > maxNameLen:
		errs["name"] = "must be at most 100 characters"
	}

	m.Time = strings.TrimSpace(in.Time)
	switch {
	case m.Time == "":
		errs["time"] = "is required"
	case !timePattern.MatchString(m.Time):
		errs["time"] = "must be HH:MM in 24-hour time"
	}

	if cal, ok := required(errs, "calories", in.Calories); ok {
		switch {
		case cal != math.Trunc(cal):
			errs["calories"] = "must be a whole number"
		case cal > maxCalories:
			errs["calories"] = "must be at most 100000"
		default:
			m.Calories = int(cal)
		}
	}
	m.Protein, _ = required(errs, "protein", in.Protein)
	m.Carbs, _ = required(errs, "carbs", in.Carbs)
	m.Fat, _ = required(errs, "fat", in.Fat)

	m.Sodium = optional(errs, "sodium", in.Sodium)
	m.Cholesterol = optional(errs, "cholesterol", in.Cholesterol)
	m.SaturatedFat = optional(errs, "saturated_fat", in.SaturatedFat)
	m.TransFat = optional(errs, "trans_fat", in.TransFat)

	if len(errs) > 0 {
		return model.Meal{}, errs
	}
	return m, nil
}

func required(errs FieldErrors, field string, v *float64) (float64, bool) {
	if v == nil {
		errs[field] = "is required"
		return 0, false
	}
	if !valid(*v) {
		errs[field] = "must be zero or greater"
		return 0, false
	}
	return *v, true
}

func optional(errs FieldErrors, field string, v *float64) *float64 {
	if v == nil {
		return nil
	}
	if !valid(*v) {
		errs[field] = "must be zero or greater"
		return nil
	}
	out := *v
	return &out
}

func valid(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
