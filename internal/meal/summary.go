package meal

import (
	"math"

	"github.com/nuturetable/nuturetable/internal/model"
)

// Totals sums a set of meals. Optional nutrients stay nil until at least one
// meal reports them.
type Totals struct {
	Calories     int      `json:"calories"`
	Protein      float64  `json:"protein"`
	Carbs        float64  `json:"carbs"`
	Fat          float64  `json:"fat"`
	Sodium       *float64 `json:"sodium,omitempty"`
	Cholesterol  *float64 `json:"cholesterol,omitempty"`
	SaturatedFat *float64 `json:"saturated_fat,omitempty"`
	TransFat     *float64 `json:"trans_fat,omitempty"`
	Meals        int      `json:"meals"`
}

func Sum(meals []model.Meal) Totals {
	var t Totals
	for _, m := range meals {
		t.Meals++
		t.Calories += m.Calories
		t.Protein += m.Protein
		t.Carbs += m.Carbs
		t.Fat += m.Fat
		t.Sodium = addOptional(t.Sodium, m.Sodium)
		t.Cholesterol = addOptional(t.Cholesterol, m.Cholesterol)
		t.SaturatedFat = addOptional(t.SaturatedFat, m.SaturatedFat)
		t.TransFat = addOptional(t.TransFat, m.TransFat)
	}
	return t
}

func addOptional(acc, v *float64) *float64 {
	if v == nil {
		return acc
	}
	sum := *v
	if acc != nil {
		sum += *acc
	}
	return &sum
}

// DefaultGoal returns targets taken from the reference intakes.
func DefaultGoal(userID int64) model.DailyGoal {
	return model.DailyGoal{
		UserID:      userID,
		Calories:    int(ReferenceIntakes[NutrientCalories]),
		Protein:     ReferenceIntakes[NutrientProtein],
		Carbs:       ReferenceIntakes[NutrientCarbs],
		Fat:         ReferenceIntakes[NutrientFat],
		Sodium:      ReferenceIntakes[NutrientSodium],
		Cholesterol: ReferenceIntakes[NutrientCholesterol],
	}
}

// Progress is consumption of one nutrient against its goal.
type Progress struct {
	Nutrient Nutrient `json:"nutrient"`
	Consumed float64  `json:"consumed"`
	Goal     float64  `json:"goal"`
	Percent  int      `json:"percent"`
}

// ProgressPercent is consumed/goal as a whole percentage capped at 100.
func ProgressPercent(consumed, goal float64) int {
	if goal <= 0 {
		return 0
	}
	return int(math.Round(math.Min(consumed/goal, 1) * 100))
}

func DailyProgress(t Totals, g model.DailyGoal) []Progress {
	deref := func(v *float64) float64 {
		if v == nil {
			return 0
		}
		return *v
	}
	items := []struct {
		n        Nutrient
		consumed float64
		goal     float64
	}{
		{NutrientCalories, float64(t.Calories), float64(g.Calories)},
		{NutrientCarbs, t.Carbs, g.Carbs},
		{NutrientProtein, t.Protein, g.Protein},
		{NutrientFat, t.Fat, g.Fat},
		{NutrientSodium, deref(t.Sodium), g.Sodium},
		{NutrientCholesterol, deref(t.Cholesterol), g.Cholesterol},
	}
	out := make([]Progress, len(items))
	for i, it := range items {
		out[i] = Progress{
			Nutrient: it.n,
			Consumed: it.consumed,
			Goal:     it.goal,
			Percent:  ProgressPercent(it.consumed, it.goal),
		}
	}
	return out
}

const (
	AlertInfo    = "info"
	AlertWarning = "warning"
)

type Alert struct {
	Level    string   `json:"level"`
	Nutrient Nutrient `json:"nutrient,omitempty"`
	Message  string   `json:"message"`
}

// Alerts flags the day's intake against its goal. A day with no meals only
// gets a reminder.
func Alerts(t Totals, g model.DailyGoal) []Alert {
	if t.Meals == 0 {
		return []Alert{{Level: AlertInfo, Message: "No meals logged today."}}
	}
	alerts := []Alert{}
	if g.Protein > 0 && t.Protein < g.Protein {
		alerts = append(alerts, Alert{AlertWarning, NutrientProtein, "Protein intake is below today's target."})
	}
	if g.Calories > 0 && t.Calories > g.Calories {
		alerts = append(alerts, Alert{AlertWarning, NutrientCalories, "Calorie intake is above today's target."})
	}
	if g.Sodium > 0 && t.Sodium != nil && *t.Sodium > g.Sodium {
		alerts = append(alerts, Alert{AlertWarning, NutrientSodium, "Sodium intake is above today's target."})
	}
	return alerts
}

// Summary is the dashboard view of one day.
type Summary struct {
	Totals      Totals          `json:"totals"`
	Goal        model.DailyGoal `json:"goal"`
	Progress    []Progress      `json:"progress"`
	Achievement int             `json:"achievement"`
	Alerts      []Alert         `json:"alerts"`
}

func Summarize(meals []model.Meal, g model.DailyGoal) Summary {
	t := Sum(meals)
	return Summary{
		Totals:      t,
		Goal:        g,
		Progress:    DailyProgress(t, g),
		Achievement: ProgressPercent(float64(t.Calories), float64(g.Calories)),
		Alerts:      Alerts(t, g),
	}
}
