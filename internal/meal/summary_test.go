package meal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuturetable/nuturetable/internal/model"
)

func TestSum(t *testing.T) {
	today := DemoMeals()[model.PeriodToday]
	today = append(today, model.Meal{Calories: 100, Protein: 1})

	got := Sum(today)
	assert.Equal(t, 3, got.Meals)
	assert.Equal(t, 1100, got.Calories)
	assert.InDelta(t, 76, got.Protein, 1e-9)
	assert.InDelta(t, 95, got.Carbs, 1e-9)
	require.NotNil(t, got.Sodium)
	assert.InDelta(t, 205, *got.Sodium, 1e-9)
	require.NotNil(t, got.TransFat)
	assert.Equal(t, 0.0, *got.TransFat)
}

func TestSum_OptionalStaysNilWhenUnreported(t *testing.T) {
	got := Sum([]model.Meal{{Calories: 10}})
	assert.Nil(t, got.Sodium)
	assert.Nil(t, got.Cholesterol)
}

func TestProgressPercent(t *testing.T) {
	assert.Equal(t, 50, ProgressPercent(1000, 2000))
	assert.Equal(t, 100, ProgressPercent(2600, 2000))
	assert.Equal(t, 0, ProgressPercent(10, 0))
}

func TestAlerts(t *testing.T) {
	g := DefaultGoal(1)

	empty := Alerts(Sum(nil), g)
	require.Len(t, empty, 1)
	assert.Equal(t, AlertInfo, empty[0].Level)

	low := Alerts(Sum([]model.Meal{{Calories: 300, Protein: 10}}), g)
	require.Len(t, low, 1)
	assert.Equal(t, NutrientProtein, low[0].Nutrient)

	heavy := Alerts(Sum([]model.Meal{{Calories: 2500, Protein: 80, Sodium: ptr(2500)}}), g)
	require.Len(t, heavy, 2)
	assert.Equal(t, NutrientCalories, heavy[0].Nutrient)
	assert.Equal(t, NutrientSodium, heavy[1].Nutrient)
}

func TestSummarize(t *testing.T) {
	g := DefaultGoal(7)
	s := Summarize(DemoMeals()[model.PeriodToday], g)

	assert.Equal(t, int64(7), s.Goal.UserID)
	assert.Equal(t, 1000, s.Totals.Calories)
	assert.Equal(t, 50, s.Achievement)
	require.Len(t, s.Progress, 6)
	assert.Equal(t, NutrientCalories, s.Progress[0].Nutrient)
	assert.Equal(t, 50, s.Progress[0].Percent)
	assert.Empty(t, s.Alerts)
}

func TestDemoMeals(t *testing.T) {
	demo := DemoMeals()
	assert.Len(t, demo[model.PeriodToday], 2)
	assert.Len(t, demo[model.PeriodYesterday], 1)
	assert.Len(t, demo[model.PeriodLastWeek], 1)
	for _, meals := range demo {
		for _, m := range meals {
			_, errs := InputFrom(m).Validate()
			assert.Nil(t, errs, m.Name)
		}
	}
}
