package meal

import "github.com/nuturetable/nuturetable/internal/model"

func ptr(v float64) *float64 { return &v }

// DemoMeals is the sample data a new demo account starts with. Ids are
// left empty; they are assigned when the meals are stored.
func DemoMeals() map[model.Period][]model.Meal {
	return map[model.Period][]model.Meal{
		model.PeriodToday: {
			{
				Name: "Chicken breast salad", Calories: 350, Protein: 40, Carbs: 10, Fat: 15, Time: "08:30",
				Sodium: ptr(85), Cholesterol: ptr(4), SaturatedFat: ptr(0.7), TransFat: ptr(0),
			},
			{
				Name: "Brown rice and bulgogi", Calories: 650, Protein: 35, Carbs: 85, Fat: 20, Time: "12:30",
				Sodium: ptr(120), Cholesterol: ptr(8), SaturatedFat: ptr(1.2), TransFat: ptr(0),
			},
		},
		model.PeriodYesterday: {
			{
				Name: "Salmon steak", Calories: 450, Protein: 45, Carbs: 5, Fat: 25, Time: "18:30",
				Sodium: ptr(95), Cholesterol: ptr(6), SaturatedFat: ptr(0.9), TransFat: ptr(0),
			},
		},
		model.PeriodLastWeek: {
			{
				Name: "Oatmeal", Calories: 280, Protein: 12, Carbs: 48, Fat: 6, Time: "08:00",
				Sodium: ptr(45), Cholesterol: ptr(2), SaturatedFat: ptr(0.3), TransFat: ptr(0),
			},
		},
	}
}
