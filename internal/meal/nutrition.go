package meal

import (
	"math"
	"strconv"

	"github.com/nuturetable/nuturetable/internal/model"
)

type Nutrient string

const (
	NutrientCalories     Nutrient = "calories"
	NutrientCarbs        Nutrient = "carbs"
	NutrientProtein      Nutrient = "protein"
	NutrientFat          Nutrient = "fat"
	NutrientSaturatedFat Nutrient = "saturated_fat"
	NutrientTransFat     Nutrient = "trans_fat"
	NutrientCholesterol  Nutrient = "cholesterol"
	NutrientSodium       Nutrient = "sodium"
)

// ReferenceIntakes are daily values for a 2,000 kcal diet. Trans fat has none.
var ReferenceIntakes = map[Nutrient]float64{
	NutrientCalories:     2000,
	NutrientCarbs:        324,
	NutrientProtein:      55,
	NutrientFat:          54,
	NutrientSaturatedFat: 15,
	NutrientCholesterol:  300,
	NutrientSodium:       2000,
}

const ReferenceFootnote = "% Daily Value is based on a 2,000 kcal diet."

// Percent returns round(amount / reference * 100). The second result is false
// for nutrients without a reference value.
func Percent(n Nutrient, amount float64) (int, bool) {
	ref, ok := ReferenceIntakes[n]
	if !ok || ref <= 0 {
		return 0, false
	}
	return int(math.Round(amount / ref * 100)), true
}

// Row is one line of the expanded nutrition card.
type Row struct {
	Nutrient Nutrient `json:"nutrient"`
	Label    string   `json:"label"`
	Amount   float64  `json:"amount"`
	Unit     string   `json:"unit"`
	Display  string   `json:"display"`
	Percent  *int     `json:"percent,omitempty"`
	Indent   bool     `json:"indent,omitempty"`
}

// Panel is the full expanded view of a meal card.
type Panel struct {
	MealID          string `json:"meal_id"`
	Name            string `json:"name"`
	Calories        int    `json:"calories"`
	CaloriesPercent int    `json:"calories_percent"`
	Rows            []Row  `json:"rows"`
	Footnote        string `json:"footnote"`
}

// FormatAmount renders a quantity with the shortest exact decimal and its unit,
// e.g. "0.7g" or "0mg".
func FormatAmount(v float64, unit string) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + unit
}

func newRow(n Nutrient, label string, amount float64, unit string, indent bool) Row {
	r := Row{
		Nutrient: n,
		Label:    label,
		Amount:   amount,
		Unit:     unit,
		Display:  FormatAmount(amount, unit),
		Indent:   indent,
	}
	if pct, ok := Percent(n, amount); ok {
		r.Percent = &pct
	}
	return r
}

// Rows lists the nutrient rows for m. Optional nutrients appear only when the
// field is present; a present zero is still shown.
func Rows(m model.Meal) []Row {
	rows := []Row{
		newRow(NutrientCarbs, "Carbohydrate", m.Carbs, "g", false),
		newRow(NutrientProtein, "Protein", m.Protein, "g", false),
		newRow(NutrientFat, "Fat", m.Fat, "g", false),
	}
	if m.SaturatedFat != nil {
		rows = append(rows, newRow(NutrientSaturatedFat, "Saturated fat", *m.SaturatedFat, "g", true))
	}
	if m.TransFat != nil {
		rows = append(rows, newRow(NutrientTransFat, "Trans fat", *m.TransFat, "g", true))
	}
	if m.Cholesterol != nil {
		rows = append(rows, newRow(NutrientCholesterol, "Cholesterol", *m.Cholesterol, "mg", false))
	}
	if m.Sodium != nil {
		rows = append(rows, newRow(NutrientSodium, "Sodium", *m.Sodium, "mg", false))
	}
	return rows
}

func NewPanel(m model.Meal) Panel {
	pct, _ := Percent(NutrientCalories, float64(m.Calories))
	return Panel{
		MealID:          m.ID,
		Name:            m.Name,
		Calories:        m.Calories,
		CaloriesPercent: pct,
		Rows:            Rows(m),
		Footnote:        ReferenceFootnote,
	}
}
