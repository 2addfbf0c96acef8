package model

import "time"

type Period string

const (
	PeriodToday     Period = "today"
	PeriodYesterday Period = "yesterday"
	PeriodLastWeek  Period = "lastWeek"
)

// Periods lists the buckets in display order.
var Periods = []Period{PeriodToday, PeriodYesterday, PeriodLastWeek}

// Meal is a single logged meal. Optional nutrients are nil when unknown.
type Meal struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Calories     int      `json:"calories"`
	Protein      float64  `json:"protein"`
	Carbs        float64  `json:"carbs"`
	Fat          float64  `json:"fat"`
	Time         string   `json:"time"`
	Sodium       *float64 `json:"sodium,omitempty"`
	Cholesterol  *float64 `json:"cholesterol,omitempty"`
	SaturatedFat *float64 `json:"saturated_fat,omitempty"`
	TransFat     *float64 `json:"trans_fat,omitempty"`
}

// MealRow is a meal as persisted by the backend, scoped to a user and a calendar day.
type MealRow struct {
	Meal
	UserID    int64     `json:"user_id"`
	LoggedOn  time.Time `json:"logged_on"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DailyTotal is the sum of one calendar day's meals.
type DailyTotal struct {
	Date     time.Time `json:"date"`
	Calories int       `json:"calories"`
	Protein  float64   `json:"protein"`
	Carbs    float64   `json:"carbs"`
	Fat      float64   `json:"fat"`
	Meals    int       `json:"meals"`
}
