package model

import "time"

// DailyGoal holds a user's daily intake targets.
type DailyGoal struct {
	UserID      int64     `json:"user_id"`
	Calories    int       `json:"calories"`
	Protein     float64   `json:"protein"`
	Carbs       float64   `json:"carbs"`
	Fat         float64   `json:"fat"`
	Sodium      float64   `json:"sodium"`
	Cholesterol float64   `json:"cholesterol"`
	UpdatedAt   time.Time `json:"updated_at"`
}
