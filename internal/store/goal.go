package store

import (
	"database/sql"
	"fmt"

	"github.com/nuturetable/nuturetable/internal/model"
)

type GoalStore struct {
	db       *sql.DB
	defaults func(userID int64) model.DailyGoal
}

// NewGoalStore returns a store that reports defaults(userID) for users who
// never saved a goal.
func NewGoalStore(db *sql.DB, defaults func(userID int64) model.DailyGoal) *GoalStore {
	return &GoalStore{db: db, defaults: defaults}
}

func (s *GoalStore) Get(userID int64) (*model.DailyGoal, error) {
	var g model.DailyGoal
	err := s.db.QueryRow(
		`SELECT user_id, calories, protein, carbs, fat, sodium, cholesterol, updated_at
		FROM daily_goals WHERE user_id = ?`, userID,
	).Scan(&g.UserID, &g.Calories, &g.Protein, &g.Carbs, &g.Fat, &g.Sodium, &g.Cholesterol, &g.UpdatedAt)
	if err == sql.ErrNoRows {
		d := s.defaults(userID)
		return &d, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return &g, nil
}

func (s *GoalStore) Upsert(g model.DailyGoal) (*model.DailyGoal, error) {
	_, err := s.db.Exec(
		`INSERT INTO daily_goals (user_id, calories, protein, carbs, fat, sodium, cholesterol)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			calories = excluded.calories, protein = excluded.protein, carbs = excluded.carbs,
			fat = excluded.fat, sodium = excluded.sodium, cholesterol = excluded.cholesterol,
			updated_at = CURRENT_TIMESTAMP`,
		g.UserID, g.Calories, g.Protein, g.Carbs, g.Fat, g.Sodium, g.Cholesterol,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert goal: %w", err)
	}
	return s.Get(g.UserID)
}
