package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nuturetable/nuturetable/internal/model"
)

// MealStore is the backend of record for meals. It satisfies reconcile.Backend.
type MealStore struct {
	db *sql.DB
}

func NewMealStore(db *sql.DB) *MealStore {
	return &MealStore{db: db}
}

const mealCols = `id, user_id, logged_on, name, calories, protein, carbs, fat, time,
	sodium, cholesterol, saturated_fat, trans_fat, created_at, updated_at`

func scanMeal(scanner interface{ Scan(...any) error }) (*model.MealRow, error) {
	var m model.MealRow
	var loggedOn string
	var sodium, cholesterol, satFat, transFat sql.NullFloat64
	err := scanner.Scan(
		&m.ID, &m.UserID, &loggedOn, &m.Name, &m.Calories, &m.Protein, &m.Carbs, &m.Fat, &m.Time,
		&sodium, &cholesterol, &satFat, &transFat, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.LoggedOn, err = time.Parse(time.DateOnly, loggedOn)
	if err != nil {
		return nil, fmt.Errorf("parse logged_on %q: %w", loggedOn, err)
	}
	m.Sodium = floatPtr(sodium)
	m.Cholesterol = floatPtr(cholesterol)
	m.SaturatedFat = floatPtr(satFat)
	m.TransFat = floatPtr(transFat)
	return &m, nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// CreateMeal inserts m under its own id on the given calendar day.
func (s *MealStore) CreateMeal(ctx context.Context, userID int64, loggedOn time.Time, m model.Meal) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meals (id, user_id, logged_on, name, calories, protein, carbs, fat, time,
			sodium, cholesterol, saturated_fat, trans_fat)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, userID, loggedOn.Format(time.DateOnly), m.Name, m.Calories, m.Protein, m.Carbs, m.Fat, m.Time,
		nullFloat(m.Sodium), nullFloat(m.Cholesterol), nullFloat(m.SaturatedFat), nullFloat(m.TransFat),
	)
	if err != nil {
		return fmt.Errorf("insert meal: %w", err)
	}
	return nil
}

func (s *MealStore) GetByID(ctx context.Context, userID int64, id string) (*model.MealRow, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+mealCols+` FROM meals WHERE id = ? AND user_id = ?`, id, userID)
	m, err := scanMeal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get meal: %w", err)
	}
	return m, nil
}

// ListMeals returns the user's meals logged on or after since.
func (s *MealStore) ListMeals(ctx context.Context, userID int64, since time.Time) ([]model.MealRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+mealCols+` FROM meals WHERE user_id = ? AND logged_on >= ? ORDER BY logged_on, time, created_at`,
		userID, since.Format(time.DateOnly),
	)
	if err != nil {
		return nil, fmt.Errorf("list meals: %w", err)
	}
	defer rows.Close()

	var meals []model.MealRow
	for rows.Next() {
		m, err := scanMeal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meal: %w", err)
		}
		meals = append(meals, *m)
	}
	return meals, rows.Err()
}

// UpdateMeal replaces every nutrient field of the meal. Updating a missing
// meal is not an error.
func (s *MealStore) UpdateMeal(ctx context.Context, userID int64, m model.Meal) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE meals SET name = ?, calories = ?, protein = ?, carbs = ?, fat = ?, time = ?,
			sodium = ?, cholesterol = ?, saturated_fat = ?, trans_fat = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ?`,
		m.Name, m.Calories, m.Protein, m.Carbs, m.Fat, m.Time,
		nullFloat(m.Sodium), nullFloat(m.Cholesterol), nullFloat(m.SaturatedFat), nullFloat(m.TransFat),
		m.ID, userID,
	)
	if err != nil {
		return fmt.Errorf("update meal: %w", err)
	}
	return nil
}

func (s *MealStore) DeleteMeal(ctx context.Context, userID int64, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM meals WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete meal: %w", err)
	}
	return nil
}

// DailyTotals sums meals per calendar day from from to to inclusive. Days
// without meals are present with zero totals.
func (s *MealStore) DailyTotals(ctx context.Context, userID int64, from, to time.Time) ([]model.DailyTotal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT logged_on, SUM(calories), SUM(protein), SUM(carbs), SUM(fat), COUNT(*)
		FROM meals WHERE user_id = ? AND logged_on BETWEEN ? AND ?
		GROUP BY logged_on`,
		userID, from.Format(time.DateOnly), to.Format(time.DateOnly),
	)
	if err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}
	defer rows.Close()

	byDay := make(map[string]model.DailyTotal)
	for rows.Next() {
		var day string
		var t model.DailyTotal
		if err := rows.Scan(&day, &t.Calories, &t.Protein, &t.Carbs, &t.Fat, &t.Meals); err != nil {
			return nil, fmt.Errorf("scan daily total: %w", err)
		}
		byDay[day] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}

	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	to = time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	var totals []model.DailyTotal
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		t := byDay[d.Format(time.DateOnly)]
		t.Date = d
		totals = append(totals, t)
	}
	return totals, nil
}
