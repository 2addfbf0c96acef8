package store

import (
	"database/sql"
	"fmt"

	"github.com/nuturetable/nuturetable/internal/model"
)

type PhotoStore struct {
	db *sql.DB
}

func NewPhotoStore(db *sql.DB) *PhotoStore {
	return &PhotoStore{db: db}
}

func scanPhoto(scanner interface{ Scan(...any) error }) (*model.Photo, error) {
	var p model.Photo
	var mealID sql.NullString
	err := scanner.Scan(&p.ID, &p.UserID, &mealID, &p.ObjectKey, &p.ContentType, &p.Size, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if mealID.Valid {
		p.MealID = &mealID.String
	}
	return &p, nil
}

const photoCols = `id, user_id, meal_id, object_key, content_type, size, created_at`

func (s *PhotoStore) Create(p model.Photo) (*model.Photo, error) {
	var mealID sql.NullString
	if p.MealID != nil {
		mealID = sql.NullString{String: *p.MealID, Valid: true}
	}
	result, err := s.db.Exec(
		`INSERT INTO photos (user_id, meal_id, object_key, content_type, size) VALUES (?, ?, ?, ?, ?)`,
		p.UserID, mealID, p.ObjectKey, p.ContentType, p.Size,
	)
	if err != nil {
		return nil, fmt.Errorf("insert photo: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *PhotoStore) GetByID(id int64) (*model.Photo, error) {
	row := s.db.QueryRow(`SELECT `+photoCols+` FROM photos WHERE id = ?`, id)
	p, err := scanPhoto(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get photo: %w", err)
	}
	return p, nil
}

func (s *PhotoStore) ListByMeal(userID int64, mealID string) ([]model.Photo, error) {
	rows, err := s.db.Query(`SELECT `+photoCols+` FROM photos WHERE user_id = ? AND meal_id = ? ORDER BY id`, userID, mealID)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	var out []model.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
