package store

import (
	"database/sql"
	"fmt"

	"github.com/nuturetable/nuturetable/internal/model"
)

// InquiryCategories are the accepted support inquiry categories.
var InquiryCategories = []string{"service", "account", "error", "suggestion", "other"}

type InquiryStore struct {
	db *sql.DB
}

func NewInquiryStore(db *sql.DB) *InquiryStore {
	return &InquiryStore{db: db}
}

func scanInquiry(scanner interface{ Scan(...any) error }) (*model.Inquiry, error) {
	var q model.Inquiry
	err := scanner.Scan(&q.ID, &q.UserID, &q.Category, &q.Title, &q.Content, &q.Email, &q.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

const inquiryCols = `id, user_id, category, title, content, email, created_at`

func (s *InquiryStore) Create(q model.Inquiry) (*model.Inquiry, error) {
	result, err := s.db.Exec(
		`INSERT INTO inquiries (user_id, category, title, content, email) VALUES (?, ?, ?, ?, ?)`,
		q.UserID, q.Category, q.Title, q.Content, q.Email,
	)
	if err != nil {
		return nil, fmt.Errorf("insert inquiry: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *InquiryStore) GetByID(id int64) (*model.Inquiry, error) {
	row := s.db.QueryRow(`SELECT `+inquiryCols+` FROM inquiries WHERE id = ?`, id)
	q, err := scanInquiry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get inquiry: %w", err)
	}
	return q, nil
}

func (s *InquiryStore) ListByUser(userID int64) ([]model.Inquiry, error) {
	rows, err := s.db.Query(`SELECT `+inquiryCols+` FROM inquiries WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list inquiries: %w", err)
	}
	defer rows.Close()

	var out []model.Inquiry
	for rows.Next() {
		q, err := scanInquiry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inquiry: %w", err)
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}
