package model

import "time"

// Photo is an image uploaded to object storage, optionally tied to a meal.
type Photo struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	MealID      *string   `json:"meal_id,omitempty"`
	ObjectKey   string    `json:"object_key"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
	URL         string    `json:"url,omitempty"`
}
