package model

import "time"

// Push notification types. They share keys with the notification settings
// that enable them.
const (
	NotifTypeMealReminder   = "meal_reminder"
	NotifTypeNutritionAlert = "nutrition_alert"
)

type PushSubscription struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"-"`
	AuthKey    string    `json:"-"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}
