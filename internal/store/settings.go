package store

import (
	"database/sql"
	"fmt"

	"github.com/nuturetable/nuturetable/internal/model"
)

// NotificationDefaults lists every notification setting in display order.
var NotificationDefaults = []model.NotificationSetting{
	{Key: "meal_reminder", Label: "Meal reminders", Description: "Remind me to log meals at mealtimes.", Enabled: true},
	{Key: "nutrition_alert", Label: "Nutrition alerts", Description: "Warn me when a nutrient goes past its target.", Enabled: true},
	{Key: "weekly_report", Label: "Weekly report", Description: "Send a summary of the past week every Monday.", Enabled: true},
	{Key: "marketing", Label: "News and offers", Description: "Product news and promotions.", Enabled: false},
}

func notificationDefault(key string) (model.NotificationSetting, bool) {
	for _, d := range NotificationDefaults {
		if d.Key == key {
			return d, true
		}
	}
	return model.NotificationSetting{}, false
}

type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Notifications returns every setting for the user, falling back to the
// default for keys never changed.
func (s *SettingsStore) Notifications(userID int64) ([]model.NotificationSetting, error) {
	rows, err := s.db.Query(`SELECT key, enabled FROM notification_settings WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("get notification settings: %w", err)
	}
	defer rows.Close()

	stored := make(map[string]bool)
	for rows.Next() {
		var key string
		var enabled bool
		if err := rows.Scan(&key, &enabled); err != nil {
			return nil, fmt.Errorf("scan notification setting: %w", err)
		}
		stored[key] = enabled
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get notification settings: %w", err)
	}

	out := make([]model.NotificationSetting, len(NotificationDefaults))
	for i, d := range NotificationDefaults {
		out[i] = d
		if enabled, ok := stored[d.Key]; ok {
			out[i].Enabled = enabled
		}
	}
	return out, nil
}

// Enabled reports whether one setting is on for the user. Unknown keys are off.
func (s *SettingsStore) Enabled(userID int64, key string) (bool, error) {
	def, ok := notificationDefault(key)
	if !ok {
		return false, nil
	}
	var enabled bool
	err := s.db.QueryRow(
		`SELECT enabled FROM notification_settings WHERE user_id = ? AND key = ?`, userID, key,
	).Scan(&enabled)
	if err == sql.ErrNoRows {
		return def.Enabled, nil
	}
	if err != nil {
		return false, fmt.Errorf("get notification %q: %w", key, err)
	}
	return enabled, nil
}

// Toggle flips one setting and returns its new value. An unknown key returns
// (nil, nil).
func (s *SettingsStore) Toggle(userID int64, key string) (*model.NotificationSetting, error) {
	def, ok := notificationDefault(key)
	if !ok {
		return nil, nil
	}
	current, err := s.Notifications(userID)
	if err != nil {
		return nil, err
	}
	for _, c := range current {
		if c.Key == key {
			def.Enabled = !c.Enabled
		}
	}

	_, err = s.db.Exec(
		`INSERT INTO notification_settings (user_id, key, enabled) VALUES (?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET enabled = excluded.enabled, updated_at = CURRENT_TIMESTAMP`,
		userID, key, def.Enabled,
	)
	if err != nil {
		return nil, fmt.Errorf("toggle notification %q: %w", key, err)
	}
	return &def, nil
}
