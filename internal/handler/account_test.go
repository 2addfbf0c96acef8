package handler

import (
	"net/http"
	"testing"

	"github.com/nuturetable/nuturetable/internal/model"
	"github.com/nuturetable/nuturetable/internal/store"
)

func TestAccountUpdate(t *testing.T) {
	env := setupTestEnv(t)
	h := NewAccountHandler(env.users, env.registry, nil, env.logger)

	rec := env.do(t, "PUT /api/account", h.Update, "PUT", "/api/account", `{"name":"Kim Minji","phone":"010-1234-5678"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	u := decodeBody[model.User](t, rec)
	if u.Name != "Kim Minji" || u.Phone != "010-1234-5678" {
		t.Errorf("user = %+v, want new name and phone", u)
	}
	if u.Email != "kim@example.com" {
		t.Errorf("email = %q, want unchanged", u.Email)
	}

	rec = env.do(t, "GET /api/account", h.Get, "GET", "/api/account", "")
	if got := decodeBody[model.User](t, rec); got.Name != "Kim Minji" {
		t.Errorf("name = %q, want %q", got.Name, "Kim Minji")
	}
}

func TestAccountUpdateValidation(t *testing.T) {
	env := setupTestEnv(t)
	h := NewAccountHandler(env.users, env.registry, nil, env.logger)
	if _, err := env.users.Create("park@example.com", "Park", "secret12!"); err != nil {
		t.Fatalf("create user: %v", err)
	}

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"short name", `{"name":"K"}`, "name"},
		{"bad email", `{"email":"kim"}`, "email"},
		{"bad phone", `{"phone":"call me"}`, "phone"},
		{"email taken", `{"email":"park@example.com"}`, "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, "PUT /api/account", h.Update, "PUT", "/api/account", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			if body := decodeBody[errorBody](t, rec); body.Fields[tt.field] == "" {
				t.Errorf("fields = %v, want error on %s", body.Fields, tt.field)
			}
		})
	}
}

func TestNotificationSettings(t *testing.T) {
	env := setupTestEnv(t)
	h := NewSettingsHandler(store.NewSettingsStore(env.db), env.logger)

	rec := env.do(t, "GET /api/settings/notifications", h.Notifications, "GET", "/api/settings/notifications", "")
	settings := decodeBody[[]model.NotificationSetting](t, rec)
	if len(settings) != len(store.NotificationDefaults) {
		t.Fatalf("got %d settings, want %d", len(settings), len(store.NotificationDefaults))
	}

	pattern := "POST /api/settings/notifications/{key}/toggle"
	rec = env.do(t, pattern, h.ToggleNotification, "POST", "/api/settings/notifications/marketing/toggle", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if s := decodeBody[model.NotificationSetting](t, rec); !s.Enabled {
		t.Error("marketing should be enabled after toggle")
	}

	rec = env.do(t, pattern, h.ToggleNotification, "POST", "/api/settings/notifications/bogus/toggle", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestAccountDelete(t *testing.T) {
	env := setupTestEnv(t)
	var closed int64
	h := NewAccountHandler(env.users, env.registry, func(id int64) { closed = id }, env.logger)
	mh := NewMealHandler(env.registry, env.logger)
	createMeal(t, env, mh, "today", saladJSON)

	rec := env.do(t, "DELETE /api/account", h.Delete, "DELETE", "/api/account", `{"password":"wrong"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("wrong password: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = env.do(t, "DELETE /api/account", h.Delete, "DELETE", "/api/account", `{"password":"secret12!"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusNoContent, rec.Body.String())
	}
	if closed != env.user.ID {
		t.Errorf("disconnected user %d, want %d", closed, env.user.ID)
	}
	if n := env.registry.Len(); n != 0 {
		t.Errorf("registry holds %d users, want 0", n)
	}
	if u, _ := env.users.GetByID(env.user.ID); u != nil {
		t.Error("user should be gone")
	}
	if s, _ := env.sessions.GetByID(env.session.ID); s != nil {
		t.Error("sessions should be deleted with the user")
	}
}
