package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nuturetable/nuturetable/internal/auth"
	"github.com/nuturetable/nuturetable/internal/middleware"
	"github.com/nuturetable/nuturetable/internal/model"
)

var testSecret = []byte("test-secret-test-secret-test-secret")

func newAuthHandler(env *testEnv) *AuthHandler {
	return NewAuthHandler(env.users, env.sessions, env.registry, testSecret, time.Hour, false, env.logger)
}

func postJSON(pattern string, h http.HandlerFunc, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return serve(pattern, h, req)
}

func TestSignup(t *testing.T) {
	env := setupTestEnv(t)
	h := newAuthHandler(env)

	rec := postJSON("POST /api/auth/signup", h.Signup, "/api/auth/signup",
		`{"email":"lee@example.com","name":"Lee","password":"abcd123!","confirm_password":"abcd123!"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	user := decodeBody[model.User](t, rec)
	if user.Email != "lee@example.com" {
		t.Errorf("email = %q, want %q", user.Email, "lee@example.com")
	}
	if cookies := rec.Result().Cookies(); len(cookies) != 0 {
		t.Errorf("signup set %d cookies, want none", len(cookies))
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("response should not expose the password hash")
	}
}

func TestSignupValidation(t *testing.T) {
	env := setupTestEnv(t)
	h := newAuthHandler(env)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"bad email", `{"email":"nope","name":"Lee","password":"abcd123!","confirm_password":"abcd123!"}`, "email"},
		{"short name", `{"email":"lee@example.com","name":"L","password":"abcd123!","confirm_password":"abcd123!"}`, "name"},
		{"short password", `{"email":"lee@example.com","name":"Lee","password":"ab1!","confirm_password":"ab1!"}`, "password"},
		{"no special", `{"email":"lee@example.com","name":"Lee","password":"abcd1234","confirm_password":"abcd1234"}`, "password"},
		{"no digit", `{"email":"lee@example.com","name":"Lee","password":"abcdefg!","confirm_password":"abcdefg!"}`, "password"},
		{"mismatch", `{"email":"lee@example.com","name":"Lee","password":"abcd123!","confirm_password":"abcd123?"}`, "confirm_password"},
		{"taken", `{"email":"KIM@example.com","name":"Kim","password":"abcd123!","confirm_password":"abcd123!"}`, "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON("POST /api/auth/signup", h.Signup, "/api/auth/signup", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			body := decodeBody[errorBody](t, rec)
			if body.Fields[tt.field] == "" {
				t.Errorf("fields = %v, want error on %s", body.Fields, tt.field)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	env := setupTestEnv(t)
	h := newAuthHandler(env)

	rec := postJSON("POST /api/auth/login", h.Login, "/api/auth/login", `{"email":"kim@example.com","password":"secret12!"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" {
		t.Fatal("expected session cookie")
	}
	if !cookie.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}

	resp := decodeBody[loginResponse](t, rec)
	claims, err := auth.ParseToken(resp.Token, testSecret)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != env.user.ID {
		t.Errorf("token user = %d, want %d", claims.UserID, env.user.ID)
	}
	sess, err := env.sessions.GetByToken(cookie.Value)
	if err != nil || sess == nil {
		t.Fatalf("session for cookie: %v, %v", sess, err)
	}
	if claims.SessionID != sess.ID {
		t.Errorf("token session = %d, want %d", claims.SessionID, sess.ID)
	}
}

func TestLoginRejects(t *testing.T) {
	env := setupTestEnv(t)
	h := newAuthHandler(env)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"wrong password", `{"email":"kim@example.com","password":"wrong123"}`, http.StatusUnauthorized},
		{"unknown user", `{"email":"who@example.com","password":"secret12!"}`, http.StatusUnauthorized},
		{"short password", `{"email":"kim@example.com","password":"abc"}`, http.StatusBadRequest},
		{"invalid json", `{"email":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON("POST /api/auth/login", h.Login, "/api/auth/login", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestLogoutDropsSession(t *testing.T) {
	env := setupTestEnv(t)
	h := newAuthHandler(env)

	if _, err := env.registry.Session(context.Background(), env.session.ID, env.user.ID); err != nil {
		t.Fatalf("open meal session: %v", err)
	}

	rec := env.do(t, "POST /api/auth/logout", h.Logout, "POST", "/api/auth/logout", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if n := env.registry.Len(); n != 0 {
		t.Errorf("registry holds %d users, want 0", n)
	}
	sess, err := env.sessions.GetByID(env.session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess != nil {
		t.Error("expected session to be deleted")
	}
}

func TestLogoutAll(t *testing.T) {
	env := setupTestEnv(t)
	h := newAuthHandler(env)
	other, err := env.sessions.Create(env.user.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := env.registry.Session(context.Background(), other.ID, env.user.ID); err != nil {
		t.Fatalf("open meal session: %v", err)
	}

	rec := env.do(t, "POST /api/auth/logout-all", h.LogoutAll, "POST", "/api/auth/logout-all", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if n := env.registry.Len(); n != 0 {
		t.Errorf("registry holds %d users, want 0", n)
	}
	for _, id := range []int64{env.session.ID, other.ID} {
		if sess, _ := env.sessions.GetByID(id); sess != nil {
			t.Errorf("session %d should be deleted", id)
		}
	}
}

func TestMe(t *testing.T) {
	env := setupTestEnv(t)
	h := newAuthHandler(env)

	rec := env.do(t, "GET /api/auth/me", h.Me, "GET", "/api/auth/me", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := decodeBody[model.User](t, rec); got.ID != env.user.ID {
		t.Errorf("id = %d, want %d", got.ID, env.user.ID)
	}
}
