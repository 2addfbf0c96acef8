package handler

import (
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/nuturetable/nuturetable/internal/auth"
	"github.com/nuturetable/nuturetable/internal/database"
	"github.com/nuturetable/nuturetable/internal/model"
	"github.com/nuturetable/nuturetable/internal/reconcile"
	"github.com/nuturetable/nuturetable/internal/store"
)

type testEnv struct {
	db       *sql.DB
	users    *store.UserStore
	sessions *store.SessionStore
	meals    *store.MealStore
	registry *reconcile.Registry
	user     *model.User
	session  *model.Session
	logger   *slog.Logger
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestEnv(t *testing.T) *testEnv {
	return setupTestEnvWithBackend(t, nil)
}

// setupTestEnvWithBackend opens a fresh database with one signed-in user.
// wrap, when non-nil, replaces the meal backend seen by the registry.
func setupTestEnvWithBackend(t *testing.T, wrap func(*store.MealStore) reconcile.Backend) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		db:       db,
		users:    store.NewUserStore(db).WithHashCost(bcrypt.MinCost),
		sessions: store.NewSessionStore(db),
		meals:    store.NewMealStore(db),
		logger:   discardLogger(),
	}
	var backend reconcile.Backend = env.meals
	if wrap != nil {
		backend = wrap(env.meals)
	}
	env.registry = reconcile.NewRegistry(backend, reconcile.WithRegistryLogger(env.logger))

	env.user, err = env.users.Create("kim@example.com", "Kim", "secret12!")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	env.session, err = env.sessions.Create(env.user.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return env
}

// do routes one request through pattern as the signed-in user.
func (e *testEnv) do(t *testing.T, pattern string, h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{
		UserID:    e.user.ID,
		SessionID: e.session.ID,
		Method:    "cookie",
	}))
	return serve(pattern, h, req)
}

func serve(pattern string, h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
	Retry  bool              `json:"retry"`
}
