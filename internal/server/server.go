package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/nuturetable/nuturetable/internal/config"
	"github.com/nuturetable/nuturetable/internal/email"
	"github.com/nuturetable/nuturetable/internal/handler"
	"github.com/nuturetable/nuturetable/internal/meal"
	"github.com/nuturetable/nuturetable/internal/middleware"
	"github.com/nuturetable/nuturetable/internal/model"
	"github.com/nuturetable/nuturetable/internal/photo"
	"github.com/nuturetable/nuturetable/internal/push"
	"github.com/nuturetable/nuturetable/internal/reconcile"
	"github.com/nuturetable/nuturetable/internal/store"
	ws "github.com/nuturetable/nuturetable/internal/websocket"
)

const (
	loginRateLimit  = 10
	loginRateWindow = time.Minute
)

type Server struct {
	db             *sql.DB
	hub            *ws.Hub
	registry       *reconcile.Registry
	authH          *handler.AuthHandler
	mealH          *handler.MealHandler
	summaryH       *handler.SummaryHandler
	goalH          *handler.GoalHandler
	accountH       *handler.AccountHandler
	settingsH      *handler.SettingsHandler
	inquiryH       *handler.InquiryHandler
	photoH         *handler.PhotoHandler
	pushH          *handler.PushHandler
	scheduler      *push.Scheduler
	sessionStore   *store.SessionStore
	rateLimiter    *middleware.RateLimiter
	secret         []byte
	allowedOrigins []string
	logger         *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, emailClient *email.Client, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	mealStore := store.NewMealStore(db)
	goalStore := store.NewGoalStore(db, meal.DefaultGoal)
	settingsStore := store.NewSettingsStore(db)
	inquiryStore := store.NewInquiryStore(db)
	photoStore := store.NewPhotoStore(db)

	var scheduler *push.Scheduler
	var pushH *handler.PushHandler
	if cfg.PushConfigured() {
		pushStore := store.NewPushStore(db)
		svc := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubject)
		scheduler = push.NewScheduler(svc, pushStore, settingsStore, mealStore, goalStore, logger.With("component", "push"))
		pushH = handler.NewPushHandler(pushStore, scheduler, svc.VAPIDPublicKey(), logger.With("component", "push_handler"))
	}

	registry := reconcile.NewRegistry(mealStore,
		reconcile.WithSyncerOptions(reconcile.WithTimeout(cfg.BackendTimeout)),
		reconcile.WithRegistryLogger(logger),
		reconcile.WithNotify(func(userID int64, ev meal.Event) {
			msg := ws.NewMessage("meal", ev.Action, ev.ID, map[string]any{"period": ev.Period, "seq": ev.Seq})
			msg.Data = ev.View
			hub.Publish(userID, msg)

			if scheduler != nil && ev.Period == model.PeriodToday &&
				(ev.Action == meal.ActionAdded || ev.Action == meal.ActionUpdated || ev.Action == meal.ActionRestored) {
				go scheduler.NutritionAlert(context.Background(), userID, ev.View.Today)
			}
		}),
	)

	secret := []byte(cfg.TokenSecret)

	var photoH *handler.PhotoHandler
	s3cfg := photo.S3Config{
		Endpoint:  cfg.S3Endpoint,
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	}
	if s3cfg.Configured() {
		uploader := photo.NewUploader(s3cfg, photoStore, logger)
		photoH = handler.NewPhotoHandler(uploader, photoStore, mealStore, logger.With("component", "photo_handler"))
	}

	var mailer handler.Mailer
	if emailClient != nil {
		mailer = emailClient
	}

	return &Server{
		db:             db,
		hub:            hub,
		registry:       registry,
		authH:          handler.NewAuthHandler(userStore, sessionStore, registry, secret, cfg.TokenTTL, !cfg.Dev, logger.With("component", "auth")),
		mealH:          handler.NewMealHandler(registry, logger.With("component", "meal")),
		summaryH:       handler.NewSummaryHandler(registry, mealStore, goalStore, logger.With("component", "summary")),
		goalH:          handler.NewGoalHandler(goalStore, logger.With("component", "goal")),
		accountH:       handler.NewAccountHandler(userStore, registry, hub.CloseUser, logger.With("component", "account")),
		settingsH:      handler.NewSettingsHandler(settingsStore, logger.With("component", "settings")),
		inquiryH:       handler.NewInquiryHandler(inquiryStore, userStore, mailer, logger.With("component", "inquiry")),
		photoH:         photoH,
		pushH:          pushH,
		scheduler:      scheduler,
		sessionStore:   sessionStore,
		rateLimiter:    middleware.NewRateLimiter(),
		secret:         secret,
		allowedOrigins: cfg.AllowedOrigins,
		logger:         logger,
	}
}

// Cleanup deletes expired sessions and releases the meal state of every
// session that no longer exists. It also prunes idle rate limit entries.
func (s *Server) Cleanup() {
	if n, err := s.sessionStore.DeleteExpired(); err != nil {
		s.logger.Error("cleanup expired sessions", "error", err)
	} else if n > 0 {
		s.logger.Info("cleaned up expired sessions", "count", n)
	}

	dropped := s.registry.Retain(func(sessionID int64) bool {
		sess, err := s.sessionStore.GetByID(sessionID)
		if err != nil {
			s.logger.Error("check session", "session_id", sessionID, "error", err)
			return true
		}
		return sess != nil
	})
	if dropped > 0 {
		s.logger.Info("released meal state", "sessions", dropped, "active_users", s.registry.Len())
	}

	s.rateLimiter.Cleanup()
}

func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// Scheduler returns the push scheduler, or nil when push is not configured.
func (s *Server) Scheduler() *push.Scheduler {
	return s.scheduler
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	outerMux.HandleFunc("POST /api/auth/signup", s.rateLimitedHandler(s.authH.Signup))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.secret)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"status":       status,
		"clients":      s.hub.ClientCount(),
		"active_users": s.registry.Len(),
	})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, loginRateLimit, loginRateWindow)
	return rl(h).ServeHTTP
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("POST /api/auth/logout-all", s.authH.LogoutAll)
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)

	mux.HandleFunc("GET /api/meals", s.mealH.List)
	mux.HandleFunc("GET /api/meals/{period}", s.mealH.ListPeriod)
	mux.HandleFunc("POST /api/meals/{period}", s.mealH.Create)
	mux.HandleFunc("PUT /api/meals/{period}/{id}", s.mealH.Update)
	mux.HandleFunc("DELETE /api/meals/{period}/{id}", s.mealH.Delete)
	mux.HandleFunc("GET /api/meals/{period}/{id}/nutrition", s.mealH.Nutrition)
	mux.HandleFunc("POST /api/meals/{period}/{id}/toggle", s.mealH.ToggleCard)
	mux.HandleFunc("POST /api/sections/{period}/toggle", s.mealH.ToggleSection)

	mux.HandleFunc("GET /api/summary/today", s.summaryH.Today)
	mux.HandleFunc("GET /api/summary/weekly", s.summaryH.Weekly)

	mux.HandleFunc("GET /api/goals", s.goalH.Get)
	mux.HandleFunc("PUT /api/goals", s.goalH.Update)

	mux.HandleFunc("GET /api/account", s.accountH.Get)
	mux.HandleFunc("PUT /api/account", s.accountH.Update)
	mux.HandleFunc("DELETE /api/account", s.accountH.Delete)

	mux.HandleFunc("GET /api/settings/notifications", s.settingsH.Notifications)
	mux.HandleFunc("POST /api/settings/notifications/{key}/toggle", s.settingsH.ToggleNotification)

	mux.HandleFunc("POST /api/inquiries", s.inquiryH.Create)
	mux.HandleFunc("GET /api/inquiries", s.inquiryH.List)

	if s.photoH != nil {
		mux.HandleFunc("POST /api/photos", s.photoH.Upload)
		mux.HandleFunc("GET /api/photos", s.photoH.List)
	}

	if s.pushH != nil {
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
		mux.HandleFunc("GET /api/push/subscriptions", s.pushH.List)
		mux.HandleFunc("POST /api/push/subscriptions", s.pushH.Subscribe)
		mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
		mux.HandleFunc("POST /api/push/test", s.pushH.Test)
	}

	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.allowedOrigins))
}
