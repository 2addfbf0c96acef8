package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/nuturetable/nuturetable/internal/auth"
	"github.com/nuturetable/nuturetable/internal/middleware"
	"github.com/nuturetable/nuturetable/internal/model"
	"github.com/nuturetable/nuturetable/internal/reconcile"
	"github.com/nuturetable/nuturetable/internal/store"
)

const (
	minNameLen          = 2
	minSignupPassword   = 8
	minLoginPassword    = 6
	passwordSpecialChar = "@$!%*?&"
)

type AuthHandler struct {
	userStore    *store.UserStore
	sessionStore *store.SessionStore
	registry     *reconcile.Registry
	secret       []byte
	tokenTTL     time.Duration
	secureCookie bool
	logger       *slog.Logger
}

func NewAuthHandler(us *store.UserStore, ss *store.SessionStore, registry *reconcile.Registry, secret []byte, tokenTTL time.Duration, secureCookie bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		userStore:    us,
		sessionStore: ss,
		registry:     registry,
		secret:       secret,
		tokenTTL:     tokenTTL,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

type signupRequest struct {
	Email           string `json:"email"`
	Name            string `json:"name"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (req *signupRequest) validate() map[string]string {
	errs := map[string]string{}
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)

	if msg := validateEmail(req.Email); msg != "" {
		errs["email"] = msg
	}
	if msg := validateName(req.Name); msg != "" {
		errs["name"] = msg
	}
	if msg := validatePassword(req.Password); msg != "" {
		errs["password"] = msg
	}
	if req.ConfirmPassword == "" {
		errs["confirm_password"] = "please confirm your password"
	} else if req.ConfirmPassword != req.Password {
		errs["confirm_password"] = "passwords do not match"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func validateEmail(email string) string {
	if email == "" {
		return "email is required"
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "enter a valid email address"
	}
	return ""
}

func validateName(name string) string {
	if name == "" {
		return "name is required"
	}
	if utf8.RuneCountInString(name) < minNameLen {
		return "name must be at least 2 characters"
	}
	return ""
}

// validatePassword requires a letter, a digit and one of passwordSpecialChar.
func validatePassword(pw string) string {
	if pw == "" {
		return "password is required"
	}
	if len(pw) < minSignupPassword {
		return "password must be at least 8 characters"
	}
	var letter, digit, special bool
	for _, c := range pw {
		switch {
		case unicode.IsLetter(c):
			letter = true
		case unicode.IsDigit(c):
			digit = true
		case strings.ContainsRune(passwordSpecialChar, c):
			special = true
		}
	}
	if !letter || !digit || !special {
		return "password must contain a letter, a number and a special character (@$!%*?&)"
	}
	return ""
}

// Signup creates an account. The caller must log in afterwards.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if errs := req.validate(); errs != nil {
		writeFieldErrors(w, errs)
		return
	}

	user, err := h.userStore.Create(req.Email, req.Name, req.Password)
	if errors.Is(err, store.ErrEmailTaken) {
		writeFieldErrors(w, map[string]string{"email": "this email is already registered"})
		return
	}
	if err != nil {
		h.logger.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	h.logger.Info("user signed up", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

// Login starts a session. The session is returned both as a cookie and as a
// bearer token bound to it.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Email = strings.TrimSpace(req.Email)

	errs := map[string]string{}
	if msg := validateEmail(req.Email); msg != "" {
		errs["email"] = msg
	}
	if len(req.Password) < minLoginPassword {
		errs["password"] = "password must be at least 6 characters"
	}
	if len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}

	user, err := h.userStore.Authenticate(req.Email, req.Password)
	if err != nil {
		h.logger.Error("authenticate", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to sign in")
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	sess, err := h.sessionStore.Create(user.ID)
	if err != nil {
		h.logger.Error("create session", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to sign in")
		return
	}
	token, err := auth.IssueToken(user.ID, sess.ID, h.secret, h.tokenTTL)
	if err != nil {
		h.logger.Error("issue token", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to sign in")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	h.logger.Info("user logged in", "user_id", user.ID, "session_id", sess.ID)
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.tokenTTL).UTC(),
		User:      user,
	})
}

// Logout ends the current session and drops its meal state.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if ok {
		h.registry.Drop(ac.SessionID)
		if err := h.sessionStore.Delete(ac.SessionID); err != nil {
			h.logger.Error("delete session", "session_id", ac.SessionID, "error", err)
		}
	}
	h.clearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll ends every session of the caller, on every device.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if err := h.sessionStore.DeleteByUser(userID); err != nil {
		h.logger.Error("delete sessions", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to log out")
		return
	}
	h.registry.DropUser(userID)
	h.clearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.userStore.GetByID(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("get user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
