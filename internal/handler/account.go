package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/nuturetable/nuturetable/internal/auth"
	"github.com/nuturetable/nuturetable/internal/reconcile"
	"github.com/nuturetable/nuturetable/internal/store"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 -]{6,18}[0-9]$`)

type AccountHandler struct {
	userStore  *store.UserStore
	registry   *reconcile.Registry
	disconnect func(userID int64)
	logger     *slog.Logger
}

// NewAccountHandler returns the account handler. disconnect, when non-nil, is
// called after an account is deleted to close the user's live connections.
func NewAccountHandler(us *store.UserStore, registry *reconcile.Registry, disconnect func(userID int64), logger *slog.Logger) *AccountHandler {
	return &AccountHandler{userStore: us, registry: registry, disconnect: disconnect, logger: logger}
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.userStore.GetByID(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("get account", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get account")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type accountRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

// Update edits name, email and phone. Omitted fields are unchanged; an empty
// phone clears it.
func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req accountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	user, err := h.userStore.GetByID(userID)
	if err != nil {
		h.logger.Error("get account", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get account")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	name, email, phone := user.Name, user.Email, user.Phone
	errs := map[string]string{}
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
		if msg := validateName(name); msg != "" {
			errs["name"] = msg
		}
	}
	if req.Email != nil {
		email = strings.TrimSpace(*req.Email)
		if msg := validateEmail(email); msg != "" {
			errs["email"] = msg
		}
	}
	if req.Phone != nil {
		phone = strings.TrimSpace(*req.Phone)
		if phone != "" && !phonePattern.MatchString(phone) {
			errs["phone"] = "enter a valid phone number"
		}
	}
	if len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}

	updated, err := h.userStore.Update(userID, email, name, phone)
	if errors.Is(err, store.ErrEmailTaken) {
		writeFieldErrors(w, map[string]string{"email": "this email is already registered"})
		return
	}
	if err != nil {
		h.logger.Error("update account", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update account")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type deleteAccountRequest struct {
	Password string `json:"password"`
}

// Delete removes the account and everything it owns. The current password is
// required.
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req deleteAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	user, err := h.userStore.GetByID(userID)
	if err != nil {
		h.logger.Error("get account", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete account")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	confirmed, err := h.userStore.Authenticate(user.Email, req.Password)
	if err != nil {
		h.logger.Error("authenticate", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete account")
		return
	}
	if confirmed == nil {
		writeFieldErrors(w, map[string]string{"password": "password is incorrect"})
		return
	}

	if err := h.userStore.Delete(userID); err != nil {
		h.logger.Error("delete account", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete account")
		return
	}
	h.registry.DropUser(userID)
	if h.disconnect != nil {
		h.disconnect(userID)
	}
	h.logger.Info("account deleted", "user_id", userID)
	w.WriteHeader(http.StatusNoContent)
}

type SettingsHandler struct {
	settingsStore *store.SettingsStore
	logger        *slog.Logger
}

func NewSettingsHandler(ss *store.SettingsStore, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{settingsStore: ss, logger: logger}
}

func (h *SettingsHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsStore.Notifications(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("get notification settings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *SettingsHandler) ToggleNotification(w http.ResponseWriter, r *http.Request) {
	setting, err := h.settingsStore.Toggle(auth.UserID(r.Context()), r.PathValue("key"))
	if err != nil {
		h.logger.Error("toggle notification", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	if setting == nil {
		writeError(w, http.StatusNotFound, "unknown setting")
		return
	}
	writeJSON(w, http.StatusOK, setting)
}
