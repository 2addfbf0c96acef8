package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/nuturetable/nuturetable/internal/auth"
	"github.com/nuturetable/nuturetable/internal/model"
	"github.com/nuturetable/nuturetable/internal/push"
	"github.com/nuturetable/nuturetable/internal/store"
)

type PushHandler struct {
	pushStore *store.PushStore
	scheduler *push.Scheduler
	publicKey string
	logger    *slog.Logger
}

func NewPushHandler(ps *store.PushStore, scheduler *push.Scheduler, publicKey string, logger *slog.Logger) *PushHandler {
	return &PushHandler{pushStore: ps, scheduler: scheduler, publicKey: publicKey, logger: logger}
}

// VAPIDKey returns the application server key browsers subscribe with.
func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.publicKey})
}

type subscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
	DeviceName string `json:"device_name"`
}

func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req subscribeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	errs := map[string]string{}
	if u, err := url.Parse(req.Endpoint); err != nil || u.Scheme != "https" || u.Host == "" {
		errs["endpoint"] = "endpoint must be an https URL"
	}
	if req.Keys.P256dh == "" || req.Keys.Auth == "" {
		errs["keys"] = "p256dh and auth keys are required"
	}
	if len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}

	device := strings.TrimSpace(req.DeviceName)
	if device == "" {
		device = r.UserAgent()
	}
	sub, err := h.pushStore.CreateSubscription(userID, req.Endpoint, req.Keys.P256dh, req.Keys.Auth, device)
	if err != nil {
		h.logger.Error("create push subscription", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to subscribe")
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *PushHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	subs, err := h.pushStore.ListByUser(userID)
	if err != nil {
		h.logger.Error("list push subscriptions", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	if subs == nil {
		subs = []model.PushSubscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	sub, err := h.pushStore.GetByID(id, userID)
	if err != nil {
		h.logger.Error("get push subscription", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to unsubscribe")
		return
	}
	if sub == nil {
		writeError(w, http.StatusNotFound, "subscription not found")
		return
	}
	if err := h.pushStore.DeleteSubscription(id, userID); err != nil {
		h.logger.Error("delete push subscription", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to unsubscribe")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Test sends a sample notification to every device of the caller.
func (h *PushHandler) Test(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	sent := h.scheduler.SendToUser(r.Context(), userID, push.Payload{
		Title: "NutureTable",
		Body:  "Notifications are working.",
		Tag:   "test",
	})
	writeJSON(w, http.StatusOK, map[string]int{"sent": sent})
}
