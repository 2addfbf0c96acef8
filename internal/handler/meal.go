package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/nuturetable/nuturetable/internal/auth"
	"github.com/nuturetable/nuturetable/internal/meal"
	"github.com/nuturetable/nuturetable/internal/model"
	"github.com/nuturetable/nuturetable/internal/reconcile"
)

type MealHandler struct {
	registry *reconcile.Registry
	logger   *slog.Logger
}

func NewMealHandler(registry *reconcile.Registry, logger *slog.Logger) *MealHandler {
	return &MealHandler{registry: registry, logger: logger}
}

// mealCard is a meal as shown in a period list, with its card state.
type mealCard struct {
	model.Meal
	State meal.CardState `json:"state"`
}

type mealsResponse struct {
	meal.View
	Sections []model.Period `json:"sections"`
}

// session resolves the caller's meal state, loading it from the backend on
// first use. It writes the error response itself.
func (h *MealHandler) session(w http.ResponseWriter, r *http.Request) (*reconcile.Session, bool) {
	return loadSession(w, r, h.registry, h.logger)
}

func loadSession(w http.ResponseWriter, r *http.Request, registry *reconcile.Registry, logger *slog.Logger) (*reconcile.Session, bool) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	sess, err := registry.Session(r.Context(), ac.SessionID, ac.UserID)
	if err != nil {
		logger.Error("load meals", "user_id", ac.UserID, "error", err)
		writeRetry(w, "failed to load meals")
		return nil, false
	}
	return sess, true
}

func (h *MealHandler) List(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, mealsResponse{
		View:     sess.Store().View(),
		Sections: sess.Expansion.Sections(),
	})
}

func (h *MealHandler) ListPeriod(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriodParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown period")
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	meals := sess.Store().View().Period(period)
	cards := make([]mealCard, len(meals))
	for i, m := range meals {
		cards[i] = mealCard{Meal: m, State: sess.Expansion.Card(period, m.ID)}
	}
	writeJSON(w, http.StatusOK, cards)
}

func (h *MealHandler) Create(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriodParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown period")
		return
	}

	var in meal.Input
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	candidate, fieldErrs := in.Validate()
	if fieldErrs != nil {
		writeFieldErrors(w, fieldErrs)
		return
	}

	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	m, err := sess.Syncer.Add(r.Context(), period, candidate)
	if err != nil {
		h.writeSyncError(w, "failed to save meal", err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// Update accepts either a full meal or only the fields being changed; absent
// fields keep their stored values.
func (h *MealHandler) Update(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriodParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown period")
		return
	}
	id := r.PathValue("id")

	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	existing, found := sess.Store().Get(period, id)
	if !found {
		writeError(w, http.StatusNotFound, "meal not found")
		return
	}

	in := meal.InputFrom(existing)
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	updated, fieldErrs := in.Validate()
	if fieldErrs != nil {
		writeFieldErrors(w, fieldErrs)
		return
	}

	m, found, err := sess.Syncer.Update(r.Context(), period, id, updated)
	if err != nil {
		h.writeSyncError(w, "failed to update meal", err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "meal not found")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *MealHandler) Delete(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriodParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown period")
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.Syncer.Remove(r.Context(), period, r.PathValue("id")); err != nil {
		h.writeSyncError(w, "failed to delete meal", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Nutrition returns the detail panel for one meal and its card state.
func (h *MealHandler) Nutrition(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriodParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown period")
		return
	}
	id := r.PathValue("id")
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	m, found := sess.Store().Get(period, id)
	if !found {
		writeError(w, http.StatusNotFound, "meal not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state": sess.Expansion.Card(period, id),
		"panel": meal.NewPanel(m),
	})
}

func (h *MealHandler) ToggleCard(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriodParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown period")
		return
	}
	id := r.PathValue("id")
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if _, found := sess.Store().Get(period, id); !found {
		writeError(w, http.StatusNotFound, "meal not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":     id,
		"period": period,
		"state":  sess.Expansion.ToggleCard(period, id),
	})
}

func (h *MealHandler) ToggleSection(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriodParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown period")
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sections": sess.Expansion.ToggleSection(period),
	})
}

func (h *MealHandler) writeSyncError(w http.ResponseWriter, msg string, err error) {
	if errors.Is(err, reconcile.ErrBackend) {
		h.logger.Warn(msg, "error", err)
		writeRetry(w, msg)
		return
	}
	h.logger.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, msg)
}
