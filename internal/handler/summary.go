package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/nuturetable/nuturetable/internal/auth"
	"github.com/nuturetable/nuturetable/internal/meal"
	"github.com/nuturetable/nuturetable/internal/model"
	"github.com/nuturetable/nuturetable/internal/reconcile"
	"github.com/nuturetable/nuturetable/internal/store"
)

const weekDays = 7

type SummaryHandler struct {
	registry  *reconcile.Registry
	mealStore *store.MealStore
	goalStore *store.GoalStore
	now       func() time.Time
	logger    *slog.Logger
}

func NewSummaryHandler(registry *reconcile.Registry, ms *store.MealStore, gs *store.GoalStore, logger *slog.Logger) *SummaryHandler {
	return &SummaryHandler{
		registry:  registry,
		mealStore: ms,
		goalStore: gs,
		now:       time.Now,
		logger:    logger,
	}
}

// Today summarizes the meals in the caller's today bucket against their goal.
func (h *SummaryHandler) Today(w http.ResponseWriter, r *http.Request) {
	sess, ok := loadSession(w, r, h.registry, h.logger)
	if !ok {
		return
	}
	goal, err := h.goalStore.Get(sess.UserID)
	if err != nil {
		h.logger.Error("get goal", "user_id", sess.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get goal")
		return
	}
	writeJSON(w, http.StatusOK, meal.Summarize(sess.Store().View().Today, *goal))
}

type weeklyResponse struct {
	Days    []model.DailyTotal `json:"days"`
	Average model.DailyTotal   `json:"average"`
}

// Weekly returns per-day totals for the last seven calendar days, oldest first.
func (h *SummaryHandler) Weekly(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	to := meal.Day(h.now())
	from := to.AddDate(0, 0, -(weekDays - 1))

	days, err := h.mealStore.DailyTotals(r.Context(), userID, from, to)
	if err != nil {
		h.logger.Error("weekly totals", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get weekly summary")
		return
	}
	writeJSON(w, http.StatusOK, weeklyResponse{Days: days, Average: average(days)})
}

// average divides over every day in the range, including days without meals.
func average(days []model.DailyTotal) model.DailyTotal {
	var avg model.DailyTotal
	if len(days) == 0 {
		return avg
	}
	var calories int
	for _, d := range days {
		calories += d.Calories
		avg.Protein += d.Protein
		avg.Carbs += d.Carbs
		avg.Fat += d.Fat
		avg.Meals += d.Meals
	}
	n := float64(len(days))
	avg.Calories = int(float64(calories)/n + 0.5)
	avg.Protein /= n
	avg.Carbs /= n
	avg.Fat /= n
	avg.Meals = int(float64(avg.Meals)/n + 0.5)
	return avg
}

type GoalHandler struct {
	goalStore *store.GoalStore
	logger    *slog.Logger
}

func NewGoalHandler(gs *store.GoalStore, logger *slog.Logger) *GoalHandler {
	return &GoalHandler{goalStore: gs, logger: logger}
}

func (h *GoalHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	goal, err := h.goalStore.Get(userID)
	if err != nil {
		h.logger.Error("get goal", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get goal")
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

type goalRequest struct {
	Calories    *int     `json:"calories"`
	Protein     *float64 `json:"protein"`
	Carbs       *float64 `json:"carbs"`
	Fat         *float64 `json:"fat"`
	Sodium      *float64 `json:"sodium"`
	Cholesterol *float64 `json:"cholesterol"`
}

// Update changes the given targets and keeps the rest.
func (h *GoalHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	goal, err := h.goalStore.Get(userID)
	if err != nil {
		h.logger.Error("get goal", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get goal")
		return
	}

	errs := map[string]string{}
	if req.Calories != nil {
		if *req.Calories <= 0 {
			errs["calories"] = "must be greater than 0"
		} else {
			goal.Calories = *req.Calories
		}
	}
	setTarget(errs, "protein", req.Protein, &goal.Protein)
	setTarget(errs, "carbs", req.Carbs, &goal.Carbs)
	setTarget(errs, "fat", req.Fat, &goal.Fat)
	setTarget(errs, "sodium", req.Sodium, &goal.Sodium)
	setTarget(errs, "cholesterol", req.Cholesterol, &goal.Cholesterol)
	if len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}

	goal.UserID = userID
	saved, err := h.goalStore.Upsert(*goal)
	if err != nil {
		h.logger.Error("save goal", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save goal")
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func setTarget(errs map[string]string, field string, v *float64, dst *float64) {
	if v == nil {
		return
	}
	if *v <= 0 {
		errs[field] = "must be greater than 0"
		return
	}
	*dst = *v
}
