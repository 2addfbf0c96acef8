package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nuturetable/nuturetable/internal/meal"
	"github.com/nuturetable/nuturetable/internal/model"
	"github.com/nuturetable/nuturetable/internal/store"
)

// sentRetention is how long claimed notifications are remembered.
const sentRetention = 30 * 24 * time.Hour

// mealSlot is a mealtime. A reminder goes out between at and until when no
// meal timed between from and until was logged today.
type mealSlot struct {
	name  string
	from  string
	at    string
	until string
}

var mealSlots = []mealSlot{
	{"breakfast", "05:00", "09:00", "11:00"},
	{"lunch", "11:00", "13:00", "16:00"},
	{"dinner", "16:00", "19:00", "22:00"},
}

// Scheduler periodically checks for notifications to send.
type Scheduler struct {
	mu          sync.RWMutex
	sender      Sender
	push        *store.PushStore
	settings    *store.SettingsStore
	meals       *store.MealStore
	goals       *store.GoalStore
	interval    time.Duration
	now         func() time.Time
	logger      *slog.Logger
	lastCleanup time.Time
	cancel      context.CancelFunc
	done        chan struct{}
}

func NewScheduler(sender Sender, pushStore *store.PushStore, settingsStore *store.SettingsStore, mealStore *store.MealStore, goalStore *store.GoalStore, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		sender:   sender,
		push:     pushStore,
		settings: settingsStore,
		meals:    mealStore,
		goals:    goalStore,
		interval: 60 * time.Second,
		now:      time.Now,
		logger:   logger,
	}
}

// WithClock replaces the scheduler's time source.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Tick runs one round of reminder checks.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now().UTC()

	if now.Sub(s.lastCleanup) >= time.Hour {
		s.lastCleanup = now
		if n, err := s.push.CleanupSent(now.Add(-sentRetention)); err != nil {
			s.logger.Error("cleanup sent notifications", "error", err)
		} else if n > 0 {
			s.logger.Info("cleaned up sent notifications", "count", n)
		}
	}

	userIDs, err := s.push.ListUserIDs()
	if err != nil {
		s.logger.Error("list push users", "error", err)
		return
	}
	for _, uid := range userIDs {
		if ctx.Err() != nil {
			return
		}
		s.checkMealReminders(ctx, uid, now)
	}
}

func (s *Scheduler) checkMealReminders(ctx context.Context, userID int64, now time.Time) {
	clock := now.Format("15:04")
	var due []mealSlot
	for _, slot := range mealSlots {
		if clock >= slot.at && clock < slot.until {
			due = append(due, slot)
		}
	}
	if len(due) == 0 {
		return
	}

	enabled, err := s.settings.Enabled(userID, model.NotifTypeMealReminder)
	if err != nil {
		s.logger.Error("check meal reminder setting", "user_id", userID, "error", err)
		return
	}
	if !enabled {
		return
	}

	today := meal.Day(now)
	rows, err := s.meals.ListMeals(ctx, userID, today)
	if err != nil {
		s.logger.Error("list meals for reminder", "user_id", userID, "error", err)
		return
	}

	for _, slot := range due {
		if loggedBetween(rows, today, slot.from, slot.until) {
			continue
		}
		ref := fmt.Sprintf("meal-%s-%s", slot.name, today.Format(time.DateOnly))
		claimed, err := s.push.RecordSent(userID, model.NotifTypeMealReminder, ref)
		if err != nil {
			s.logger.Error("record meal reminder", "user_id", userID, "error", err)
			continue
		}
		if !claimed {
			continue
		}
		s.SendToUser(ctx, userID, Payload{
			Title: "Time to log " + slot.name,
			Body:  fmt.Sprintf("You haven't logged %s yet today.", slot.name),
			URL:   "/meals/today",
			Tag:   "meal-" + slot.name,
		})
	}
}

func loggedBetween(rows []model.MealRow, day time.Time, from, until string) bool {
	for _, r := range rows {
		if r.LoggedOn.Equal(day) && r.Time >= from && r.Time < until {
			return true
		}
	}
	return false
}

// NutritionAlert warns the user once per day for each nutrient that today's
// meals push past its goal.
func (s *Scheduler) NutritionAlert(ctx context.Context, userID int64, today []model.Meal) {
	enabled, err := s.settings.Enabled(userID, model.NotifTypeNutritionAlert)
	if err != nil {
		s.logger.Error("check nutrition alert setting", "user_id", userID, "error", err)
		return
	}
	if !enabled {
		return
	}
	goal, err := s.goals.Get(userID)
	if err != nil {
		s.logger.Error("get goal for alert", "user_id", userID, "error", err)
		return
	}

	day := meal.Day(s.now()).Format(time.DateOnly)
	for _, a := range meal.Alerts(meal.Sum(today), *goal) {
		if a.Level != meal.AlertWarning || a.Nutrient == meal.NutrientProtein {
			continue
		}
		ref := fmt.Sprintf("%s-%s", a.Nutrient, day)
		claimed, err := s.push.RecordSent(userID, model.NotifTypeNutritionAlert, ref)
		if err != nil {
			s.logger.Error("record nutrition alert", "user_id", userID, "error", err)
			continue
		}
		if !claimed {
			continue
		}
		s.SendToUser(ctx, userID, Payload{
			Title: "Nutrition alert",
			Body:  a.Message,
			URL:   "/summary/today",
			Tag:   "alert-" + string(a.Nutrient),
		})
	}
}

// SendToUser delivers payload to every subscription the user has and returns
// how many deliveries succeeded. Expired subscriptions are removed.
func (s *Scheduler) SendToUser(ctx context.Context, userID int64, payload Payload) int {
	subs, err := s.push.ListByUser(userID)
	if err != nil {
		s.logger.Error("list push subscriptions", "user_id", userID, "error", err)
		return 0
	}

	sent := 0
	for _, sub := range subs {
		err := s.sender.Send(ctx, &sub, payload)
		switch {
		case err == nil:
			sent++
		case errors.Is(err, ErrExpired):
			if err := s.push.DeleteByEndpoint(sub.Endpoint); err != nil {
				s.logger.Error("delete expired subscription", "id", sub.ID, "error", err)
			}
		default:
			s.logger.Warn("send push", "user_id", userID, "tag", payload.Tag, "error", err)
		}
	}
	return sent
}
