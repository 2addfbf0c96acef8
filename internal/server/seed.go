package server

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nuturetable/nuturetable/internal/meal"
	"github.com/nuturetable/nuturetable/internal/model"
	"github.com/nuturetable/nuturetable/internal/store"
)

const (
	DemoEmail    = "demo@nuturetable.local"
	DemoPassword = "demo1234!"
)

// SeedDemo creates the demo account with sample meals dated relative to now.
// It does nothing if the account already exists.
func SeedDemo(ctx context.Context, db *sql.DB, now time.Time) (*model.User, error) {
	users := store.NewUserStore(db)
	existing, err := users.GetByEmail(DemoEmail)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	user, err := users.Create(DemoEmail, "Demo", DemoPassword)
	if err != nil {
		return nil, fmt.Errorf("seed demo user: %w", err)
	}

	meals := store.NewMealStore(db)
	for _, period := range model.Periods {
		for _, m := range meal.DemoMeals()[period] {
			m.ID = uuid.NewString()
			if err := meals.CreateMeal(ctx, user.ID, meal.AnchorDate(period, now), m); err != nil {
				return nil, fmt.Errorf("seed demo meal: %w", err)
			}
		}
	}
	return user, nil
}
