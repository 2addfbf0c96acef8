package meal

import (
	"errors"
	"fmt"
	"time"

	"github.com/nuturetable/nuturetable/internal/model"
)

var ErrUnknownPeriod = errors.New("unknown period")

// lastWeekDays is the oldest calendar-day distance still shown in the lastWeek bucket.
const lastWeekDays = 7

// ParsePeriod validates a bucket key.
func ParsePeriod(s string) (model.Period, error) {
	switch p := model.Period(s); p {
	case model.PeriodToday, model.PeriodYesterday, model.PeriodLastWeek:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, s)
}

// Classify assigns a logged calendar day to a bucket relative to now.
// 0 days ago is today, 1 is yesterday, 2 through 7 is lastWeek. Anything
// older, or in the future, belongs to no bucket.
func Classify(loggedOn, now time.Time) (model.Period, bool) {
	switch days := DaysBetween(loggedOn, now); {
	case days == 0:
		return model.PeriodToday, true
	case days == 1:
		return model.PeriodYesterday, true
	case days >= 2 && days <= lastWeekDays:
		return model.PeriodLastWeek, true
	}
	return "", false
}

// AnchorDate returns the calendar day a new meal in the given bucket is logged on.
func AnchorDate(p model.Period, now time.Time) time.Time {
	day := Day(now)
	switch p {
	case model.PeriodYesterday:
		return day.AddDate(0, 0, -1)
	case model.PeriodLastWeek:
		return day.AddDate(0, 0, -lastWeekDays)
	}
	return day
}

// Day truncates t to its calendar date, expressed as midnight UTC so that
// day arithmetic is not affected by DST transitions.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}
