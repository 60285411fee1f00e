package scheduler

import (
	"fmt"
	"time"
)

// Trigger decides whether a scheduled run may start at a given time. The
// runner still paces runs by its interval; a trigger only gates them.
type Trigger interface {
	Allowed(now time.Time) bool
}

// IntervalTrigger admits every scheduled run.
type IntervalTrigger struct{}

func (IntervalTrigger) Allowed(time.Time) bool { return true }

// TimeWindowTrigger admits runs only within [StartHour, EndHour) local hours.
// A window with StartHour > EndHour spans midnight, e.g. 22 to 6.
type TimeWindowTrigger struct {
	StartHour int
	EndHour   int
}

// NewTimeWindowTrigger validates the hour range.
func NewTimeWindowTrigger(startHour, endHour int) (TimeWindowTrigger, error) {
	if startHour < 0 || startHour > 23 || endHour < 0 || endHour > 23 {
		return TimeWindowTrigger{}, fmt.Errorf("window hours must be in [0, 23], got %d and %d", startHour, endHour)
	}
	if startHour == endHour {
		return TimeWindowTrigger{}, fmt.Errorf("window start and end hours must differ")
	}
	return TimeWindowTrigger{StartHour: startHour, EndHour: endHour}, nil
}

func (t TimeWindowTrigger) Allowed(now time.Time) bool {
	h := now.Hour()
	if t.StartHour < t.EndHour {
		return h >= t.StartHour && h < t.EndHour
	}
	return h >= t.StartHour || h < t.EndHour
}
