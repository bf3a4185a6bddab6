package dispatch

import (
	"fmt"
	"time"
)

// Schedule determines when a periodic job runs next.
type Schedule interface {
	Next(from time.Time) time.Time
	String() string
}

type intervalSchedule struct {
	every time.Duration
}

func (s intervalSchedule) Next(from time.Time) time.Time { return from.Add(s.every) }

func (s intervalSchedule) String() string { return fmt.Sprintf("every %v", s.every) }

type dailySchedule struct {
	hour   int
	minute int
	loc    *time.Location
}

func (s dailySchedule) Next(from time.Time) time.Time {
	local := from.In(s.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s dailySchedule) String() string {
	return fmt.Sprintf("daily at %02d:%02d %s", s.hour, s.minute, s.loc)
}

// Every runs at a fixed interval.
func Every(d time.Duration) Schedule {
	return intervalSchedule{every: d}
}

// DailyAt runs once a day at hour:minute in loc (UTC when nil).
func DailyAt(hour, minute int, loc *time.Location) Schedule {
	if loc == nil {
		loc = time.UTC
	}
	return dailySchedule{hour: hour, minute: minute, loc: loc}
}

// ParseDailyAt parses an "HH:MM" clock into a UTC DailyAt schedule.
func ParseDailyAt(clock string) (Schedule, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSchedule, clock)
	}
	return DailyAt(t.Hour(), t.Minute(), time.UTC), nil
}
