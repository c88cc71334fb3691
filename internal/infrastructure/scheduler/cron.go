package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DailySchedule is a time of day at which a job runs once
type DailySchedule struct {
	Hour   int
	Minute int
}

// ParseDailySchedule parses a cron expression of the form "minute hour * * *".
// Day, month and weekday fields must be "*" when present.
func ParseDailySchedule(expr string) (DailySchedule, error) {
	parts := strings.Fields(expr)
	if len(parts) < 2 || len(parts) > 5 {
		return DailySchedule{}, fmt.Errorf("%w: expected \"minute hour * * *\", got %q", ErrInvalidConfig, expr)
	}
	for _, p := range parts[2:] {
		if p != "*" {
			return DailySchedule{}, fmt.Errorf("%w: only daily schedules are supported, got %q", ErrInvalidConfig, expr)
		}
	}

	minute, err := strconv.Atoi(parts[0])
	if err != nil || minute < 0 || minute > 59 {
		return DailySchedule{}, fmt.Errorf("%w: minute must be 0-59, got %q", ErrInvalidConfig, parts[0])
	}
	hour, err := strconv.Atoi(parts[1])
	if err != nil || hour < 0 || hour > 23 {
		return DailySchedule{}, fmt.Errorf("%w: hour must be 0-23, got %q", ErrInvalidConfig, parts[1])
	}
	return DailySchedule{Hour: hour, Minute: minute}, nil
}

// Due reports whether t falls in the scheduled minute
func (d DailySchedule) Due(t time.Time) bool {
	return t.Hour() == d.Hour && t.Minute() == d.Minute
}

// Next returns the first scheduled time strictly after t
func (d DailySchedule) Next(t time.Time) time.Time {
	next := time.Date(t.Year(), t.Month(), t.Day(), d.Hour, d.Minute, 0, 0, t.Location())
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (d DailySchedule) String() string {
	return fmt.Sprintf("%02d:%02d daily", d.Hour, d.Minute)
}
