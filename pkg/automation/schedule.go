package automation

import (
	"fmt"
	"strings"
	"time"
)

// Schedule describes when scheduled syncs run.
//
//	kind      expr
//	interval  Go duration, e.g. "30m"
//	daily     wall clock time "HH:MM"
//	cron      one of @hourly, @daily, @weekly
type Schedule struct {
	Kind     string `mapstructure:"kind"`
	Expr     string `mapstructure:"expr"`
	Timezone string `mapstructure:"timezone"`
}

// NextRun computes the next run time strictly after from, in UTC.
func NextRun(s Schedule, from time.Time) (time.Time, error) {
	location := time.UTC
	if s.Timezone != "" {
		loc, err := time.LoadLocation(s.Timezone)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
		}
		location = loc
	}
	localFrom := from.In(location)

	switch strings.ToLower(s.Kind) {
	case "interval":
		d, err := time.ParseDuration(s.Expr)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid interval expression %q: %w", s.Expr, err)
		}
		if d <= 0 {
			return time.Time{}, fmt.Errorf("interval must be > 0")
		}
		return localFrom.Add(d).UTC(), nil
	case "daily":
		at, err := time.Parse("15:04", strings.TrimSpace(s.Expr))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid daily expression %q (expected HH:MM): %w", s.Expr, err)
		}
		next := time.Date(localFrom.Year(), localFrom.Month(), localFrom.Day(), at.Hour(), at.Minute(), 0, 0, location)
		if !next.After(localFrom) {
			next = next.AddDate(0, 0, 1)
		}
		return next.UTC(), nil
	case "cron":
		next, err := nextShortcut(s.Expr, localFrom)
		if err != nil {
			return time.Time{}, err
		}
		return next.UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported schedule kind %q", s.Kind)
	}
}

func nextShortcut(expr string, from time.Time) (time.Time, error) {
	midnight := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	switch strings.TrimSpace(expr) {
	case "@hourly":
		return from.Truncate(time.Hour).Add(time.Hour), nil
	case "@daily":
		return midnight.AddDate(0, 0, 1), nil
	case "@weekly":
		weekdayOffset := (7 - int(from.Weekday())) % 7
		if weekdayOffset == 0 {
			weekdayOffset = 7
		}
		return midnight.AddDate(0, 0, weekdayOffset), nil
	}
	return time.Time{}, fmt.Errorf("unsupported cron expression %q (use @hourly, @daily or @weekly)", expr)
}
