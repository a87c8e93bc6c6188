// Package school hosts the canteen's school-side collaborators: the ordering
// calendar and the guardian-student directory.
package school

import (
	"context"
	"fmt"
	"time"

	"github.com/Cerjho/canteen-orders/internal/config"
)

const (
	defaultTimezone      = "Asia/Manila"
	defaultCutoff        = "09:30"
	defaultMaxFutureDays = 14
)

// Calendar decides whether a service date is orderable: weekdays only, not in
// the past, same-day orders close at the cutoff, and no further ahead than
// the configured horizon.
type Calendar struct {
	loc           *time.Location
	cutoffHour    int
	cutoffMinute  int
	maxFutureDays int
	now           func() time.Time
}

func NewCalendar(cfg config.CalendarConfig) (*Calendar, error) {
	tz := cfg.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("error loading calendar timezone %q: %w", tz, err)
	}

	cutoff := cfg.CutoffTime
	if cutoff == "" {
		cutoff = defaultCutoff
	}
	parsed, err := time.Parse("15:04", cutoff)
	if err != nil {
		return nil, fmt.Errorf("error parsing calendar cutoff %q: %w", cutoff, err)
	}

	maxDays := cfg.MaxFutureDays
	if maxDays <= 0 {
		maxDays = defaultMaxFutureDays
	}

	return &Calendar{
		loc:           loc,
		cutoffHour:    parsed.Hour(),
		cutoffMinute:  parsed.Minute(),
		maxFutureDays: maxDays,
		now:           time.Now,
	}, nil
}

func (c *Calendar) ValidateOrderDate(_ context.Context, scheduledFor time.Time) error {
	now := c.now().In(c.loc)
	target := scheduledFor.In(c.loc)

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.loc)
	serviceDay := time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, c.loc)

	if serviceDay.Before(today) {
		return fmt.Errorf("service date %s has already passed", serviceDay.Format("2006-01-02"))
	}
	if wd := serviceDay.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return fmt.Errorf("the canteen does not operate on %ss", wd)
	}
	if serviceDay.After(today.AddDate(0, 0, c.maxFutureDays)) {
		return fmt.Errorf("orders open at most %d days ahead", c.maxFutureDays)
	}
	if serviceDay.Equal(today) {
		cutoff := today.Add(time.Duration(c.cutoffHour)*time.Hour + time.Duration(c.cutoffMinute)*time.Minute)
		if !now.Before(cutoff) {
			return fmt.Errorf("same-day orders close at %02d:%02d", c.cutoffHour, c.cutoffMinute)
		}
	}
	return nil
}
