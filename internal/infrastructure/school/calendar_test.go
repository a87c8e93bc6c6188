package school

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cerjho/canteen-orders/internal/config"
)

func testCalendar(t *testing.T, now time.Time) *Calendar {
	t.Helper()
	cal, err := NewCalendar(config.CalendarConfig{
		Timezone:      "Asia/Manila",
		CutoffTime:    "09:30",
		MaxFutureDays: 14,
	})
	require.NoError(t, err)
	cal.now = func() time.Time { return now }
	return cal
}

func TestValidateOrderDate(t *testing.T) {
	manila, err := time.LoadLocation("Asia/Manila")
	require.NoError(t, err)

	// Monday 2026-03-02, 08:00 local
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, manila)
	ctx := context.Background()

	t.Run("same day before cutoff", func(t *testing.T) {
		cal := testCalendar(t, now)
		assert.NoError(t, cal.ValidateOrderDate(ctx, now.Add(4*time.Hour)))
	})

	t.Run("same day at cutoff", func(t *testing.T) {
		cal := testCalendar(t, time.Date(2026, 3, 2, 9, 30, 0, 0, manila))
		err := cal.ValidateOrderDate(ctx, now.Add(4*time.Hour))
		assert.ErrorContains(t, err, "close at 09:30")
	})

	t.Run("next weekday", func(t *testing.T) {
		cal := testCalendar(t, now)
		assert.NoError(t, cal.ValidateOrderDate(ctx, now.AddDate(0, 0, 1)))
	})

	t.Run("past date", func(t *testing.T) {
		cal := testCalendar(t, now)
		err := cal.ValidateOrderDate(ctx, now.AddDate(0, 0, -1))
		assert.ErrorContains(t, err, "already passed")
	})

	t.Run("weekend", func(t *testing.T) {
		cal := testCalendar(t, now)
		err := cal.ValidateOrderDate(ctx, now.AddDate(0, 0, 5)) // Saturday
		assert.ErrorContains(t, err, "does not operate")
	})

	t.Run("beyond horizon", func(t *testing.T) {
		cal := testCalendar(t, now)
		err := cal.ValidateOrderDate(ctx, now.AddDate(0, 0, 16)) // a Wednesday
		assert.ErrorContains(t, err, "14 days ahead")
	})

	t.Run("horizon boundary is orderable", func(t *testing.T) {
		cal := testCalendar(t, now)
		assert.NoError(t, cal.ValidateOrderDate(ctx, now.AddDate(0, 0, 14))) // Monday two weeks out
	})

	t.Run("foreign timezone input is normalized", func(t *testing.T) {
		cal := testCalendar(t, now)
		// Monday 23:30 UTC is Tuesday morning in Manila
		utcEvening := time.Date(2026, 3, 2, 23, 30, 0, 0, time.UTC)
		assert.NoError(t, cal.ValidateOrderDate(ctx, utcEvening))
	})
}

func TestNewCalendar(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cal, err := NewCalendar(config.CalendarConfig{})
		require.NoError(t, err)
		assert.Equal(t, 9, cal.cutoffHour)
		assert.Equal(t, 30, cal.cutoffMinute)
		assert.Equal(t, 14, cal.maxFutureDays)
	})

	t.Run("bad timezone", func(t *testing.T) {
		_, err := NewCalendar(config.CalendarConfig{Timezone: "Mars/Olympus"})
		assert.Error(t, err)
	})

	t.Run("bad cutoff", func(t *testing.T) {
		_, err := NewCalendar(config.CalendarConfig{CutoffTime: "half past nine"})
		assert.Error(t, err)
	})
}
