package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ts(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

func TestDailySchedule(t *testing.T) {
	now := ts(2026, time.August, 15)

	assert.True(t, DailySchedule(now, nil))

	yesterday := ts(2026, time.August, 14)
	assert.True(t, DailySchedule(now, &yesterday))

	earlierToday := time.Date(2026, 8, 15, 1, 0, 0, 0, time.UTC)
	assert.False(t, DailySchedule(now, &earlierToday))
}

func TestWeeklySchedule(t *testing.T) {
	// 2026-08-12 is a Wednesday; the week starts Monday 2026-08-10.
	now := ts(2026, time.August, 12)

	assert.True(t, WeeklySchedule(now, nil))

	lastFriday := ts(2026, time.August, 7)
	assert.True(t, WeeklySchedule(now, &lastFriday))

	monday := ts(2026, time.August, 10)
	assert.False(t, WeeklySchedule(now, &monday))
}

func TestMonthlySchedule(t *testing.T) {
	now := ts(2026, time.August, 15)

	assert.True(t, MonthlySchedule(now, nil))

	july := ts(2026, time.July, 31)
	assert.True(t, MonthlySchedule(now, &july))

	firstOfMonth := ts(2026, time.August, 1)
	assert.False(t, MonthlySchedule(now, &firstOfMonth))
}

func TestAnnualAfter(t *testing.T) {
	assert.True(t, AnnualAfter(ts(2026, time.August, 15), nil, time.July))

	beforeRelease := ts(2026, time.June, 1)
	assert.True(t, AnnualAfter(ts(2026, time.August, 15), &beforeRelease, time.July))

	afterRelease := ts(2026, time.July, 10)
	assert.False(t, AnnualAfter(ts(2026, time.August, 15), &afterRelease, time.July))

	// Before this year's release the previous sync still counts.
	lastYear := ts(2025, time.September, 1)
	assert.False(t, AnnualAfter(ts(2026, time.March, 1), &lastYear, time.July))
}
