package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBeginningOfDay(t *testing.T) {
	loc := time.FixedZone("TST", -5*3600)
	ts := time.Date(2026, time.March, 14, 17, 42, 9, 123, loc)

	got := BeginningOfDay(ts)
	assert.Equal(t, time.Date(2026, time.March, 14, 0, 0, 0, 0, loc), got)
	assert.Equal(t, loc, got.Location())
}

func TestDaysBetween(t *testing.T) {
	start := time.Date(2026, time.January, 1, 23, 59, 0, 0, time.UTC)
	end := time.Date(2026, time.January, 31, 0, 1, 0, 0, time.UTC)

	// Calendar days, not 24h periods
	assert.Equal(t, 30, DaysBetween(start, end))
	assert.Equal(t, -30, DaysBetween(end, start))
	assert.Equal(t, 0, DaysBetween(start, start))
}

func TestIsPast(t *testing.T) {
	assert.True(t, IsPast(time.Now().AddDate(0, 0, -1)))
	assert.False(t, IsPast(time.Now()))
	assert.False(t, IsPast(time.Now().AddDate(0, 0, 1)))
}
