package generic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/sales-engine/generic"
)

func TestWeekKeyOf_MondayStart(t *testing.T) {
	loc := generic.LoadLocation("")

	// 2025-02-10 is a Monday, 2025-02-16 the Sunday closing the same week.
	monday := time.Date(2025, time.February, 10, 0, 0, 0, 0, loc)
	sunday := time.Date(2025, time.February, 16, 23, 59, 0, 0, loc)

	assert.Equal(t, generic.WeekKey("2025-W07"), generic.WeekKeyOf(monday, loc))
	assert.Equal(t, generic.WeekKeyOf(monday, loc), generic.WeekKeyOf(sunday, loc))
	assert.Equal(t, generic.WeekKey("2025-W08"), generic.WeekKeyOf(sunday.Add(2*time.Minute), loc))
}

func TestWeekKeyOf_EvaluatedInBusinessTimezone(t *testing.T) {
	loc := generic.LoadLocation("America/Sao_Paulo")

	// Monday 01:00 UTC is still Sunday evening in Sao Paulo.
	instant := time.Date(2025, time.February, 17, 1, 0, 0, 0, time.UTC)

	assert.Equal(t, generic.WeekKey("2025-W07"), generic.WeekKeyOf(instant, loc))
	assert.Equal(t, generic.WeekKey("2025-W08"), generic.WeekKeyOf(instant, time.UTC))
}

func TestWeekKeyOf_UsesISOYearAcrossNewYear(t *testing.T) {
	loc := generic.LoadLocation("")

	// 2024-12-30 is a Monday and opens ISO week 1 of 2025, not a 2024 week.
	monday := time.Date(2024, time.December, 30, 9, 0, 0, 0, loc)
	newYear := time.Date(2025, time.January, 1, 9, 0, 0, 0, loc)

	assert.Equal(t, generic.WeekKey("2025-W01"), generic.WeekKeyOf(monday, loc))
	assert.Equal(t, generic.WeekKeyOf(monday, loc), generic.WeekKeyOf(newYear, loc))
	assert.NotEqual(t, generic.WeekKey("2024-W01"), generic.WeekKeyOf(monday, loc))
}

func TestWeekKey_MondayRoundTrip(t *testing.T) {
	loc := generic.LoadLocation("")
	for _, key := range []generic.WeekKey{"2025-W01", "2025-W07", "2024-W52", "2026-W53"} {
		monday := key.Monday(loc)
		assert.Equal(t, time.Monday, monday.Weekday(), key)
		assert.Equal(t, key, generic.WeekKeyOf(monday, loc))
	}
}

func TestParseWeekKey(t *testing.T) {
	_, err := generic.ParseWeekKey("2025-W07")
	require.NoError(t, err)

	for _, bad := range []string{"", "2025-07", "2025-W7", "2025-W54", "abcd-W01"} {
		_, err := generic.ParseWeekKey(bad)
		assert.ErrorIs(t, err, generic.ErrInvalidKey, bad)
	}
}

func TestMonthAndDateKeys(t *testing.T) {
	m, err := generic.ParseMonth("2025-02")
	require.NoError(t, err)

	assert.True(t, m.Contains("2025-02-28"))
	assert.False(t, m.Contains("2025-03-01"))
	assert.Equal(t, m, generic.Date("2025-02-14").Month())

	_, err = generic.ParseMonth("2025-13")
	assert.ErrorIs(t, err, generic.ErrInvalidKey)
	_, err = generic.ParseDate("2025-02-30")
	assert.ErrorIs(t, err, generic.ErrInvalidKey)
}

func TestDaysAndWeeksOfMonth(t *testing.T) {
	loc := generic.LoadLocation("")

	days := generic.DaysOf("2025-02")
	require.Len(t, days, 28)
	assert.Equal(t, generic.Date("2025-02-01"), days[0])
	assert.Equal(t, generic.Date("2025-02-28"), days[27])

	// Feb 2025 starts on a Saturday: W05 through W09.
	assert.Equal(t, []generic.WeekKey{"2025-W05", "2025-W06", "2025-W07", "2025-W08", "2025-W09"},
		generic.WeeksOf("2025-02", loc))
}
