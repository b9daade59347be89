package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDateAcceptsERPShapes(t *testing.T) {
	want := time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{
		"20260105",
		"20260105 00:00:00.000",
		"2026-01-05",
		"2026-01-05 13:45:10",
		"2026-01-05T13:45:10Z",
		"  20260105  ",
	} {
		got, ok := ParseDate(raw)
		require.True(t, ok, raw)
		require.Equal(t, want, got, raw)
	}
}

func TestParseDateRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "2026", "2026-1-5", "20261301", "20260230", "n/a", " 20260105"[:4]} {
		_, ok := ParseDate(raw)
		require.False(t, ok, raw)
	}
}

func TestWeekStart(t *testing.T) {
	monday := time.Date(2026, time.October, 12, 0, 0, 0, 0, time.UTC)
	require.Equal(t, monday, WeekStart(monday))
	require.Equal(t, monday, WeekStart(monday.AddDate(0, 0, 4)))
	require.Equal(t, monday, WeekStart(monday.AddDate(0, 0, 6)))
	require.Equal(t, monday.AddDate(0, 0, 7), WeekStart(monday.AddDate(0, 0, 7)))
}

func TestDaysBetweenFloors(t *testing.T) {
	due := time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, 20, DaysBetween(due, due.AddDate(0, 0, 20)))
	require.Equal(t, -3, DaysBetween(due, due.AddDate(0, 0, -3)))
	require.Equal(t, -1, DaysBetween(due, due.Add(-time.Hour)))
}

func TestDaysBetweenFarDates(t *testing.T) {
	today := time.Date(2026, time.March, 19, 0, 0, 0, 0, time.UTC)
	ancient, ok := ParseDate("00010101")
	require.True(t, ok)
	require.Equal(t, 739693, DaysBetween(ancient, today))

	distant, ok := ParseDate("99991231")
	require.True(t, ok)
	require.Equal(t, -2912365, DaysBetween(distant, today))
}

func TestCivilDateUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	instant := time.Date(2026, time.October, 20, 2, 0, 0, 0, time.UTC)
	require.Equal(t, time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC), CivilDate(instant, loc))
	require.Equal(t, "2026-10-20", DateKey(CivilDate(instant, time.UTC)))
}
