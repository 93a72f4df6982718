package calendar_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rental-engine/calendar"
)

func d(s string) calendar.Date { return calendar.MustParseDate(s) }

// =============================================================================
// WEEKEND CLASSIFICATION
// =============================================================================

func TestIsWeekendDay_FridayAndSaturday(t *testing.T) {
	// 2024-01-01 is a Monday.
	expected := map[string]bool{
		"2024-01-01": false, // Mon
		"2024-01-02": false, // Tue
		"2024-01-03": false, // Wed
		"2024-01-04": false, // Thu
		"2024-01-05": true,  // Fri
		"2024-01-06": true,  // Sat
		"2024-01-07": false, // Sun
	}
	for s, want := range expected {
		assert.Equal(t, want, calendar.IsWeekendDay(d(s)), s)
	}
}

func TestWeekend_CustomDays(t *testing.T) {
	w := calendar.NewWeekend(time.Saturday, time.Sunday)
	assert.True(t, w.Contains(time.Sunday))
	assert.False(t, w.Contains(time.Friday))
	assert.Equal(t, []time.Weekday{time.Sunday, time.Saturday}, w.Days())
}

func TestParseWeekday(t *testing.T) {
	wd, err := calendar.ParseWeekday("fri")
	require.NoError(t, err)
	assert.Equal(t, time.Friday, wd)

	wd, err = calendar.ParseWeekday("Saturday")
	require.NoError(t, err)
	assert.Equal(t, time.Saturday, wd)

	_, err = calendar.ParseWeekday("someday")
	assert.Error(t, err)
}

// =============================================================================
// OVERLAP
// =============================================================================

func TestIntervalsOverlap(t *testing.T) {
	tests := []struct {
		name       string
		a1, a2     string
		b1, b2     string
		wantResult bool
	}{
		{"partial overlap", "2024-03-01", "2024-03-05", "2024-03-04", "2024-03-06", true},
		{"adjacent after", "2024-03-01", "2024-03-05", "2024-03-05", "2024-03-06", false},
		{"adjacent before", "2024-03-05", "2024-03-08", "2024-03-01", "2024-03-05", false},
		{"contained", "2024-03-01", "2024-03-10", "2024-03-03", "2024-03-04", true},
		{"identical", "2024-03-01", "2024-03-05", "2024-03-01", "2024-03-05", true},
		{"disjoint", "2024-03-01", "2024-03-02", "2024-04-01", "2024-04-02", false},
		{"zero length inside", "2024-03-03", "2024-03-03", "2024-03-01", "2024-03-05", false},
		{"zero length self", "2024-03-03", "2024-03-03", "2024-03-03", "2024-03-03", false},
		{"inverted", "2024-03-05", "2024-03-01", "2024-03-02", "2024-03-04", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calendar.IntervalsOverlap(d(tt.a1), d(tt.a2), d(tt.b1), d(tt.b2))
			assert.Equal(t, tt.wantResult, got)

			// Symmetry
			swapped := calendar.IntervalsOverlap(d(tt.b1), d(tt.b2), d(tt.a1), d(tt.a2))
			assert.Equal(t, got, swapped, "overlap must be symmetric")
		})
	}
}

func TestInterval_Nights(t *testing.T) {
	i := calendar.NewInterval(d("2024-01-04"), d("2024-01-08"))
	assert.Equal(t, 4, i.Nights())

	var nights []string
	i.EachNight(func(n calendar.Date) { nights = append(nights, n.String()) })
	assert.Equal(t, []string{"2024-01-04", "2024-01-05", "2024-01-06", "2024-01-07"}, nights)

	assert.Equal(t, 0, calendar.NewInterval(d("2024-01-04"), d("2024-01-04")).Nights())
	assert.Equal(t, 0, calendar.NewInterval(d("2024-01-08"), d("2024-01-04")).Nights())
}

func TestInterval_NightsAcrossMonthBoundary(t *testing.T) {
	i := calendar.NewInterval(d("2024-02-27"), d("2024-03-02"))
	assert.Equal(t, 4, i.Nights(), "2024 is a leap year")
}

// =============================================================================
// PERIODS AND WINDOWS
// =============================================================================

func TestPeriod_ContainsIsInclusive(t *testing.T) {
	p := calendar.Period{Start: d("2024-02-01"), End: d("2024-02-29")}
	assert.True(t, p.Contains(d("2024-02-01")))
	assert.True(t, p.Contains(d("2024-02-29")))
	assert.False(t, p.Contains(d("2024-03-01")))
	assert.Equal(t, 29, p.Days())
}

func TestWindowsFor_MondayWeekStart(t *testing.T) {
	// GIVEN: Wednesday 2024-05-15
	w := calendar.WindowsFor(d("2024-05-15"))

	// THEN: the week starts Monday 2024-05-13 and the month on the 1st
	assert.Equal(t, "2024-05-15", w.Today.Start.String())
	assert.Equal(t, "2024-05-15", w.Today.End.String())
	assert.Equal(t, "2024-05-13", w.Week.Start.String())
	assert.Equal(t, "2024-05-01", w.Month.Start.String())
	assert.Equal(t, "2024-05-15", w.Month.End.String())
}

func TestWeekToDate_Sunday(t *testing.T) {
	// Sunday belongs to the week that started the previous Monday.
	w := calendar.WeekToDate(d("2024-05-19"))
	assert.Equal(t, "2024-05-13", w.Start.String())
	assert.Equal(t, 7, w.Days())
}

func TestMonth(t *testing.T) {
	p := calendar.Month(2024, time.February)
	assert.Equal(t, "2024-02-01", p.Start.String())
	assert.Equal(t, "2024-02-29", p.End.String())
}

func TestPeriod_BoundsInLocation(t *testing.T) {
	riyadh := time.FixedZone("AST", 3*60*60)
	from, to := calendar.Day(d("2024-05-15")).Bounds(riyadh)

	assert.Equal(t, time.Date(2024, 5, 14, 21, 0, 0, 0, time.UTC), from.UTC())
	assert.Equal(t, time.Date(2024, 5, 15, 21, 0, 0, 0, time.UTC), to.UTC())
}

func TestDateOf_UsesLocation(t *testing.T) {
	riyadh := time.FixedZone("AST", 3*60*60)
	instant := time.Date(2024, 5, 14, 22, 30, 0, 0, time.UTC)

	assert.Equal(t, "2024-05-15", calendar.DateOf(instant, riyadh).String())
	assert.Equal(t, "2024-05-14", calendar.DateOf(instant, time.UTC).String())
}

func TestDate_JSON(t *testing.T) {
	type payload struct {
		CheckIn calendar.Date `json:"check_in"`
	}
	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"check_in":"2024-03-01"}`), &p))
	assert.Equal(t, d("2024-03-01"), p.CheckIn)

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"check_in":"2024-03-01"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"check_in":"03/01/2024"}`), &p))
}
