package period_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentacar/internal/domain/shared/period"
)

var now = time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

func day(offset int) time.Time {
	return time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func mustPeriod(t *testing.T, from, to int) period.BookingPeriod {
	t.Helper()
	p, err := period.New(day(from), day(to), now)
	require.NoError(t, err)
	return p
}

func reasonOf(t *testing.T, err error) string {
	t.Helper()
	var perr *period.InvalidPeriodError
	require.ErrorAs(t, err, &perr)
	return perr.Reason
}

func TestNew_ValidPeriodsComputeInclusiveDays(t *testing.T) {
	cases := []struct{ from, to, days int }{
		{0, 1, 2},
		{7, 10, 4},
		{30, 60, 31},
		{0, 89, 90},
	}
	for _, tc := range cases {
		p := mustPeriod(t, tc.from, tc.to)
		assert.Equal(t, tc.days, p.Days(), "period %d..%d", tc.from, tc.to)
		assert.Equal(t, tc.to-tc.from+1, p.Days())
	}
}

func TestNew_PickupToday_IsAllowed(t *testing.T) {
	p := mustPeriod(t, 0, 3)

	assert.Equal(t, day(0), p.PickupDate())
}

func TestNew_PickupInPast(t *testing.T) {
	_, err := period.New(day(-1), day(3), now)

	assert.ErrorIs(t, err, period.ErrInvalidPeriod)
	assert.Equal(t, "pickup date cannot be in the past", reasonOf(t, err))
}

func TestNew_ReturnNotAfterPickup(t *testing.T) {
	for _, to := range []int{5, 4} {
		_, err := period.New(day(5), day(to), now)

		assert.ErrorIs(t, err, period.ErrInvalidPeriod)
		assert.Equal(t, "return date must be after pickup date", reasonOf(t, err))
	}
}

func TestNew_MaximumLength(t *testing.T) {
	ok, err := period.New(day(1), day(90), now)
	require.NoError(t, err)
	assert.Equal(t, 90, ok.Days())

	_, err = period.New(day(1), day(91), now)
	assert.ErrorIs(t, err, period.ErrInvalidPeriod)
	assert.Equal(t, "rental period cannot exceed 90 days", reasonOf(t, err))
}

func TestNew_TruncatesTimeOfDay(t *testing.T) {
	p, err := period.New(day(2).Add(18*time.Hour), day(4).Add(time.Hour), now)

	require.NoError(t, err)
	assert.Equal(t, day(2), p.PickupDate())
	assert.Equal(t, day(4), p.ReturnDate())
	assert.Equal(t, 3, p.Days())
}

func TestDate_KeepsCallerCalendarDay(t *testing.T) {
	brisbane := time.FixedZone("AEST", 10*60*60)
	chicago := time.FixedZone("CDT", -5*60*60)

	assert.Equal(t, time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), period.Date(time.Date(2026, 10, 18, 0, 0, 0, 0, brisbane)))
	assert.Equal(t, time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC), period.Date(time.Date(2026, 10, 17, 23, 30, 0, 0, chicago)))
	assert.True(t, period.Date(time.Time{}).IsZero())
}

func TestParse(t *testing.T) {
	p, err := period.Parse("2026-03-17", "2026-03-20", now)
	require.NoError(t, err)
	assert.Equal(t, 4, p.Days())

	_, err = period.Parse("17/03/2026", "2026-03-20", now)
	assert.ErrorIs(t, err, period.ErrInvalidPeriod)
}

func TestOverlapsWith(t *testing.T) {
	base := mustPeriod(t, 10, 15)
	cases := []struct {
		name     string
		from, to int
		want     bool
	}{
		{"partial tail", 13, 18, true},
		{"partial head", 5, 10, true},
		{"contained", 11, 12, true},
		{"containing", 1, 30, true},
		{"same", 10, 15, true},
		{"starts on return day", 15, 20, true},
		{"adjacent after", 16, 20, false},
		{"adjacent before", 5, 9, false},
		{"disjoint", 20, 25, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			other := mustPeriod(t, tc.from, tc.to)
			assert.Equal(t, tc.want, base.OverlapsWith(other))
			assert.Equal(t, base.OverlapsWith(other), other.OverlapsWith(base), "overlap must be symmetric")
		})
	}
}

func TestHasStarted(t *testing.T) {
	p := mustPeriod(t, 2, 5)

	assert.False(t, p.HasStarted(now))
	assert.True(t, p.HasStarted(day(2)))
	assert.True(t, p.HasStarted(day(4).Add(23*time.Hour)))
}

func TestRestore_SkipsCreationRules(t *testing.T) {
	p := period.Restore(day(-20), day(-15))

	assert.Equal(t, 6, p.Days())
}

func TestJSON_RoundTripsDates(t *testing.T) {
	p, err := period.New(day(2), day(5), now)
	require.NoError(t, err)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"pickup_date":"2026-03-12","return_date":"2026-03-15"}`, string(data))

	var back period.BookingPeriod
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, p, back)
}
