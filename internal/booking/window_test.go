package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoc(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	return loc
}

func at(t *testing.T, loc *time.Location, value string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02T15:04:05", value, loc)
	require.NoError(t, err)
	return ts
}

func TestAttemptDue(t *testing.T) {
	loc := mustLoc(t)
	w := DefaultWindow()

	// Slot at 2025-06-10 18:00 opens 2025-06-09 18:00, grace until 19:00.
	b := Booking{
		ID:       "booking-1",
		Facility: FacilityGymEvening,
		Date:     "2025-06-10",
		Time:     "18:00",
		Status:   StatusPending,
	}

	tests := []struct {
		name string
		now  string
		b    Booking
		want bool
	}{
		{"before opening", "2025-06-09T17:59:59", b, false},
		{"exactly at opening", "2025-06-09T18:00:00", b, true},
		{"inside grace", "2025-06-09T18:30:00", b, true},
		{"at grace boundary", "2025-06-09T19:00:00", b, true},
		{"past grace", "2025-06-09T19:00:01", b, false},
		{"well past grace", "2025-06-09T20:30:00", b, false},
		{"at slot start", "2025-06-10T18:00:00", b, false},
		{"after slot start", "2025-06-10T19:00:00", b, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, w.AttemptDue(tc.b, at(t, loc, tc.now), loc))
		})
	}
}

func TestAttemptDueImmediate(t *testing.T) {
	loc := mustLoc(t)
	w := DefaultWindow()

	imm := Booking{
		ID:        "booking-2",
		Facility:  FacilityGymEvening,
		Date:      "2025-06-10",
		Time:      "18:00",
		Status:    StatusPending,
		Immediate: true,
	}

	// 16 hours past opening, far outside the grace period, still due.
	assert.True(t, w.AttemptDue(imm, at(t, loc, "2025-06-10T10:00:00"), loc))

	// The immediate flag never rescues a slot that already started.
	assert.False(t, w.AttemptDue(imm, at(t, loc, "2025-06-10T18:00:00"), loc))
	assert.False(t, w.AttemptDue(imm, at(t, loc, "2025-06-11T09:00:00"), loc))

	// And never lets an attempt run before the window opens.
	assert.False(t, w.AttemptDue(imm, at(t, loc, "2025-06-09T12:00:00"), loc))
}

func TestAttemptDueBadSlot(t *testing.T) {
	loc := mustLoc(t)
	w := DefaultWindow()
	b := Booking{ID: "booking-3", Facility: FacilitySwimming, Date: "not-a-date", Time: "08:00"}
	assert.False(t, w.AttemptDue(b, time.Now(), loc))
}

func TestMissed(t *testing.T) {
	loc := mustLoc(t)
	w := DefaultWindow()
	b := Booking{ID: "booking-4", Facility: FacilityGymEvening, Date: "2025-06-10", Time: "18:00", Status: StatusPending}

	assert.False(t, w.Missed(b, at(t, loc, "2025-06-09T18:30:00"), loc), "inside grace is not missed")
	assert.True(t, w.Missed(b, at(t, loc, "2025-06-09T20:30:00"), loc), "1.5h past opening is missed")
	assert.False(t, w.Missed(b, at(t, loc, "2025-06-11T00:00:00"), loc), "slot in the past is not a miss, it is gone")

	imm := b
	imm.Immediate = true
	assert.False(t, w.Missed(imm, at(t, loc, "2025-06-09T20:30:00"), loc), "immediate bookings are never missed")
}

func TestWindowConfigurable(t *testing.T) {
	loc := mustLoc(t)
	// A 48h lead with a 2h grace shifts both boundaries.
	w := Window{Lead: 48 * time.Hour, Grace: 2 * time.Hour}
	b := Booking{ID: "booking-5", Facility: FacilitySwimming, Date: "2025-06-10", Time: "08:00", Status: StatusPending}

	assert.False(t, w.AttemptDue(b, at(t, loc, "2025-06-08T07:59:59"), loc))
	assert.True(t, w.AttemptDue(b, at(t, loc, "2025-06-08T08:00:00"), loc))
	assert.True(t, w.AttemptDue(b, at(t, loc, "2025-06-08T10:00:00"), loc))
	assert.False(t, w.AttemptDue(b, at(t, loc, "2025-06-08T10:00:01"), loc))
}

func TestOpensAt(t *testing.T) {
	loc := mustLoc(t)
	w := DefaultWindow()
	slot := at(t, loc, "2025-06-10T18:00:00")
	assert.Equal(t, at(t, loc, "2025-06-09T18:00:00"), w.OpensAt(slot))
}
