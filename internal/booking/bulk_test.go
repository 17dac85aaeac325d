package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandRange(t *testing.T) {
	// June 2025: the 2nd is a Monday.
	dates := ExpandRange("2025-06-01", "2025-06-14", []time.Weekday{time.Monday, time.Wednesday})
	assert.Equal(t, []string{"2025-06-02", "2025-06-04", "2025-06-09", "2025-06-11"}, dates)
}

func TestExpandRangeInclusiveBounds(t *testing.T) {
	// Both endpoints are Sundays and both match.
	dates := ExpandRange("2025-06-01", "2025-06-08", []time.Weekday{time.Sunday})
	assert.Equal(t, []string{"2025-06-01", "2025-06-08"}, dates)
}

func TestExpandRangeEmpty(t *testing.T) {
	assert.Nil(t, ExpandRange("2025-06-01", "2025-06-14", nil), "no weekdays selected")
	assert.Nil(t, ExpandRange("2025-06-14", "2025-06-01", []time.Weekday{time.Monday}), "end before start")
	assert.Nil(t, ExpandRange("junk", "2025-06-14", []time.Weekday{time.Monday}))
	assert.Nil(t, ExpandRange("2025-06-01", "junk", []time.Weekday{time.Monday}))
}

func TestExpandBulk(t *testing.T) {
	dates := []string{"2025-06-02", "2025-06-09"}
	bs := ExpandBulk(FacilitySwimming, "08:00", dates, "laps")
	require.Len(t, bs, 2)

	for i, b := range bs {
		assert.Equal(t, FacilitySwimming, b.Facility)
		assert.Equal(t, dates[i], b.Date)
		assert.Equal(t, "08:00", b.Time)
		assert.Equal(t, StatusPending, b.Status)
		assert.Equal(t, "laps", b.Description)
		assert.NoError(t, b.Validate())
	}
	assert.Equal(t, bs[0].BulkID, bs[1].BulkID, "bulk id shared across the range")
	assert.NotEqual(t, bs[0].ID, bs[1].ID, "each booking is independent")

	assert.Nil(t, ExpandBulk(FacilitySwimming, "08:00", nil, ""))
}
