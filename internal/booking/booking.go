package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status is an end state. Terminal bookings are
// never re-attempted; they stay in the store for history.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

func (s Status) Valid() bool {
	return s == StatusPending || s.Terminal()
}

// Booking is one request to claim a facility slot on the portal.
//
// Immediate marks a booking created after its opening window had already
// begun: the scheduler fires it right away instead of computing a trigger
// instant that is already in the past. The flag is cleared once an attempt
// has been made, whatever the outcome.
type Booking struct {
	ID          string   `json:"id"`
	Facility    Facility `json:"facility"`
	Date        string   `json:"date"` // YYYY-MM-DD, portal-local wall clock
	Time        string   `json:"time"` // HH:MM, 24-hour
	Status      Status   `json:"status"`
	Immediate   bool     `json:"immediate,omitempty"`
	BulkID      string   `json:"bulkId,omitempty"`
	Description string   `json:"description,omitempty"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// SlotAt combines Date and Time into the slot's start instant in loc.
func (b Booking) SlotAt(loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, b.Date+" "+b.Time, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("booking %s: bad slot: %w", b.ID, err)
	}
	return t, nil
}

func (b Booking) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return fmt.Errorf("id required")
	}
	if b.Facility == "" {
		return fmt.Errorf("facility required")
	}
	if !b.Facility.Valid() {
		return fmt.Errorf("unknown facility %q", b.Facility)
	}
	if b.Date == "" {
		return fmt.Errorf("date required")
	}
	if _, err := time.Parse(DateLayout, b.Date); err != nil {
		return fmt.Errorf("date must be YYYY-MM-DD")
	}
	if b.Time == "" {
		return fmt.Errorf("time required")
	}
	if _, err := time.Parse(TimeLayout, b.Time); err != nil {
		return fmt.Errorf("time must be HH:MM (24-hour)")
	}
	if !ValidSlot(b.Facility, b.Time) {
		return fmt.Errorf("%s has no slot at %s", b.Facility, b.Time)
	}
	if !b.Status.Valid() {
		return fmt.Errorf("invalid status %q", b.Status)
	}
	return nil
}

// NewID returns a fresh booking id in the `booking-xxxxxxxx` form.
func NewID() string {
	return "booking-" + uuid.NewString()[:8]
}

// NewBulkID returns a correlation id shared by bookings created from one
// recurring-range submission.
func NewBulkID() string {
	return "bulk-" + uuid.NewString()[:8]
}
