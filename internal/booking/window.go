package booking

import "time"

// Window holds the portal's timing rules. Lead is how far before a slot's
// start the portal opens bookings for it; Grace is how long after opening an
// automatic attempt is still considered timely. Both are configurable because
// the expiry behavior past the grace period is a deliberate policy knob, not
// a fixed property of the portal.
type Window struct {
	Lead  time.Duration
	Grace time.Duration
}

// DefaultWindow matches the portal's 24-hour opening rule with a one hour
// attempt grace period.
func DefaultWindow() Window {
	return Window{Lead: 24 * time.Hour, Grace: time.Hour}
}

// OpensAt returns the instant the portal starts accepting bookings for a slot.
func (w Window) OpensAt(slot time.Time) time.Time {
	return slot.Add(-w.Lead)
}

// AttemptDue reports whether now is the right moment to attempt the booking.
// It is pure: the answer depends only on the booking's fields, now, and loc.
//
// True iff the opening window has begun, the slot itself has not passed, and
// either we are still inside the grace period or the booking is flagged
// immediate. A malformed date/time yields false.
func (w Window) AttemptDue(b Booking, now time.Time, loc *time.Location) bool {
	slot, err := b.SlotAt(loc)
	if err != nil {
		return false
	}
	opens := w.OpensAt(slot)
	if now.Before(opens) || !now.Before(slot) {
		return false
	}
	return b.Immediate || now.Sub(opens) <= w.Grace
}

// Missed reports whether the booking's grace period has lapsed without the
// immediate flag set while the slot is still in the future. Such bookings are
// never attempted automatically; callers log them so the operator can
// intervene.
func (w Window) Missed(b Booking, now time.Time, loc *time.Location) bool {
	if b.Immediate {
		return false
	}
	slot, err := b.SlotAt(loc)
	if err != nil {
		return false
	}
	return now.Before(slot) && now.Sub(w.OpensAt(slot)) > w.Grace
}
