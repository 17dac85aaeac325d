// Package store is the Request Store: the durable collection of booking
// requests every other component treats as the source of truth. It is backed
// by Postgres, whose row-level locking serializes concurrent writes; the
// partial unique index on confirmed slots backs the no-duplicate-booking
// invariant even if two attempt pipelines race.
package store

import (
	"context"
	"time"

	"github.com/example/slot-scheduler/internal/booking"
	"github.com/example/slot-scheduler/internal/db"
)

type Bookings struct{ db *db.DB }

func NewBookings(d *db.DB) *Bookings { return &Bookings{db: d} }

const bookingCols = `id, facility, slot_date, slot_time, status, immediate, bulk_id, description, created_at, updated_at`

func (r *Bookings) Create(ctx context.Context, b booking.Booking) error {
	err := r.db.Exec(ctx, `
INSERT INTO bookings (id, facility, slot_date, slot_time, status, immediate, bulk_id, description)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7,''), NULLIF($8,''))`,
		b.ID, string(b.Facility), b.Date, b.Time, string(b.Status), b.Immediate, b.BulkID, b.Description,
	)
	return db.WrapNotFound(err)
}

func (r *Bookings) Get(ctx context.Context, id string) (booking.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingCols+` FROM bookings WHERE id=$1`, id)
	b, err := scanBooking(row)
	if err != nil {
		return booking.Booking{}, db.WrapNotFound(err)
	}
	return b, nil
}

func (r *Bookings) List(ctx context.Context) ([]booking.Booking, error) {
	return r.list(ctx, `SELECT `+bookingCols+` FROM bookings ORDER BY slot_date, slot_time, created_at`)
}

// ListPending feeds the scheduler's resumeAll: scheduling state is fully
// re-derivable from these rows, nothing else is persisted.
func (r *Bookings) ListPending(ctx context.Context) ([]booking.Booking, error) {
	return r.list(ctx, `SELECT `+bookingCols+` FROM bookings WHERE status='pending' ORDER BY slot_date, slot_time`)
}

func (r *Bookings) list(ctx context.Context, sql string, args ...any) ([]booking.Booking, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []booking.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Update rewrites the mutable fields of a pending booking (user edit path).
// Terminal bookings are immutable; the caller gets ErrNotFound if the row is
// gone and no rows affected if it is no longer pending.
func (r *Bookings) Update(ctx context.Context, b booking.Booking) error {
	n, err := r.db.ExecRows(ctx, `
UPDATE bookings
SET facility=$2, slot_date=$3, slot_time=$4, immediate=$5, description=NULLIF($6,''), updated_at=now()
WHERE id=$1 AND status='pending'`,
		b.ID, string(b.Facility), b.Date, b.Time, b.Immediate, b.Description,
	)
	if err != nil {
		return db.WrapNotFound(err)
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}

// Resolve moves a booking from pending to a terminal status and clears the
// immediate flag. The status guard in the WHERE clause makes the transition
// at-most-once even across concurrent schedulers: the second caller sees
// applied=false and must not re-attempt.
func (r *Bookings) Resolve(ctx context.Context, id string, st booking.Status) (bool, error) {
	n, err := r.db.ExecRows(ctx, `
UPDATE bookings
SET status=$2, immediate=FALSE, updated_at=now()
WHERE id=$1 AND status='pending'`, id, string(st))
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SlotConfirmed reports whether a confirmed booking already holds the slot.
func (r *Bookings) SlotConfirmed(ctx context.Context, f booking.Facility, date, hhmm string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
SELECT EXISTS(SELECT 1 FROM bookings WHERE facility=$1 AND slot_date=$2 AND slot_time=$3 AND status='confirmed')`,
		string(f), date, hhmm).Scan(&exists)
	return exists, err
}

func scanBooking(row db.Row) (booking.Booking, error) {
	var (
		b        booking.Booking
		facility string
		status   string
		slotDate time.Time
		bulkID   *string
		descr    *string
	)
	if err := row.Scan(&b.ID, &facility, &slotDate, &b.Time, &status, &b.Immediate, &bulkID, &descr, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return booking.Booking{}, err
	}
	b.Facility = booking.Facility(facility)
	b.Status = booking.Status(status)
	b.Date = slotDate.Format(booking.DateLayout)
	if bulkID != nil {
		b.BulkID = *bulkID
	}
	if descr != nil {
		b.Description = *descr
	}
	return b, nil
}
