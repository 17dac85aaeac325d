package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/slot-scheduler/internal/booking"
	"github.com/example/slot-scheduler/internal/config"
	"github.com/example/slot-scheduler/internal/db"
	"github.com/example/slot-scheduler/internal/migrate"
	"github.com/example/slot-scheduler/internal/portal"
	"github.com/example/slot-scheduler/internal/scheduler"
	"github.com/example/slot-scheduler/internal/store"
)

// book-now covers the catch-up case: the 24-hour window for a slot has
// already opened, so waiting for a computed trigger instant would be waiting
// for a moment in the past. The booking is created with the immediate flag
// and, with --attempt, driven through the portal right here.
func newBookNowCmd() *cobra.Command {
	var (
		facility    string
		date        string
		slotTime    string
		description string
		attempt     bool
	)

	c := &cobra.Command{
		Use:   "book-now",
		Short: "Create an immediate booking for a slot whose window already opened",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()
			if err := migrate.Up(ctx, d); err != nil {
				return err
			}

			b := booking.Booking{
				ID:          booking.NewID(),
				Facility:    booking.Facility(facility),
				Date:        date,
				Time:        slotTime,
				Status:      booking.StatusPending,
				Immediate:   true,
				Description: description,
			}
			if b.Description == "" {
				b.Description = fmt.Sprintf("%s session on %s at %s", b.Facility.DisplayName(), date, slotTime)
			}
			if err := b.Validate(); err != nil {
				return err
			}

			bookings := store.NewBookings(d)
			if taken, err := bookings.SlotConfirmed(ctx, b.Facility, b.Date, b.Time); err != nil {
				return err
			} else if taken {
				return fmt.Errorf("slot %s %s %s is already booked", b.Facility, b.Date, b.Time)
			}
			if err := bookings.Create(ctx, b); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "created immediate booking %s\n", b.ID)

			if !attempt {
				fmt.Fprintln(os.Stdout, "it will be attempted when the server next starts")
				return nil
			}

			creds, err := portalCredentials(ctx, cfg, d)
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			sched := scheduler.New(scheduler.Config{
				Store:          bookings,
				Attempter:      portal.New(creds, portal.WithBaseURL(cfg.PortalBaseURL)),
				Window:         cfg.Window(),
				Location:       loc,
				Logger:         slog.New(slog.NewTextHandler(os.Stderr, nil)),
				AttemptTimeout: cfg.AttemptTimeout(),
			})
			sched.RunNow(ctx, b.ID)

			resolved, err := bookings.Get(ctx, b.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "booking %s: %s\n", resolved.ID, resolved.Status)
			return nil
		},
	}

	c.Flags().StringVar(&facility, "facility", "", "facility: "+joinFacilities())
	c.Flags().StringVar(&date, "date", "", "slot date YYYY-MM-DD")
	c.Flags().StringVar(&slotTime, "time", "", "slot start HH:MM (24-hour)")
	c.Flags().StringVar(&description, "description", "", "optional description")
	c.Flags().BoolVar(&attempt, "attempt", true, "attempt the booking right away")

	_ = c.MarkFlagRequired("facility")
	_ = c.MarkFlagRequired("date")
	_ = c.MarkFlagRequired("time")
	return c
}
