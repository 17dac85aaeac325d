package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/slot-scheduler/internal/booking"
	"github.com/example/slot-scheduler/internal/config"
	"github.com/example/slot-scheduler/internal/db"
	"github.com/example/slot-scheduler/internal/migrate"
	"github.com/example/slot-scheduler/internal/store"
)

func newBookingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "booking",
		Short: "Manage booking requests (non-UI)",
	}
	cmd.AddCommand(newBookingCreateCmd())
	cmd.AddCommand(newBookingListCmd())
	return cmd
}

func newBookingCreateCmd() *cobra.Command {
	var (
		facility    string
		date        string
		slotTime    string
		description string

		startDate string
		endDate   string
		weekdays  []int
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Create a booking request, or a recurring range with --start-date/--end-date",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			bookings, cleanup, err := openBookings(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			f := booking.Facility(facility)

			// Range mode: expand weekdays between the bounds into one
			// booking per date sharing a bulk id.
			if startDate != "" || endDate != "" {
				if startDate == "" || endDate == "" {
					return fmt.Errorf("--start-date and --end-date must be given together")
				}
				days := make([]time.Weekday, 0, len(weekdays))
				for _, d := range weekdays {
					if d < 0 || d > 6 {
						return fmt.Errorf("--weekday must be 0 (Sunday) through 6 (Saturday)")
					}
					days = append(days, time.Weekday(d))
				}
				dates := booking.ExpandRange(startDate, endDate, days)
				if len(dates) == 0 {
					return fmt.Errorf("no dates match the given weekdays and range")
				}
				created := booking.ExpandBulk(f, slotTime, dates, description)
				for _, b := range created {
					if err := b.Validate(); err != nil {
						return err
					}
					if err := bookings.Create(ctx, b); err != nil {
						return err
					}
					fmt.Fprintf(os.Stdout, "created %s %s %s %s bulk=%s\n", b.ID, b.Facility, b.Date, b.Time, b.BulkID)
				}
				fmt.Fprintf(os.Stdout, "%d bookings created; they will be armed next server start\n", len(created))
				return nil
			}

			b := booking.Booking{
				ID:          booking.NewID(),
				Facility:    f,
				Date:        date,
				Time:        slotTime,
				Status:      booking.StatusPending,
				Description: description,
			}
			if err := b.Validate(); err != nil {
				return err
			}
			if taken, err := bookings.SlotConfirmed(ctx, b.Facility, b.Date, b.Time); err != nil {
				return err
			} else if taken {
				return fmt.Errorf("slot %s %s %s is already booked", b.Facility, b.Date, b.Time)
			}
			if err := bookings.Create(ctx, b); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "created %s %s %s %s\n", b.ID, b.Facility, b.Date, b.Time)
			return nil
		},
	}

	c.Flags().StringVar(&facility, "facility", "", "facility: "+joinFacilities())
	c.Flags().StringVar(&date, "date", "", "slot date YYYY-MM-DD")
	c.Flags().StringVar(&slotTime, "time", "", "slot start HH:MM (24-hour)")
	c.Flags().StringVar(&description, "description", "", "optional description")
	c.Flags().StringVar(&startDate, "start-date", "", "range mode: first date YYYY-MM-DD")
	c.Flags().StringVar(&endDate, "end-date", "", "range mode: last date YYYY-MM-DD")
	c.Flags().IntSliceVar(&weekdays, "weekday", nil, "range mode: weekday to book, 0=Sunday (repeatable)")

	_ = c.MarkFlagRequired("facility")
	_ = c.MarkFlagRequired("time")
	return c
}

func newBookingListCmd() *cobra.Command {
	var status string
	c := &cobra.Command{
		Use:   "list",
		Short: "List booking requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			bookings, cleanup, err := openBookings(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			bs, err := bookings.List(ctx)
			if err != nil {
				return err
			}
			for _, b := range bs {
				if status != "" && string(b.Status) != status {
					continue
				}
				extra := ""
				if b.Immediate {
					extra = " immediate"
				}
				if b.BulkID != "" {
					extra += " bulk=" + b.BulkID
				}
				fmt.Fprintf(os.Stdout, "%s %-12s %s %s %s%s\n", b.ID, b.Facility, b.Date, b.Time, b.Status, extra)
			}
			return nil
		},
	}
	c.Flags().StringVar(&status, "status", "", "filter by status (pending, confirmed, failed)")
	return c
}

func openBookings(ctx context.Context) (*store.Bookings, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	d, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := migrate.Up(ctx, d); err != nil {
		d.Close()
		return nil, nil, err
	}
	return store.NewBookings(d), d.Close, nil
}

func joinFacilities() string {
	fs := booking.Facilities()
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
