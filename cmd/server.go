package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/slot-scheduler/internal/auth"
	"github.com/example/slot-scheduler/internal/config"
	"github.com/example/slot-scheduler/internal/crypto"
	"github.com/example/slot-scheduler/internal/db"
	"github.com/example/slot-scheduler/internal/migrate"
	"github.com/example/slot-scheduler/internal/portal"
	"github.com/example/slot-scheduler/internal/scheduler"
	"github.com/example/slot-scheduler/internal/store"
	"github.com/example/slot-scheduler/internal/web"
)

func newServerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the booking API, UI, and scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := slog.New(slog.NewTextHandler(os.Stderr, nil))

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()
			if err := d.Ping(ctx); err != nil {
				return fmt.Errorf("db ping: %w", err)
			}
			if migrateUp {
				if err := migrate.Up(ctx, d); err != nil {
					return err
				}
			}

			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			hashKey, blockKey, err := cfg.SessionKeys()
			if err != nil {
				return err
			}

			bookings := store.NewBookings(d)
			authStore := auth.NewStore(d, hashKey, blockKey)

			creds, err := portalCredentials(ctx, cfg, d)
			if err != nil {
				return err
			}
			client := portal.New(creds, portal.WithBaseURL(cfg.PortalBaseURL))

			sched := scheduler.New(scheduler.Config{
				Store:          bookings,
				Attempter:      client,
				Window:         cfg.Window(),
				Location:       loc,
				Logger:         log,
				AttemptTimeout: cfg.AttemptTimeout(),
			})
			defer sched.Shutdown()

			// Every pending booking must hold a timer again before the API
			// can accept scheduling changes.
			if err := sched.ResumeAll(ctx); err != nil {
				return fmt.Errorf("resume pending bookings: %w", err)
			}

			srv := &web.Server{
				Auth:     authStore,
				Bookings: bookings,
				Sched:    sched,
				Window:   cfg.Window(),
				Loc:      loc,
				Log:      log,
			}
			log.Info("listening", "addr", cfg.ListenAddr)
			return web.Start(ctx, cfg.ListenAddr, srv.Routes())
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}

// portalCredentials prefers the sealed credentials in the store and falls
// back to PORTAL_USERNAME/PORTAL_PASSWORD from the environment.
func portalCredentials(ctx context.Context, cfg config.Config, d *db.DB) (portal.Credentials, error) {
	key, err := cfg.CredKey()
	if err != nil {
		return portal.Credentials{}, err
	}
	aead, err := crypto.New(key)
	if err != nil {
		return portal.Credentials{}, err
	}
	if user, pass, err := store.NewCredentials(d, aead).Get(ctx); err == nil {
		return portal.Credentials{Username: user, Password: pass}, nil
	} else if !db.IsNotFound(err) {
		return portal.Credentials{}, err
	}
	if cfg.PortalUsername == "" || cfg.PortalPassword == "" {
		return portal.Credentials{}, fmt.Errorf("no portal credentials: run `slotsched portal set` or set PORTAL_USERNAME/PORTAL_PASSWORD")
	}
	return portal.Credentials{Username: cfg.PortalUsername, Password: cfg.PortalPassword}, nil
}
