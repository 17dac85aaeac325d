package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/slot-scheduler/internal/config"
	"github.com/example/slot-scheduler/internal/crypto"
	"github.com/example/slot-scheduler/internal/db"
	"github.com/example/slot-scheduler/internal/migrate"
	"github.com/example/slot-scheduler/internal/store"
)

func newPortalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portal",
		Short: "Manage the portal account the scheduler logs in with",
	}
	cmd.AddCommand(newPortalSetCmd())
	return cmd
}

func newPortalSetCmd() *cobra.Command {
	var username, password string

	c := &cobra.Command{
		Use:   "set",
		Short: "Store the portal credentials (password sealed at rest)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			key, err := cfg.CredKey()
			if err != nil {
				return err
			}
			aead, err := crypto.New(key)
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

			if err := store.NewCredentials(d, aead).Set(ctx, username, password); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "portal credentials stored for %q\n", username)
			return nil
		},
	}

	c.Flags().StringVar(&username, "username", "", "portal username")
	c.Flags().StringVar(&password, "password", "", "portal password")
	_ = c.MarkFlagRequired("username")
	_ = c.MarkFlagRequired("password")
	return c
}
