package main

import (
	"context"
	"time"

	"crimewatch/internal/app"
	"crimewatch/internal/config"
	"crimewatch/internal/logging"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "crimectl",
		Short:         "Crime report administration",
		Long:          "Administrative tasks for the crime report system: schema migration, staff accounts and report export.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(migrateCmd(), staffCmd(), reportCmd())
	return rootCmd
}

// withApp builds the application from the environment, runs fn and waits for
// queued mail before closing the database.
func withApp(fn func(a *app.App) error) error {
	cfg := config.Load()
	log, err := logging.New(cfg.Env)
	if err != nil {
		return err
	}
	defer log.Sync()

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	runErr := fn(a)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := a.Close(ctx); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				if err := a.Migrate(); err != nil {
					return err
				}
				cmd.Println("Database schema is up to date.")
				return nil
			})
		},
	}
}
