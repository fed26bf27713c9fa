package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/yungbote/scoolish-backend/internal/app"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var cfg app.Config

	serve := newServeCommand(&cfg)
	rootCmd := &cobra.Command{
		Use:           "scoolish",
		Short:         "Scoolish education tools backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := app.LoadEnvFiles(strings.TrimSpace(configFlag)); err != nil {
				return err
			}
			cfg = app.LoadConfig()
			return nil
		},
		RunE: serve.RunE,
	}
	rootCmd.Flags().AddFlagSet(serve.Flags())
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "TOML configuration file; environment variables take precedence")

	rootCmd.AddCommand(serve)
	rootCmd.AddCommand(newWorkerCommand(&cfg))
	rootCmd.AddCommand(newMigrateCommand(&cfg))
	return rootCmd
}

func newServeCommand(cfg *app.Config) *cobra.Command {
	var noWorker bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the job worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), *cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Serve(cmd.Context(), !noWorker)
		},
	}
	cmd.Flags().BoolVar(&noWorker, "no-worker", false, "Serve HTTP only; run jobs in a separate worker process")
	return cmd
}

func newWorkerCommand(cfg *app.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run only the job worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), *cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Work(cmd.Context())
		},
	}
}

func newMigrateCommand(cfg *app.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Migrate(*cfg)
		},
	}
}
