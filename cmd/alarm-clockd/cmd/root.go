package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/sayit-alarm/internal/config"
	"github.com/oshokin/sayit-alarm/internal/service/alarms"
	"github.com/oshokin/sayit-alarm/internal/service/daemon"
	"github.com/oshokin/sayit-alarm/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// database overrides the SQLite alarm store from the configuration.
	database string
	// prune deletes stored alarms missing from the imported file.
	prune bool

	// rootCmd represents the base command for running the alarm clock daemon.
	rootCmd = &cobra.Command{
		Use:   "alarm-clockd [listen-address]",
		Short: "Run the alarm clock daemon.",
		Long: `Starts the alarm clock daemon that schedules alarms, rings them and verifies
the spoken dismissal challenge.

Only the port from server_addr config is used for listening (e.g., :7070).
Listen address can be provided as argument to override config (e.g., :9090, 0.0.0.0:7070).
Pending wakeups are persisted to a JSON file and re-armed on start.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &daemon.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				Database:      database,
			}

			return daemon.Run(ctx, options)
		},
	}

	// alarmsCmd groups the alarm store maintenance subcommands.
	alarmsCmd = &cobra.Command{
		Use:   "alarms",
		Short: "Manage the alarm store.",
	}

	// importCmd loads alarm definitions from YAML.
	importCmd = &cobra.Command{
		Use:   "import [file]",
		Short: "Import alarms from a YAML file.",
		Long: `Imports alarm definitions into the alarm store, replacing alarms with the same id.
The running daemon picks the changes up on its next reconcile.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return alarms.RunImport(cmd.Context(), &alarms.Options{
				ConfigPath: configPath,
				Database:   database,
				File:       args[0],
				Prune:      prune,
			})
		},
	}

	// listCmd prints the stored alarms.
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Print the stored alarms as YAML.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			options := &alarms.Options{
				ConfigPath: configPath,
				Database:   database,
			}

			return alarms.RunList(cmd.Context(), options, cmd.OutOrStdout())
		},
	}
)

// Execute runs the alarm-clockd CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	alarmsCmd.AddCommand(importCmd, listCmd)
	rootCmd.AddCommand(alarmsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVarP(&database, "database", "d", "", "path to the SQLite alarm store, overrides the configuration")
	importCmd.Flags().BoolVar(&prune, "prune", false, "delete stored alarms missing from the file")
}
