package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/sayit-alarm/internal/config"
	"github.com/oshokin/sayit-alarm/internal/service/ctl"
	"github.com/oshokin/sayit-alarm/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// serverAddress overrides the daemon address from the configuration.
	serverAddress string
	// minutes is the snooze length.
	minutes int
	// retry keeps calling while the daemon is unreachable.
	retry bool

	// rootCmd represents the base command for talking to the daemon.
	rootCmd = &cobra.Command{
		Use:   "alarm-ctl",
		Short: "Control the alarm clock daemon.",
		Long: `Sends scheduling and delivery requests to a running alarm-clockd.

Every request carries the local user and hostname for the daemon's audit log.`,
	}
)

// actionCommand builds the subcommand running action on the alarm id argument.
func actionCommand(action ctl.Action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(action) + " [alarm-id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			alarmID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("parse alarm id %q: %w", args[0], err)
			}

			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &ctl.Options{
				ConfigPath:    configPath,
				ServerAddress: serverAddress,
				Action:        action,
				AlarmID:       alarmID,
				Minutes:       minutes,
				Retry:         retry,
			}

			return ctl.Run(ctx, options, cmd.OutOrStdout())
		},
	}
}

// Execute runs the alarm-ctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	snoozeCmd := actionCommand(ctl.ActionSnooze, "Snooze an alarm, ringing or not.")
	snoozeCmd.Flags().IntVarP(&minutes, "minutes", "m", 0, "snooze length, the daemon default when zero")

	rootCmd.AddCommand(
		actionCommand(ctl.ActionSchedule, "Register the next trigger of an alarm."),
		snoozeCmd,
		actionCommand(ctl.ActionCancel, "Cancel every pending trigger of an alarm."),
		actionCommand(ctl.ActionNext, "Print when an alarm fires next."),
		actionCommand(ctl.ActionChallenge, "Start the spoken challenge of a ringing alarm."),
		actionCommand(ctl.ActionDismiss, "Dismiss a ringing alarm."),
		actionCommand(ctl.ActionListen, "Listen again after a failed attempt or recognizer error."),
		actionCommand(ctl.ActionStopChallenge, "Abandon the challenge and let the alarm ring again."),
		actionCommand(ctl.ActionDisconnect, "Silence a ringing alarm without dismissing it."),
	)

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
		StringVarP(&serverAddress, "server", "s", "", "daemon address, overrides the configuration")
	rootCmd.PersistentFlags().
		BoolVarP(&retry, "retry", "r", false, "retry until the daemon is reachable")
}
