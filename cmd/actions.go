package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fleetremind/app"
	"github.com/kilianp07/fleetremind/core/events"
)

var watch bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one daily check now and print its report",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(svc *app.Service) error {
			if watch {
				cancel := svc.Bus.SubscribeFunc(func(e events.Event) {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s %s %s %s %s\n", e.Kind, e.Stage, e.ReminderID, e.Channel, e.Status)
				})
				defer cancel()
			}
			rep, err := svc.RunOnce(ctx(cmd))
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), rep); err != nil {
				return err
			}
			return rep.Err()
		})
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Repair or deactivate misconfigured reminders",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(svc *app.Service) error {
			rep, err := svc.Orchestrator.ManualCleanup(ctx(cmd), svc.Observer)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		})
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <reminder-id>",
	Short: "Send one reminder now regardless of its schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(svc *app.Service) error {
			res, err := svc.Orchestrator.SendReminder(ctx(cmd), args[0], svc.Observer)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		})
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry <log-id>",
	Short: "Re-send the reminder behind a failed delivery log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(svc *app.Service) error {
			res, err := svc.Orchestrator.Retry(ctx(cmd), args[0], svc.Observer)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		})
	},
}

func ctx(cmd *cobra.Command) context.Context {
	if c := cmd.Context(); c != nil {
		return c
	}
	return context.Background()
}

func init() {
	checkCmd.Flags().BoolVarP(&watch, "watch", "w", false, "print engine events to stderr while the check runs")
	rootCmd.AddCommand(checkCmd, cleanupCmd, sendCmd, retryCmd)
}
