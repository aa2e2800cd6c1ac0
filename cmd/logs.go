package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fleetremind/app"
	"github.com/kilianp07/fleetremind/core/model"
	"github.com/kilianp07/fleetremind/core/store"
)

var (
	logStatus   string
	logChannel  string
	logReminder string
	logSince    time.Duration
	logLimit    int
	logJSON     bool
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "List delivery logs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		q := store.LogQuery{
			ReminderID: logReminder,
			Channel:    model.Channel(strings.ToLower(logChannel)),
			Status:     model.DeliveryStatus(strings.ToLower(logStatus)),
			Limit:      logLimit,
		}
		if logSince > 0 {
			q.Start = time.Now().Add(-logSince)
		}
		return withService(func(svc *app.Service) error {
			rows, err := svc.Logs.Query(ctx(cmd), q)
			if err != nil {
				return err
			}
			if logJSON {
				return printJSON(cmd.OutOrStdout(), rows)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tSENT\tREMINDER\tCHANNEL\tRECIPIENT\tSTATUS\tATTEMPTS\tERROR")
			for _, l := range rows {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
					l.ID, l.SentAt.Format(time.RFC3339), l.ReminderTitle, l.Channel, l.Recipient, l.Status, l.Attempts, l.ErrorMessage)
			}
			return w.Flush()
		})
	},
}

func init() {
	logsCmd.Flags().StringVar(&logStatus, "status", "", "filter by status (pending, delivered, failed)")
	logsCmd.Flags().StringVar(&logChannel, "channel", "", "filter by channel (email, whatsapp, telegram)")
	logsCmd.Flags().StringVar(&logReminder, "reminder", "", "filter by reminder id")
	logsCmd.Flags().DurationVar(&logSince, "since", 0, "only rows sent within this duration")
	logsCmd.Flags().IntVar(&logLimit, "limit", 50, "maximum rows")
	logsCmd.Flags().BoolVar(&logJSON, "json", false, "print JSON instead of a table")
	rootCmd.AddCommand(logsCmd)
}
