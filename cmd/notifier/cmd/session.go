package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/session"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Show the WhatsApp session state and pending pairing code",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := NewCommandContext(cmd.Context())
		defer cancel()

		var status session.Status
		raw, err := adminGet(ctx, "/admin/session", nil, &status)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), raw)
		}
		printStatus(cmd.OutOrStdout(), status)
		return nil
	},
}

var sessionConnectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Ask the running notifier to pair its WhatsApp session again",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := NewCommandContext(cmd.Context())
		defer cancel()

		var status session.Status
		raw, err := adminPost(ctx, "/admin/session/connect", &status)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), raw)
		}
		printStatus(cmd.OutOrStdout(), status)
		return nil
	},
}

func printStatus(w io.Writer, status session.Status) {
	fmt.Fprintf(w, "State:    %s\n", status.State)
	fmt.Fprintf(w, "Since:    %s\n", status.ChangedAt.Format(time.RFC3339))
	if status.Reason != "" {
		fmt.Fprintf(w, "Reason:   %s\n", status.Reason)
	}
	if status.PairingCode != "" {
		fmt.Fprintf(w, "Pairing:  %s\n", status.PairingCode)
		fmt.Fprintln(w, "Scan the pairing code with WhatsApp to connect.")
	}
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionConnectCmd)
}
