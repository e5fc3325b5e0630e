package cmd

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	configPath string
	serverURL  string
	jsonOutput bool
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "notifier",
	Short: "Shopify order to WhatsApp notification service",
	Long: `notifier receives Shopify orders/create webhooks and forwards a summary
of each order to a WhatsApp number.

Run "notifier serve" to start the service; the other commands inspect a
running instance through its admin routes.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("NOTIFIER_CONFIG"), "path to a YAML config file")
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:3000", "base URL of a running notifier")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print raw JSON")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout for admin commands")
}

// NewCommandContext bounds an admin command by the --timeout flag.
func NewCommandContext(parent context.Context) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(parent, timeout)
	}
	return context.WithCancel(parent)
}

