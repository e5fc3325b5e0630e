package main

import (
	"os"

	"github.com/Joshina1995/shopify-whatsapp-notifications/cmd/notifier/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
