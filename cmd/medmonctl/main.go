// medmonctl is a CLI for operating the medical-book monitor.
//
// Usage:
//
//	medmonctl check --monitor canteen
//	medmonctl check --monitor canteen --digest
//	medmonctl status --monitor canteen
//	medmonctl send-test --monitor canteen
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	configPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "medmonctl",
		Short:   "Operate medical-book expiry monitors",
		Long:    "medmonctl runs checks, inspects persisted state and verifies Telegram delivery for configured monitors.",
		Version: version,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML configuration file")

	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(sendTestCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
