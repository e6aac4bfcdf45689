package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/keltjd-git-314/medical-monitor/internal/config"
	"github.com/keltjd-git-314/medical-monitor/internal/record"
	"github.com/keltjd-git-314/medical-monitor/internal/state"
)

func statusCmd() *cobra.Command {
	var monitorName string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Summarize a monitor's persisted state",
		Long: `Read a monitor's state file and print every tracked employee with its
current classification, without contacting the spreadsheet or Telegram.

Examples:
  medmonctl status --monitor canteen`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(monitorName)
		},
	}

	cmd.Flags().StringVarP(&monitorName, "monitor", "m", "", "Monitor name from the configuration (required)")
	_ = cmd.MarkFlagRequired("monitor")

	return cmd
}

func runStatus(monitorName string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	mc, err := cfg.Monitor(monitorName)
	if err != nil {
		return err
	}

	store := state.New(zap.NewNop(), cfg.System.StateDir, mc.Name)
	if !store.Load() {
		return fmt.Errorf("no state file for monitor %q at %s", mc.Name, store.Path())
	}

	entries := store.Snapshot()
	counts := map[record.Status]int{}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPOSITION\tDAYS LEFT\tSTATUS\tFIRST SEEN")
	for _, e := range entries {
		status := record.Classify(e.Record())
		counts[status]++

		days := fmt.Sprintf("%d", e.DaysLeft)
		if !e.HasMedicalBook {
			days = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.Name, e.Position, days, status, e.FirstSeen.Format("2006-01-02"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d tracked: %d expired, %d critical, %d without medical book, %d ok\n",
		len(entries),
		counts[record.StatusExpired],
		counts[record.StatusCritical],
		counts[record.StatusNoMedicalBook],
		counts[record.StatusOK],
	)
	return nil
}
