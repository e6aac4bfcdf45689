package main

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/keltjd-git-314/medical-monitor/internal/config"
	"github.com/keltjd-git-314/medical-monitor/internal/monitor"
	"github.com/keltjd-git-314/medical-monitor/internal/notify"
	"github.com/keltjd-git-314/medical-monitor/internal/sheets"
	"github.com/keltjd-git-314/medical-monitor/internal/state"
)

func checkCmd() *cobra.Command {
	var monitorName string
	var digest bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one immediate check for a configured monitor",
		Long: `Run one full check cycle for a monitor: fetch the worksheet, classify
employees, diff against persisted state, send notifications and save state.

Examples:
  # Regular check (new-employee notices only)
  medmonctl check --monitor canteen

  # Check plus the daily digest, regardless of the report time
  medmonctl check --monitor canteen --digest`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(monitorName, digest)
		},
	}

	cmd.Flags().StringVarP(&monitorName, "monitor", "m", "", "Monitor name from the configuration (required)")
	cmd.Flags().BoolVar(&digest, "digest", false, "Also send the daily digest")
	_ = cmd.MarkFlagRequired("monitor")

	return cmd
}

func runCheck(monitorName string, digest bool) error {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	mc, err := cfg.Monitor(monitorName)
	if err != nil {
		return err
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	source, err := sheets.NewClient(logger, sheets.ClientConfig{
		APIKey:  cfg.System.SheetsAPIKey,
		BaseURL: cfg.System.SheetsBaseURL,
	})
	if err != nil {
		return err
	}

	sender, err := notify.NewTelegramSender(logger, notify.TelegramConfig{
		BotToken: mc.TelegramBotToken,
		ChatIDs:  mc.TelegramChatIDs,
		BaseURL:  cfg.System.TelegramBaseURL,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sender.Start(ctx)

	store := state.New(logger, cfg.System.StateDir, mc.Name)
	store.Load()

	m, err := monitor.New(logger, monitor.Config{
		Name:             mc.Name,
		SpreadsheetID:    mc.SpreadsheetID,
		WorksheetName:    mc.WorksheetName,
		CheckInterval:    mc.CheckInterval(),
		DailyReportTime:  mc.DailyReportTime,
		SendNewEmployees: mc.SendNewEmployees,
	}, source, sender, store)
	if err != nil {
		return err
	}

	mode := monitor.DigestSkip
	if digest {
		mode = monitor.DigestForce
	}
	result := m.Check(ctx, mode)

	// Let the workers drain queued notifications before exiting.
	cancel()
	sender.Close()

	if result.Status != "success" {
		return fmt.Errorf("check ended with status %q", result.Status)
	}

	fmt.Printf("Monitor:    %s\n", mc.Name)
	fmt.Printf("Employees:  %d\n", result.TotalEmployees)
	fmt.Printf("Expired:    %d\n", len(result.Expired))
	fmt.Printf("Critical:   %d\n", len(result.Critical))
	fmt.Printf("No book:    %d\n", len(result.NoBook))
	fmt.Printf("Added:      %d\n", len(result.Added))
	fmt.Printf("Removed:    %d\n", len(result.Removed))
	fmt.Printf("Digest:     %v\n", result.DigestSent)
	return nil
}
