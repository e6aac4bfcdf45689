package main

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/keltjd-git-314/medical-monitor/internal/config"
	"github.com/keltjd-git-314/medical-monitor/internal/notify"
)

func sendTestCmd() *cobra.Command {
	var monitorName string

	cmd := &cobra.Command{
		Use:   "send-test",
		Short: "Verify the Telegram bot token and deliver a test message",
		Long: `Call getMe to verify the configured bot token, then deliver a short test
message to every configured chat.

Examples:
  medmonctl send-test --monitor canteen`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSendTest(monitorName)
		},
	}

	cmd.Flags().StringVarP(&monitorName, "monitor", "m", "", "Monitor name from the configuration (required)")
	_ = cmd.MarkFlagRequired("monitor")

	return cmd
}

func runSendTest(monitorName string) error {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	mc, err := cfg.Monitor(monitorName)
	if err != nil {
		return err
	}

	sender, err := notify.NewTelegramSender(zap.NewNop(), notify.TelegramConfig{
		BotToken: mc.TelegramBotToken,
		ChatIDs:  mc.TelegramChatIDs,
		BaseURL:  cfg.System.TelegramBaseURL,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	username, err := sender.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("bot token verification failed: %w", err)
	}
	fmt.Printf("Bot verified: @%s\n", username)

	msg := notify.Message{
		Kind: notify.KindTest,
		Text: notify.ComposeTestMessage(mc.Name, time.Now()),
	}
	if err := sender.SendNow(ctx, msg); err != nil {
		return fmt.Errorf("test delivery failed: %w", err)
	}
	fmt.Printf("Test message delivered to %d chat(s)\n", len(mc.TelegramChatIDs))
	return nil
}
