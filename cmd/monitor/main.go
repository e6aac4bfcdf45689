package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/keltjd-git-314/medical-monitor/internal/config"
	"github.com/keltjd-git-314/medical-monitor/internal/monitor"
	"github.com/keltjd-git-314/medical-monitor/internal/notify"
	"github.com/keltjd-git-314/medical-monitor/internal/scheduler"
	"github.com/keltjd-git-314/medical-monitor/internal/sheets"
	"github.com/keltjd-git-314/medical-monitor/internal/state"
)

func main() {
	var (
		configPath   string
		metricsAddr  string
		logLevel     string
		tickInterval time.Duration
	)

	flag.StringVar(&configPath, "config", "config.yaml", "Path to the YAML configuration file.")
	flag.StringVar(&metricsAddr, "metrics-bind-address", ":8080", "The address the metrics and health endpoints bind to.")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error).")
	flag.DurationVar(&tickInterval, "tick-interval", time.Minute, "Scheduler tick granularity.")
	flag.Parse()

	// Optional .env: local development convenience, absence is not an error.
	_ = godotenv.Load()

	logger, err := buildLogger(logLevel)
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Starting medical-monitor",
		zap.String("version", "dev"),
		zap.Int("monitors", len(cfg.Monitors)),
		zap.String("state_dir", cfg.System.StateDir),
	)

	source, err := sheets.NewClient(logger, sheets.ClientConfig{
		APIKey:  cfg.System.SheetsAPIKey,
		BaseURL: cfg.System.SheetsBaseURL,
	})
	if err != nil {
		logger.Fatal("Failed to create sheets client", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(logger)
	sched.SetTickInterval(tickInterval)

	var senders []*notify.TelegramSender
	for _, mc := range cfg.Monitors {
		sender, err := notify.NewTelegramSender(logger.With(zap.String("monitor", mc.Name)), notify.TelegramConfig{
			BotToken: mc.TelegramBotToken,
			ChatIDs:  mc.TelegramChatIDs,
			BaseURL:  cfg.System.TelegramBaseURL,
		})
		if err != nil {
			logger.Fatal("Failed to create telegram sender",
				zap.String("monitor", mc.Name), zap.Error(err))
		}
		sender.Start(ctx)
		senders = append(senders, sender)

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
			logger.Fatal("Failed to create monitor",
				zap.String("monitor", mc.Name), zap.Error(err))
		}

		sched.Add(scheduler.Job{
			Name:       m.Name(),
			Interval:   m.CheckInterval(),
			DueNow:     m.DigestDue,
			RunAtStart: true,
			Run: func(ctx context.Context, wallClock bool) {
				mode := monitor.DigestAuto
				if wallClock {
					mode = monitor.DigestForce
				}
				m.Check(ctx, mode)
			},
		})
	}

	httpServer := startHTTPServer(logger, metricsAddr)

	sched.Start(ctx)
	logger.Info("All monitors scheduled")

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	sched.Stop()
	for _, s := range senders {
		s.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	logger.Info("Shutdown complete")
}

// buildLogger creates a production zap logger with ISO8601 timestamps at the
// requested level.
func buildLogger(level string) (*zap.Logger, error) {
	logConfig := zap.NewProductionConfig()
	logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logConfig.Level = zap.NewAtomicLevelAt(parsed)
	return logConfig.Build()
}

// startHTTPServer serves Prometheus metrics and liveness probes.
func startHTTPServer(logger *zap.Logger, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Info("Metrics server listening", zap.String("address", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	return server
}
