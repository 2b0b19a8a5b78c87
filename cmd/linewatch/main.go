package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rewired-gh/linewatch/internal/betsapi"
	"github.com/rewired-gh/linewatch/internal/config"
	"github.com/rewired-gh/linewatch/internal/detector"
	"github.com/rewired-gh/linewatch/internal/logger"
	"github.com/rewired-gh/linewatch/internal/metrics"
	"github.com/rewired-gh/linewatch/internal/storage"
	"github.com/rewired-gh/linewatch/internal/telegram"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	envPath    = flag.String("env", ".env", "Path to .env file with credentials")
)

func main() {
	flag.Parse()

	envErr := godotenv.Load(*envPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)
	if envErr != nil {
		logger.Debug("No .env loaded from %s: %v", *envPath, envErr)
	}

	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()
	if cfg.Storage.BlacklistFile != "" {
		n, err := store.ImportFile(cfg.Storage.BlacklistFile)
		if err != nil {
			logger.Fatal("Failed to import blacklist: %v", err)
		}
		logger.Info("Imported %d leagues from %s", n, cfg.Storage.BlacklistFile)
	}

	source := betsapi.NewClient(
		cfg.BetsAPI.EventsURL,
		cfg.BetsAPI.OddsURL,
		cfg.BetsAPI.Token,
		cfg.BetsAPI.Timeout,
		betsapi.ClientConfig{
			SportID:        cfg.BetsAPI.SportID,
			MaxRetries:     cfg.BetsAPI.MaxRetries,
			RetryDelayBase: cfg.BetsAPI.RetryDelayBase,
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Addr, m)
		go func() {
			if err := srv.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server stopped: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("Serving metrics on %s", cfg.Metrics.Addr)
	}

	var telegramClient *telegram.Client
	var sink detector.Sink
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(
			cfg.Telegram.BotToken,
			cfg.Alerts.NoticeChannel,
			cfg.Telegram.AdminIDs,
			store,
			cfg.Telegram.MaxRetries,
			cfg.Telegram.RetryDelayBase,
		)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		sink = telegramClient
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	mon := detector.New(source, store, sink, m, cfg.MonitorConfig())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, finishing current poll...")
		cancel()
	}()

	if telegramClient != nil {
		telegramClient.ListenForCommands(ctx)
	}

	logger.Info("Starting line monitor (thresholds: %.2f/%.2f/%.2f, lookback: %v, buffer: %v)",
		cfg.Detector.SoftThreshold,
		cfg.Detector.MediumThreshold,
		cfg.Detector.HardThreshold,
		cfg.Detector.Lookback,
		cfg.Detector.Buffer,
	)

	consecutiveFailures := 0

	handlePollResult := func(err error) {
		if err != nil {
			consecutiveFailures++
			logger.Error("Poll failed: %v", err)
			if consecutiveFailures == 1 && telegramClient != nil {
				if sendErr := telegramClient.SendError(ctx, err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
			return
		}
		if consecutiveFailures > 0 && telegramClient != nil {
			if sendErr := telegramClient.SendRecovery(ctx, consecutiveFailures); sendErr != nil {
				logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
			}
		}
		consecutiveFailures = 0
	}

	for {
		// a started poll runs to completion so carried state stays consistent
		processed, err := mon.Poll(context.WithoutCancel(ctx))
		handlePollResult(err)

		delay := cfg.PollDelay(processed)
		if err != nil {
			delay = cfg.Poll.ErrorBackoff
		}
		logger.Debug("Next poll in %v", delay)

		select {
		case <-ctx.Done():
			logger.Info("Service stopped")
			return
		case <-time.After(delay):
		}
	}
}
