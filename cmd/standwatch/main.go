package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rinkside/standwatch/internal/config"
	"github.com/rinkside/standwatch/internal/forecast"
	"github.com/rinkside/standwatch/internal/logger"
	"github.com/rinkside/standwatch/internal/reasoning"
	"github.com/rinkside/standwatch/internal/schedule"
	"github.com/rinkside/standwatch/internal/session"
	"github.com/rinkside/standwatch/internal/storage"
	"github.com/rinkside/standwatch/internal/telegram"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	var recorder storage.Recorder
	if cfg.Storage.DBPath != "" {
		store, err := storage.New(cfg.Storage.DBPath)
		if err != nil {
			logger.Fatal("Failed to initialize storage: %v", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("Failed to close storage: %v", err)
			}
		}()
		recorder = store
	} else {
		logger.Debug("Persistence disabled, sessions will not be recorded")
		recorder = storage.Noop{}
	}

	var remote reasoning.Classifier
	if cfg.Reasoning.Enabled {
		remote = reasoning.NewRemoteClassifier(
			cfg.Reasoning.Endpoint,
			cfg.Reasoning.APIKey,
			cfg.Reasoning.Model,
			cfg.Reasoning.Timeout,
		)
		logger.Info("Remote drift classifier enabled (model: %s)", cfg.Reasoning.Model)
	} else {
		logger.Debug("Remote drift classifier disabled, using rule-based causes")
	}

	provider := forecast.NewProfileProvider(
		cfg.Forecast.ReferenceAttendance,
		cfg.Forecast.LowBand,
		cfg.Forecast.HighBand,
	)
	manager := session.NewManager(cfg, provider, recorder, remote)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telegram.Enabled {
		telegramClient, err := telegram.NewClient(cfg.Telegram, cfg.Session.DefaultSpeed, manager)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		manager.Subscribe(telegramClient.HandleEvent)
		telegramClient.ListenForCommands(ctx)
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	scheduler := schedule.New(ctx, manager)
	if err := scheduler.Register(cfg.Schedule.Sessions); err != nil {
		logger.Fatal("Failed to register schedule: %v", err)
	}
	scheduler.Start()

	logger.Info("Stand watch service running (window: %dm, speed: %.0fx, schedule entries: %d)",
		cfg.Session.WindowMinutes,
		cfg.Session.DefaultSpeed,
		len(cfg.Schedule.Sessions),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received, cleaning up...")
	scheduler.Stop()
	if sess, ok := manager.Current(); ok {
		sess.Stop()
	}
	cancel()
}
