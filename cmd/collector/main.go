package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/1NT9NS9/finance-ai/internal/collector"
	"github.com/1NT9NS9/finance-ai/internal/config"
	"github.com/1NT9NS9/finance-ai/internal/indicator"
	"github.com/1NT9NS9/finance-ai/internal/orchestrator"
	"github.com/1NT9NS9/finance-ai/internal/scheduler"
	"github.com/1NT9NS9/finance-ai/internal/storage"
)

func main() {
	var (
		cfgPath = flag.String("config", "configs/config.yaml", "path to YAML config")
		once    = flag.Bool("once", false, "run a single collection cycle and exit")
		backup  = flag.Bool("backup", false, "export the dataset to CSV and exit")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found, relying on environment")
	}
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		*cfgPath = v
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
	logger.Info().Msg("finance-ai collector starting")

	store, err := storage.NewSQLiteStore(cfg.Database.SQLitePath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open storage")
	}
	defer store.Close()

	if *backup {
		files, err := storage.BackupCSV(store, cfg.Database.CSVBackupDir)
		if err != nil {
			logger.Fatal().Err(err).Msg("csv backup")
		}
		logger.Info().Int("files", files).Str("dir", cfg.Database.CSVBackupDir).Msg("csv backup complete")
		return
	}

	retry := collector.DefaultRetryPolicy()
	moexClient := collector.NewClient(collector.ClientOptions{
		BaseURL:        cfg.MOEX.BaseURL,
		Timeout:        cfg.MOEX.Timeout(),
		RequestsPerSec: cfg.MOEX.RequestsPerSec,
		Retry:          retry.WithAttempts(cfg.MOEX.RetryAttempts),
	})
	yahooClient := collector.NewClient(collector.ClientOptions{
		BaseURL:        cfg.Yahoo.BaseURL,
		Timeout:        cfg.Yahoo.Timeout(),
		RequestsPerSec: cfg.Yahoo.RequestsPerSec,
		Retry:          retry.WithAttempts(cfg.Yahoo.RetryAttempts),
	})
	defer moexClient.Close()
	defer yahooClient.Close()

	collectors := []collector.Collector{
		collector.NewMOEX(moexClient, logger),
		collector.NewYahoo(yahooClient, logger),
	}

	calc := indicator.New(indicator.Config{
		RSIPeriods:    cfg.Indicators.RSIPeriods,
		RSIOversold:   cfg.Indicators.RSIOversold,
		RSIOverbought: cfg.Indicators.RSIOverbought,
		MACDFast:      cfg.Indicators.MACDFast,
		MACDSlow:      cfg.Indicators.MACDSlow,
		MACDSignal:    cfg.Indicators.MACDSignal,
	}, logger)

	orch := orchestrator.New(store, collectors, calc, cfg.Collect.MaxConcurrent, logger)

	rc := orchestrator.RunConfig{Months: cfg.Period.Months, Symbols: cfg.Symbols}
	if cfg.Period.Start != "" {
		start, end, perr := cfg.PeriodRange(time.Now().UTC())
		if perr != nil {
			logger.Fatal().Err(perr).Msg("resolve period")
		}
		rc = orchestrator.RunConfig{Start: start, End: end, Symbols: cfg.Symbols}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *once {
		run, err := orch.Run(ctx, rc)
		if err != nil {
			logger.Fatal().Err(err).Msg("collection cycle")
		}
		logger.Info().
			Str("run_id", run.ID).
			Int("succeeded", run.Succeeded()).
			Int("failed", run.Failed()).
			Float64("success_rate", run.SuccessRate).
			Msg("collection cycle complete")
		return
	}

	sched := scheduler.New(ctx, orch, rc, logger)
	if err := sched.Register(cfg.Collect.Cron); err != nil {
		logger.Fatal().Err(err).Msg("register cron task")
	}
	sched.Start()
	defer sched.Stop()

	if os.Getenv("RUN_ON_START") == "true" {
		logger.Info().Msg("RUN_ON_START enabled, executing collection cycle now")
		go sched.RunNow()
	}

	logger.Info().Str("cron", cfg.Collect.Cron).Msg("collector is running, press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutdown signal received, stopping")
	cancel()
}
