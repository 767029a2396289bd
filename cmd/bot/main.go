package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"flight-price-checker/internal/api/flights"
	"flight-price-checker/internal/bot"
	"flight-price-checker/internal/bot/handlers"
	"flight-price-checker/internal/bot/scheduler"
	"flight-price-checker/internal/config"
	"flight-price-checker/internal/logger"
	"flight-price-checker/internal/metrics"
	"flight-price-checker/internal/monitor"
	"flight-price-checker/internal/server"
	"flight-price-checker/internal/storage/postgres"
	"flight-price-checker/internal/storage/redis"
	"flight-price-checker/internal/workerpool"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("flight price checker stopped with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	log.Info("starting flight price checker",
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("check_interval", cfg.CheckInterval),
		zap.Int("max_monitors", cfg.MaxMonitors),
		zap.Int("max_workers", cfg.MaxWorkers),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	log.Info("connecting to PostgreSQL...")
	store, err := postgres.New(cfg.PostgresDSN, log)
	if err != nil {
		return fmt.Errorf("connect to PostgreSQL: %w", err)
	}
	defer store.Close()

	log.Info("connecting to Redis...")
	cache, err := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
	if err != nil {
		return fmt.Errorf("connect to Redis: %w", err)
	}
	defer cache.Close()

	fetcher := flights.New(cfg.FlightsBaseURL, cfg.FetchTimeout, cfg.FetchRatePerSec, cfg.UserAgent, log)
	fetcher.SetRetry(cfg.FetchRetries, func(attempt int) time.Duration {
		return time.Duration(5*attempt) * time.Second
	})
	fetcher.OnRetry = m.FetchRetry

	fetchPool := workerpool.New("fetch", cfg.MaxWorkers, log)
	fetchPool.OnOccupancy = m.PoolOccupancy
	storePool := workerpool.New("store", cfg.FileWorkers, log)
	storePool.OnOccupancy = m.PoolOccupancy

	registry := monitor.NewRegistry(store, cfg.MaxMonitors, cfg.AdminIDs, log)

	log.Info("initializing Telegram bot...")
	tgBot, err := bot.New(cfg, cache, store, log)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}

	sweeper := scheduler.NewSweeper(registry, store, storePool, tgBot, cfg, m, log)
	checker := scheduler.New(registry, store, fetcher, tgBot, sweeper, fetchPool, cfg, m, log)
	checker.UseLocker(cache)
	checker.UseStatsCache(cache)

	tgBot.Register(&handlers.Context{
		Registry: registry,
		Store:    store,
		Checker:  checker,
		Stats:    cache,
		Config:   cfg,
		Logger:   log,
	})

	api := server.New(cfg.HTTPAddr, server.Deps{
		Registry:  registry,
		Scheduler: checker,
		Checks: map[string]server.Pinger{
			"postgres": store,
			"redis":    cache,
		},
		Gatherer: reg,
		APIToken: cfg.APIToken,
		Logger:   log,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	var serverErr error

	wg.Add(3)
	go func() {
		defer wg.Done()
		checker.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := api.Run(ctx); err != nil {
			serverErr = err
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		_ = tgBot.Start(ctx)
	}()

	log.Info("bot is running...")

	select {
	case sig := <-sigChan:
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
	case <-checker.Halted():
		log.Error("scheduler halted, shutting down", zap.Error(checker.HaltErr()))
	case <-ctx.Done():
	}

	cancel()
	wg.Wait()

	log.Info("shut down gracefully")

	if err := checker.HaltErr(); err != nil {
		return fmt.Errorf("scheduler halted: %w", err)
	}
	return serverErr
}
