package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"mssp-monitor/internal/api"
	"mssp-monitor/internal/auth"
	"mssp-monitor/internal/collector"
	"mssp-monitor/internal/config"
	"mssp-monitor/internal/directory"
	"mssp-monitor/internal/export"
	"mssp-monitor/internal/falcon"
	"mssp-monitor/internal/metrics"
	"mssp-monitor/internal/monitor"
	"mssp-monitor/internal/state"
)

// @title MSSP Monitor Ops API
// @version 1.0
// @description Operational endpoints for the CrowdStrike MSSP monitor daemon
// @BasePath /

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Init Metrics
	metrics.Init()

	// Load Configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	logger.Info("configuration loaded",
		zap.Duration("check_interval", cfg.Monitor.CheckInterval),
		zap.Int("license_threshold", cfg.Monitor.LicenseThreshold),
		zap.Int("pinned_cids", len(cfg.Monitor.PinnedCIDs)))

	// Setup JWT Secret
	auth.SetSecret(cfg.API.JWTSecret)

	client, err := falcon.NewClient(cfg.Falcon, &http.Client{Timeout: 30 * time.Second}, logger)
	if err != nil {
		logger.Fatal("failed to build falcon client", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Startup credential check. This is the only fatal path: once the
	// first cycle is allowed to start, every later failure retries.
	if err := client.Authenticate(ctx); err != nil {
		logger.Fatal("crowdstrike authentication failed", zap.Error(err))
	}
	parentCID, err := client.ParentCID(ctx)
	if err != nil {
		logger.Fatal("failed to resolve parent CID", zap.Error(err))
	}
	logger.Info("authenticated", zap.String("parent_cid", string(parentCID)))

	dir := directory.New(client, parentCID, cfg.Monitor.ParentDisplayName, cfg.PinnedSet(), logger)
	col := collector.New(client, cfg.Monitor.FetchWorkers, logger)
	store := state.NewStore(cfg.Monitor.StateFile, logger)

	influx := export.NewInfluxSink(cfg.InfluxDB, logger)
	defer influx.Close()
	gauges := export.NewGaugeSink(cfg.Pushgateway, cfg.Monitor.LicenseThreshold, logger)

	mon := monitor.New(dir, col, store, influx, gauges, monitor.Config{
		ParentCID: parentCID,
		Threshold: cfg.Monitor.LicenseThreshold,
		Interval:  cfg.Monitor.CheckInterval,
		Cooldown:  cfg.Monitor.Cooldown,
		ReportTo:  os.Stdout,
	}, logger)

	apiHandler := api.NewAPI(mon, cfg, logger)
	server := &http.Server{
		Addr:    cfg.API.Addr,
		Handler: apiHandler.Router(),
	}

	go func() {
		logger.Info("ops server listening", zap.String("addr", cfg.API.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("ops server failed", zap.Error(err))
		}
	}()

	go func() {
		if err := mon.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("monitor loop exited", zap.Error(err))
		}
	}()

	<-ctx.Done() // Wait for interrupt signal
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", zap.Error(err))
	}

	logger.Info("graceful shutdown complete")
}
