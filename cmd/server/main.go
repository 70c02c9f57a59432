package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/incubator-intake/internal/app"
	"github.com/eugenenazirov/incubator-intake/internal/config"
	"github.com/eugenenazirov/incubator-intake/internal/logging"
)

var signalNotify = signal.Notify

func main() {
	overrides, err := parseFlags(os.Args[1:])
	kingpin.FatalIfError(err, "parse flags")

	cfg, err := config.Load(overrides)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	service, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize service", zap.Error(err))
	}

	if err := service.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	shutdown(service.Server(), cfg.ShutdownGracePeriod, logger)
}

// parseFlags maps command-line flags onto config overrides. Flags left unset
// do not override lower-precedence sources.
func parseFlags(args []string) (*config.CLIOverrides, error) {
	kingpinApp := kingpin.New("intake-server", "Incubator application intake - stores and serves application form submissions")
	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").String()
	envFile := kingpinApp.Flag("env-file", "Path to a .env file used to seed environment variables").String()
	port := kingpinApp.Flag("port", "HTTP port exposed by the service").String()
	storageKind := kingpinApp.Flag("storage", "Storage backend (file or memory)").Enum("file", "memory")
	dbFile := kingpinApp.Flag("db-file", "Path to the JSON file holding all applications").String()
	logLevel := kingpinApp.Flag("log-level", "Log level (debug, info, warn, error)").String()
	var metricsSet bool
	metricsFlag := kingpinApp.Flag("metrics", "Expose Prometheus metrics on /metrics").IsSetByUser(&metricsSet).Bool()
	var rpsSet, burstSet bool
	rateLimitRPSFlag := kingpinApp.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").IsSetByUser(&rpsSet).Float64()
	rateLimitBurstFlag := kingpinApp.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").IsSetByUser(&burstSet).Int()

	if _, err := kingpinApp.Parse(args); err != nil {
		return nil, err
	}

	overrides := &config.CLIOverrides{
		ConfigFile: *configFile,
		EnvFile:    *envFile,
	}

	if *port != "" {
		overrides.Port = port
	}

	if *storageKind != "" {
		overrides.Storage = storageKind
	}

	if *dbFile != "" {
		overrides.DBFile = dbFile
	}

	if *logLevel != "" {
		overrides.LogLevel = logLevel
	}

	if metricsSet {
		overrides.EnableMetrics = metricsFlag
	}

	if rpsSet {
		overrides.RateLimitRPS = rateLimitRPSFlag
	}

	if burstSet {
		overrides.RateLimitBurst = rateLimitBurstFlag
	}

	return overrides, nil
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
