package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seclens/threatview/pkg/config"
	"github.com/seclens/threatview/pkg/engine"
)

var version = "dev"

func main() {
	// Parse command line flags
	configFile := flag.String("config", "/etc/threatview/config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	// Show version if requested
	if *showVersion {
		fmt.Printf("threatview version %s\n", version)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	logger := cfg.GetLogger()
	logger.Info("Starting threatview", "version", version, "config_file", *configFile)

	// Create engine
	eng, err := engine.New(cfg, logger)
	if err != nil {
		logger.Error("Failed to create engine", "error", err)
		os.Exit(1)
	}
	defer eng.Close()

	// Serve Prometheus metrics if configured
	if cfg.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			logger.Info("Serving metrics", "listen", cfg.MetricsListen)
			if err := http.ListenAndServe(cfg.MetricsListen, mux); err != nil {
				logger.Error("Metrics listener failed", "error", err)
			}
		}()
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Run engine in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- eng.Run(ctx)
	}()

	// Wait for completion or signal
	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Engine error", "error", err)
			os.Exit(1)
		}
		logger.Info("Engine stopped")
	case sig := <-sigChan:
		logger.Info("Received signal, shutting down gracefully", "signal", sig)
		cancel()
		if err := <-errChan; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error during shutdown", "error", err)
			os.Exit(1)
		}
		logger.Info("Shutdown complete")
	}
}
