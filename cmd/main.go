package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"energydash/internal/console"
	"energydash/internal/gateway"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// version is set at build time via -ldflags
var version = "dev"

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Warn("No .env file found, using environment variables")
	}

	backendURL := os.Getenv("BACKEND_URL")
	if backendURL == "" {
		logger.Fatal("BACKEND_URL environment variable must be set")
	}

	port, err := envInt("LISTEN_PORT", 8080)
	if err != nil {
		logger.Fatal("Invalid LISTEN_PORT", zap.Error(err))
	}
	interval, err := envDuration("POLL_INTERVAL", time.Second)
	if err != nil {
		logger.Fatal("Invalid POLL_INTERVAL", zap.Error(err))
	}
	configDir := os.Getenv("CONFIG_DIR")
	if configDir == "" {
		configDir = "./configs"
	}

	cfg := gateway.Config{
		BackendURL:      backendURL,
		BackendPassword: os.Getenv("BACKEND_PASSWORD"),
		ListenPort:      port,
		ConfigDir:       configDir,
		PollInterval:    interval,
		MQTTBroker:      os.Getenv("MQTT_BROKER"),
		MQTTTopic:       os.Getenv("MQTT_TOPIC"),
		Version:         version,
	}

	logger.Info("Starting Energy Dashboard",
		zap.String("version", version),
		zap.String("backend", backendURL),
		zap.Int("port", port),
		zap.Duration("poll_interval", interval),
		zap.String("config_dir", configDir))

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create gateway", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := gw.Start(ctx); err != nil {
		logger.Fatal("Failed to start gateway", zap.Error(err))
	}

	if os.Getenv("CONSOLE") == "true" {
		c := console.New(gw.Controller(), gw.Presenter(), os.Stdout, logger.Named("console"))
		go func() {
			if err := c.Run(ctx, cancel); err != nil {
				logger.Error("Console failed", zap.Error(err))
			}
		}()
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully...")
	cancel()
	gw.Stop()
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// envDuration accepts Go durations ("500ms") or plain seconds ("2")
func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(v)
}
