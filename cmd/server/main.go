package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"guardian-gateway/internal/config"
	"guardian-gateway/internal/logger"
	"guardian-gateway/internal/server"
	"guardian-gateway/internal/storage"
)

var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	lg := logger.SetupDefault(os.Stdout, logger.ParseLevel(cfg.LogLevel))
	gin.SetMode(cfg.GinMode)

	if err := run(cfg, lg); err != nil {
		lg.Error("gateway stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Config, lg *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStorage, err := openStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer closeStorage()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app := server.NewApp(server.AppOptions{
		Config:   cfg,
		Storage:  st,
		Logger:   lg,
		Registry: reg,
		Version:  version,
	})
	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	defer app.Close()

	lg.Info("listening", slog.Int("port", cfg.Port), slog.String("backend", cfg.BackendBaseURL))
	return server.Run(ctx, cfg, app.Router())
}

// openStorage prefers redis, then the state file, then memory.
func openStorage(ctx context.Context, cfg config.Config) (storage.Storage, func(), error) {
	switch {
	case cfg.RedisAddr != "":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return storage.NewRedis(client, cfg.RedisPrefix), func() { _ = client.Close() }, nil
	case cfg.SessionStateFile != "":
		fs, err := storage.NewFile(cfg.SessionStateFile)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil
	default:
		return storage.NewMemory(), func() {}, nil
	}
}
