package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/koopa0/drawboard/internal/board"
	"github.com/koopa0/drawboard/internal/config"
	"github.com/koopa0/drawboard/internal/gateway"
	"github.com/koopa0/drawboard/internal/snapshot"
	"github.com/koopa0/drawboard/internal/snapshot/migrations"
)

func main() {
	// 解析命令行參數
	var (
		configPath = flag.String("config", "", "配置檔路徑（YAML）")
		port       = flag.Int("port", 0, "服務器端口（覆蓋配置檔）")
		logLevel   = flag.String("log-level", "", "日誌級別 (debug, info, warn, error)")
		logFormat  = flag.String("log-format", "", "日誌格式 (text, json)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "載入配置失敗:", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}

	// 設置日誌
	logger := setupLogger(cfg.Log.Level, cfg.Log.Format)

	// 構建快照存儲
	store, cleanup, err := buildStore(cfg)
	if err != nil {
		logger.Error("構建快照存儲失敗", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// 組裝同步引擎
	registry := board.NewRegistry(store, logger)
	hub := gateway.NewHub(registry, logger)
	handler := gateway.NewHandler(registry, hub, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("共享畫布服務器啟動",
			"port", cfg.Server.Port,
			"snapshot_backend", cfg.Snapshot.Backend,
			"log_level", cfg.Log.Level)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("服務器啟動失敗", "error", err)
			os.Exit(1)
		}
	}()

	// 等待中斷信號
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("收到關閉信號，開始優雅關閉...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("服務器關閉失敗", "error", err)
	}

	hub.Stop()

	// 等待在途的背景持久化寫完
	registry.Wait()

	logger.Info("服務器已關閉")
}

// buildStore 按配置構建快照存儲後端
func buildStore(cfg *config.Config) (board.SnapshotStore, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch cfg.Snapshot.Backend {
	case "", "memory":
		return snapshot.NewMemory(), func() {}, nil

	case "file":
		store, err := snapshot.NewFile(cfg.Snapshot.Dir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Snapshot.Redis.Addr,
			Password: cfg.Snapshot.Redis.Password,
			DB:       cfg.Snapshot.Redis.DB,
		})
		store, err := snapshot.NewRedis(ctx, client)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return store, func() { client.Close() }, nil

	case "postgres":
		dsn := cfg.PostgresDSN()
		if err := migrations.Up(dsn); err != nil {
			return nil, nil, err
		}
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("連接 postgres 失敗: %w", err)
		}
		store, err := snapshot.NewPostgres(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, func() { pool.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("未知的快照後端: %s", cfg.Snapshot.Backend)
	}
}

// setupLogger 設置日誌
func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: level == "debug",
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
