// cmd/server/main.go

// 帳本服務：提供一次性發行 (initialize) 與轉帳 (transfer) 的 HTTP API。
// 此檔案負責載入設定、開啟儲存基底、寫入創世總供給，並啟動 HTTP 伺服器；
// memory 基底在每次提交後與結束時保存 JSON 快照。

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ledger/internal/auth"
	"ledger/internal/config"
	"ledger/internal/logging"
	"ledger/internal/metrics"
	"ledger/internal/server"
	"ledger/internal/storage"
	"ledger/internal/storage/redis"
	"ledger/internal/storage/sqlite"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		config.Exitf("ledger: %v", err)
	}
	cfg, err := config.Load(flag.NewFlagSet("ledger", flag.ExitOnError), os.Args[1:])
	if err != nil {
		config.Exitf("ledger: %v", err)
	}
	logger, err := logging.New("ledger", cfg.LogDev)
	if err != nil {
		config.Exitf("ledger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("ledger stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	backend, persist, closer, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if persist != nil {
			if err := persist(); err != nil {
				logger.Warn("final snapshot failed", zap.Error(err))
			}
		}
		if err := closer.Close(); err != nil {
			logger.Warn("close storage", zap.Error(err))
		}
	}()

	if err := storage.Genesis(ctx, backend, cfg.TotalSupply); err != nil {
		return fmt.Errorf("genesis: %w", err)
	}

	authority, err := auth.New(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}
	s, err := server.NewServer(server.Deps{
		Backend: backend,
		Auth:    authority,
		Metrics: metrics.New(),
		Logger:  logger,
		Persist: persist,
	})
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("ledger server listening",
			zap.String("addr", cfg.Addr),
			zap.String("backend", cfg.Backend),
			zap.Uint64("total_supply", cfg.TotalSupply),
		)
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info("shutting down")
	return httpSrv.Shutdown(shutdownCtx)
}

// openBackend 依設定開啟基底；只有 memory 基底回傳 persist（JSON 快照）。
func openBackend(ctx context.Context, cfg config.Config) (storage.Backend, func() error, io.Closer, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, nil, s, nil
	case config.BackendRedis:
		s, err := redis.Dial(ctx, cfg.RedisAddr, cfg.RedisPrefix)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, nil, s, nil
	default:
		mem := storage.NewMemory()
		if cfg.DataFile == "" {
			return mem, nil, io.NopCloser(nil), nil
		}
		if err := storage.LoadMemory(cfg.DataFile, mem); err != nil {
			return nil, nil, nil, fmt.Errorf("load snapshot: %w", err)
		}
		persist := func() error {
			return storage.SaveSnapshot(cfg.DataFile, mem.Snapshot())
		}
		return mem, persist, io.NopCloser(nil), nil
	}
}
