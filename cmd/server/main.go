package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/better-wallet/multisig/internal/api"
	"github.com/better-wallet/multisig/internal/chain"
	"github.com/better-wallet/multisig/internal/config"
	"github.com/better-wallet/multisig/internal/events"
	"github.com/better-wallet/multisig/internal/logger"
	"github.com/better-wallet/multisig/internal/multisig"
	"github.com/better-wallet/multisig/internal/storage"
	"github.com/better-wallet/multisig/internal/sweeper"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize storage", "backend", cfg.StorageBackend, "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	chains, closeChains, err := chain.NewRegistryFromConfig(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize chain registry", "error", err)
		os.Exit(1)
	}
	defer closeChains()
	slog.Info("chain registry ready", "chains", chains.Supported())

	var emitter events.Emitter = events.LogEmitter{}
	if len(cfg.KafkaBrokers) > 0 {
		emitter = events.NewKafkaEmitter(cfg.KafkaBrokers, cfg.KafkaTopic)
		slog.Info("publishing lifecycle events to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	defer func() {
		if err := emitter.Close(); err != nil {
			slog.Error("failed to close event emitter", "error", err)
		}
	}()

	service := multisig.NewService(repo, chains,
		multisig.WithEmitter(emitter),
		multisig.WithDefaultTTL(cfg.ApprovalTTL),
	)

	var sweep *sweeper.Sweeper
	if cfg.ExpirySweepSchedule != "" {
		sweep, err = sweeper.New(service, cfg.ExpirySweepSchedule, time.Minute)
		if err != nil {
			slog.Error("failed to initialize expiry sweeper", "error", err)
			os.Exit(1)
		}
		sweep.Start()
		slog.Info("expiry sweeper started", "schedule", cfg.ExpirySweepSchedule)
	}

	server := api.NewServer(cfg, service, repo)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start(ctx)
	}()

	select {
	case err := <-serverErrors:
		if err != nil {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}

	case <-ctx.Done():
		slog.Info("received shutdown signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during shutdown", "error", err)
			slog.Warn("forcing shutdown")
		}
		if sweep != nil {
			sweep.Stop(shutdownCtx)
		}

		slog.Info("server stopped")
	}
}

func openRepository(ctx context.Context, cfg *config.Config) (storage.Repository, error) {
	if cfg.StorageBackend == config.StorageBackendMemory {
		slog.Warn("using in-memory storage; state is lost on restart")
		return storage.NewMemoryStore(), nil
	}

	store, err := storage.New(ctx, cfg.PostgresDSN, storage.PoolOptions{
		MaxConns: int32(cfg.PostgresMaxConns),
		MinConns: int32(cfg.PostgresMinConns),
	})
	if err != nil {
		return nil, err
	}
	slog.Info("connected to database")
	return storage.NewPostgresRepository(store), nil
}
