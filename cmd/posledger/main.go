// Package main запускает HTTP-сервер кассового сервиса с бонусной программой.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/pos-ledger/internal/analytics"
	"github.com/mmeshcher/pos-ledger/internal/cache"
	"github.com/mmeshcher/pos-ledger/internal/config"
	"github.com/mmeshcher/pos-ledger/internal/handler"
	"github.com/mmeshcher/pos-ledger/internal/middleware"
	"github.com/mmeshcher/pos-ledger/internal/repository"
	"github.com/mmeshcher/pos-ledger/internal/service"
)

// store объединяет хранилище сервиса и источник аналитики поверх него.
type store struct {
	repo   service.Repository
	source analytics.Source
	close  func()
}

func openStore(cfg *config.Config, sugar *zap.SugaredLogger) (*store, error) {
	if cfg.DatabaseURI == "" {
		sugar.Warn("DATABASE_URI is empty, using in-memory store")
		repo := repository.NewMemoryRepository()
		return &store{repo: repo, source: repo, close: func() {}}, nil
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		return nil, err
	}
	src := analytics.NewSQLSource(repo.DB())
	return &store{repo: repo, source: src, close: func() { _ = src.Close() }}, nil
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	loc, err := cfg.Location()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	st, err := openStore(cfg, sugar)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []service.Option{service.WithLogger(logger), service.WithLocation(loc)}
	if cfg.RedisAddress != "" {
		client, err := cache.Connect(ctx, cfg.RedisAddress)
		if err != nil {
			sugar.Fatalw("redis initialization error", "error", err.Error())
		}
		defer client.Close()
		opts = append(opts, service.WithCache(cache.NewOrganizationCache(client, cfg.CacheTTL)))
	}

	svc := service.NewService(st.repo, opts...)
	defer svc.Close()
	defer st.close()

	if cfg.SuperAdminUsername != "" {
		if _, err := svc.Auth.EnsureSuperAdmin(ctx, cfg.SuperAdminUsername, cfg.SuperAdminPassword); err != nil {
			sugar.Fatalw("platform admin initialization error", "error", err.Error())
		}
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	if cfg.AuthSecret == "" {
		sugar.Warn("AUTH_SECRET is empty, tokens will not survive a restart")
	}

	h := handler.NewHandler(handler.Services{
		Auth:      svc.Auth,
		Tenants:   svc.Tenants,
		Customers: svc.Customers,
		Orders:    svc.Orders,
		Analytics: analytics.NewAggregator(st.source, analytics.WithLocation(loc)),
	}, logger, authMiddleware, cfg.Production)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting pos ledger server", "addr", cfg.RunAddress, "timeZone", loc.String(), "production", cfg.Production)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
