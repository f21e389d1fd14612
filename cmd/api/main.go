package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/pyq-analyzer/internal/bootstrap"
	"github.com/bryanwahyu/pyq-analyzer/internal/config"
	"github.com/bryanwahyu/pyq-analyzer/internal/infra/httpserver"
	"github.com/bryanwahyu/pyq-analyzer/internal/logging"
	"github.com/bryanwahyu/pyq-analyzer/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := logging.New(cfg.Log.Development, cfg.Log.File)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	started := time.Now()
	var draining atomic.Bool
	health := []middleware.Dependency{{Name: "storage", Target: app.Store}}
	if p, ok := app.Analysis.Archive.(middleware.Pinger); ok {
		health = append(health, middleware.Dependency{Name: "archive", Target: p, Optional: true})
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst)

	handler := httpserver.NewRouter(httpserver.Deps{
		Analysis:       app.Analysis,
		Library:        app.Library,
		Proxy:          app.Proxy,
		Health:         health,
		Ready:          func() bool { return !draining.Load() },
		Started:        started,
		APIKeys:        cfg.Server.APIKeys,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimiter:    limiter,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Log:            logger,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		// analysis runs and proxied downloads can be slow
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	// run server
	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// bersihkan visitor rate limiter yang idle
	g.Go(func() error {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
				if n := limiter.Cleanup(10 * time.Minute); n > 0 {
					logger.Debug("rate limiter cleanup", zap.Int("removed", n))
				}
			}
		}
	})

	// graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		draining.Store(true)
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
