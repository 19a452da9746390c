// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"coop-voucher/internal/bootstrap"
	"coop-voucher/internal/config"
	apiv1 "coop-voucher/internal/infra/api/apiv1"
	"coop-voucher/internal/infra/logging"
	"coop-voucher/internal/infra/metrics"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (unredacted logs, console output)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	// ---- Metrics ----
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	deps, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("bootstrap failed")
	}
	defer deps.Close()
	go metrics.RunPoolStats(ctx, deps.Pool, 15*time.Second)

	// ---- HTTP ----
	limits := apiv1.Limits{
		Verify: cfg.HTTP.VerifyLimit,
		Share:  cfg.HTTP.ShareLimit,
		Window: cfg.HTTP.LimitWindow,
	}
	if deps.RateLimiter != nil {
		limits.Limiter = deps.RateLimiter
	}

	auth := apiv1.NewAuthManager(cfg.Security.JWTSecret, cfg.Security.JWTTTL)
	srv := apiv1.NewServer(deps.VoucherUC, deps.BatchUC, deps.TemplateUC, auth, limits,
		cfg.HTTP.RequestTimeout, cfg.HTTP.PublicBaseURL, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Str("version", version).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	<-ctx.Done()
	logger.Info().Msg("shutdown requested")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	logger.Info().Msg("bye")
}
