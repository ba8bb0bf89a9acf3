package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "time/tzdata"

	"golang.org/x/sync/errgroup"

	"finanzas/internal/cli"
	apphttp "finanzas/internal/http"
	"finanzas/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)
	clock := cli.Clock(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res := cli.InitBackend(ctx, logger, cfg, clock)
	defer cli.CloseBackend(logger, res)

	svc, err := cli.BuildServices(res, cfg, clock)
	if err != nil {
		logger.Error("Failed to build services", log.FieldError, err)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Transactions: svc.Transactions,
		Definitions:  svc.Definitions,
		Generator:    svc.Generator,
		Carryover:    svc.Carryover,
		Auditor:      svc.Auditor,
		Carryovers:   res.Stores,
		Ready:        res.Ready,
	}, apphttp.Options{
		CronSecret: cfg.CronSecret,
		Production: cfg.IsProduction(),
		Clock:      clock,
		Logger:     logger,
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	if cfg.CronSecret == "" {
		logger.Warn("CRON_SECRET not set, cron endpoints are unauthenticated")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting finanzas server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"env", cfg.AppEnv,
			"policy", svc.Generator.Policy().Name(),
			"events", res.Events != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server", log.FieldOperation, log.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		cli.CloseBackend(logger, res)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
