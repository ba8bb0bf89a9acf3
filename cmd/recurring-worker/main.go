package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "time/tzdata"

	"finanzas/internal/cli"
	"finanzas/internal/log"
	"finanzas/internal/services"
	"finanzas/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentRecurring)
	logger.Info("Starting recurring-worker")

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

	scheduler := worker.NewScheduler(svc.Generator, svc.Carryover, clock, worker.SchedulerConfig{
		Interval:    cfg.RecurringProcessorInterval,
		LastDayOnly: cfg.GenerationPolicy == services.PolicyNextMonth,
	})
	logger.Info("Recurring processor configured",
		"interval", cfg.RecurringProcessorInterval,
		"timezone", cfg.Timezone,
		"backend", cfg.DataBackend)

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start scheduler", log.FieldError, err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Shutdown signal received, stopping scheduler")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Warn("Shutdown timeout reached", log.FieldError, err)
	}
	logger.Info("Recurring-worker shutdown complete")
}
