package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"finanzas/internal/cli"
	"finanzas/internal/log"
	"finanzas/internal/sheets"
	gsheet "finanzas/internal/sheets/google"
	sheetsmem "finanzas/internal/sheets/memory"
	"finanzas/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentSheets)
	logger.Info("Starting sheets-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the sheets worker")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res := cli.InitBackend(ctx, logger, cfg, cli.Clock(cfg))
	defer cli.CloseBackend(logger, res)
	if res.Events == nil {
		logger.Error("AMQP broker unreachable, nothing to consume")
		cli.CloseBackend(logger, res)
		os.Exit(1)
	}

	var ledger sheets.LedgerWriter
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsFile: cfg.GoogleServiceAccountFile,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			cli.CloseBackend(logger, res)
			os.Exit(1)
		}
		ledger = client
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		ledger = sheetsmem.New()
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, mirroring into memory only")
	}

	syncWorker := worker.NewSyncWorker(res.Stores, ledger)
	err := res.Events.ConsumeTransactionEvents(ctx, syncWorker.HandleTransactionEvent)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		cli.CloseBackend(logger, res)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
