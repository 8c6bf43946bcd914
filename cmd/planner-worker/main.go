package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"planner/internal/amqp"
	"planner/internal/cli"
	"planner/internal/config"
	"planner/internal/log"
	"planner/internal/recorder"
	gsheet "planner/internal/sheets/google"
	"planner/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadConfig(log.ComponentWorker, (*config.Config).ValidateWorker)
	logger.Info("Starting planner-worker", log.FieldOperation, log.OpStartup)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	journal := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer journal.Close()

	// Google Sheets export is optional.
	var exporter worker.Exporter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(ctx, recorder.SheetsOptions(cfg))
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		if err := client.EnsureHeader(ctx); err != nil {
			logger.Warn("Failed to write sheet header", log.FieldError, err)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	broker, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer broker.Close()

	w := worker.NewJournalWorker(journal, exporter, cfg.ExportBatchSize, logger.Logger)
	if err := w.StartupExportCheck(ctx); err != nil {
		logger.Error("Failed startup export check", log.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := broker.ConsumeCalculations(gctx, w.HandleCalculationMessage)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return w.RunPeriodicExport(gctx, cfg.ExportInterval)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
