package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"planner/internal/amqp"
	"planner/internal/core"
	"planner/internal/log"
	"planner/internal/storage"
)

// Journal is the durable calculation store the worker writes to.
type Journal interface {
	RecordCalculation(ctx context.Context, e core.CalculationEvent) error
	GetCalculation(ctx context.Context, id string) (*storage.Calculation, error)
	ListPendingExport(ctx context.Context, limit int) ([]storage.Calculation, error)
	MarkExported(ctx context.Context, id string) error
	MarkExportError(ctx context.Context, id string, cause error) error
}

// Exporter appends a calculation summary to an external spreadsheet.
type Exporter interface {
	AppendCalculation(ctx context.Context, e core.CalculationEvent) (string, error)
}

// JournalWorker moves calculations from the queue into SQLite and from
// SQLite into Google Sheets.
type JournalWorker struct {
	journal   Journal
	exporter  Exporter
	batchSize int
	logger    *slog.Logger
}

// NewJournalWorker builds a worker. A nil exporter disables the export step.
func NewJournalWorker(journal Journal, exporter Exporter, batchSize int, logger *slog.Logger) *JournalWorker {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize < 1 {
		batchSize = 20
	}
	return &JournalWorker{
		journal:   journal,
		exporter:  exporter,
		batchSize: batchSize,
		logger:    logger,
	}
}

// HandleCalculationMessage records one queued calculation and exports it
// unless a previous delivery already did. Only a failed write to the
// journal is returned, which requeues the message. A failed export stays
// pending for the periodic pass.
func (w *JournalWorker) HandleCalculationMessage(ctx context.Context, msg *amqp.CalculationMessage) error {
	e := msg.Event
	w.logger.InfoContext(ctx, "Processing calculation message",
		log.FieldEventID, e.ID,
		"kind", e.Kind,
		"published_at", msg.Timestamp.Format(time.RFC3339))

	if err := w.journal.RecordCalculation(ctx, e); err != nil {
		return fmt.Errorf("record calculation: %w", err)
	}

	if w.exporter == nil {
		return nil
	}
	stored, err := w.journal.GetCalculation(ctx, e.ID)
	if err != nil {
		return fmt.Errorf("reload calculation: %w", err)
	}
	if stored.ExportedAt != nil {
		w.logger.DebugContext(ctx, "Calculation already exported", log.FieldEventID, e.ID)
		return nil
	}
	if err := w.export(ctx, e); err != nil {
		w.logger.WarnContext(ctx, "Export deferred to periodic pass",
			log.FieldEventID, e.ID,
			log.FieldError, err)
	}
	return nil
}

// ProcessPendingExports exports up to one batch of unexported calculations.
// It is the backstop for messages whose export failed or was never tried.
func (w *JournalWorker) ProcessPendingExports(ctx context.Context) (int, error) {
	return w.exportPending(ctx, w.batchSize)
}

// StartupExportCheck drains a larger backlog once, after downtime.
func (w *JournalWorker) StartupExportCheck(ctx context.Context) error {
	if w.exporter == nil {
		w.logger.InfoContext(ctx, "Google Sheets export disabled, skipping startup check")
		return nil
	}
	exported, err := w.exportPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup export check: %w", err)
	}
	w.logger.InfoContext(ctx, "Startup export check completed", "exported", exported)
	return nil
}

// RunPeriodicExport calls ProcessPendingExports every interval until ctx
// is done. Failures are logged and retried on the next tick.
func (w *JournalWorker) RunPeriodicExport(ctx context.Context, interval time.Duration) error {
	if w.exporter == nil {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.ProcessPendingExports(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.ErrorContext(ctx, "Periodic export failed", log.FieldError, err)
			}
		}
	}
}

func (w *JournalWorker) exportPending(ctx context.Context, limit int) (int, error) {
	if w.exporter == nil {
		return 0, nil
	}
	pending, err := w.journal.ListPendingExport(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list pending exports: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	w.logger.InfoContext(ctx, "Exporting pending calculations", "count", len(pending))
	exported := 0
	for _, c := range pending {
		if err := ctx.Err(); err != nil {
			return exported, err
		}
		if err := w.export(ctx, c.CalculationEvent); err != nil {
			w.logger.ErrorContext(ctx, "Failed to export calculation",
				log.FieldEventID, c.ID,
				log.FieldError, err)
			continue
		}
		exported++
	}
	return exported, nil
}

func (w *JournalWorker) export(ctx context.Context, e core.CalculationEvent) error {
	ref, err := w.exporter.AppendCalculation(ctx, e)
	if err != nil {
		if markErr := w.journal.MarkExportError(ctx, e.ID, err); markErr != nil {
			w.logger.ErrorContext(ctx, "Failed to mark export error",
				log.FieldEventID, e.ID,
				log.FieldError, markErr)
		}
		return fmt.Errorf("append to sheets: %w", err)
	}

	if err := w.journal.MarkExported(ctx, e.ID); err != nil {
		// The row is already in the sheet.
		w.logger.ErrorContext(ctx, "Failed to mark as exported",
			log.FieldEventID, e.ID,
			log.FieldError, err)
	}

	w.logger.InfoContext(ctx, "Exported calculation",
		log.FieldEventID, e.ID,
		log.FieldOperation, log.OpExport,
		"sheets_ref", ref)
	return nil
}
