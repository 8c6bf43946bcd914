package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"planner/internal/amqp"
	"planner/internal/core"
	"planner/internal/storage"
)

type fakeJournal struct {
	mu        sync.Mutex
	rows      map[string]*storage.Calculation
	order     []string
	recordErr error
	listErr   error
}

func newFakeJournal() *fakeJournal {
	return &fakeJournal{rows: map[string]*storage.Calculation{}}
}

func (j *fakeJournal) RecordCalculation(_ context.Context, e core.CalculationEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.recordErr != nil {
		return j.recordErr
	}
	if _, ok := j.rows[e.ID]; ok {
		return nil
	}
	j.rows[e.ID] = &storage.Calculation{CalculationEvent: e}
	j.order = append(j.order, e.ID)
	return nil
}

func (j *fakeJournal) ListPendingExport(_ context.Context, limit int) ([]storage.Calculation, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.listErr != nil {
		return nil, j.listErr
	}
	var out []storage.Calculation
	for _, id := range j.order {
		if c := j.rows[id]; c.ExportedAt == nil && len(out) < limit {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (j *fakeJournal) GetCalculation(_ context.Context, id string) (*storage.Calculation, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	c, ok := j.rows[id]
	if !ok {
		return nil, storage.ErrCalculationNotFound
	}
	cp := *c
	return &cp, nil
}

func (j *fakeJournal) MarkExported(_ context.Context, id string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	c, ok := j.rows[id]
	if !ok {
		return storage.ErrCalculationNotFound
	}
	now := time.Now()
	c.ExportedAt = &now
	c.ExportError = ""
	return nil
}

func (j *fakeJournal) MarkExportError(_ context.Context, id string, cause error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if c, ok := j.rows[id]; ok {
		c.ExportError = cause.Error()
	}
	return nil
}

func (j *fakeJournal) get(id string) storage.Calculation {
	j.mu.Lock()
	defer j.mu.Unlock()
	return *j.rows[id]
}

type fakeExporter struct {
	mu       sync.Mutex
	appended []string
	failing  map[string]bool
}

func (f *fakeExporter) AppendCalculation(_ context.Context, e core.CalculationEvent) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing[e.ID] {
		return "", errors.New("quota exceeded")
	}
	f.appended = append(f.appended, e.ID)
	return "Calculations!A2:M2", nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func event(id string) core.CalculationEvent {
	return core.CalculationEvent{
		ID:             id,
		Kind:           core.KindCalculator,
		Principal:      300000,
		AnnualRate:     5,
		TotalMonths:    300,
		Currency:       core.NOK,
		MonthlyPayment: 1753.77,
		CreatedAt:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestHandleCalculationMessageRecordsAndExports(t *testing.T) {
	journal := newFakeJournal()
	exporter := &fakeExporter{}
	w := NewJournalWorker(journal, exporter, 10, quietLogger())

	msg := amqp.NewCalculationMessage(event("a"))
	if err := w.HandleCalculationMessage(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// A redelivered message is neither recorded nor exported twice.
	if err := w.HandleCalculationMessage(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error on redelivery: %v", err)
	}

	if len(journal.order) != 1 {
		t.Errorf("journal rows = %d, want 1", len(journal.order))
	}
	if got := journal.get("a"); got.ExportedAt == nil {
		t.Error("calculation not marked exported")
	}
	if len(exporter.appended) != 1 || exporter.appended[0] != "a" {
		t.Errorf("appended = %v", exporter.appended)
	}
}

func TestHandleCalculationMessageExportFailureIsDeferred(t *testing.T) {
	journal := newFakeJournal()
	exporter := &fakeExporter{failing: map[string]bool{"a": true}}
	w := NewJournalWorker(journal, exporter, 10, quietLogger())

	if err := w.HandleCalculationMessage(context.Background(), amqp.NewCalculationMessage(event("a"))); err != nil {
		t.Fatalf("export failure should not requeue: %v", err)
	}
	got := journal.get("a")
	if got.ExportedAt != nil || got.ExportError != "quota exceeded" {
		t.Errorf("row = %+v", got)
	}

	exporter.failing = nil
	n, err := w.ProcessPendingExports(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("ProcessPendingExports = %d, %v", n, err)
	}
	if got := journal.get("a"); got.ExportedAt == nil || got.ExportError != "" {
		t.Errorf("row after retry = %+v", got)
	}
}

func TestHandleCalculationMessageRecordFailureRequeues(t *testing.T) {
	journal := newFakeJournal()
	journal.recordErr = errors.New("database is locked")
	w := NewJournalWorker(journal, nil, 10, quietLogger())

	err := w.HandleCalculationMessage(context.Background(), amqp.NewCalculationMessage(event("a")))
	if err == nil || !errors.Is(err, journal.recordErr) {
		t.Fatalf("error = %v", err)
	}
}

func TestWithoutExporterOnlyRecords(t *testing.T) {
	journal := newFakeJournal()
	w := NewJournalWorker(journal, nil, 10, quietLogger())

	if err := w.HandleCalculationMessage(context.Background(), amqp.NewCalculationMessage(event("a"))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n, err := w.ProcessPendingExports(context.Background()); n != 0 || err != nil {
		t.Errorf("ProcessPendingExports = %d, %v", n, err)
	}
	if err := w.StartupExportCheck(context.Background()); err != nil {
		t.Errorf("StartupExportCheck = %v", err)
	}
	if got := journal.get("a"); got.ExportedAt != nil {
		t.Error("exported without exporter")
	}
}

func TestProcessPendingExportsBatches(t *testing.T) {
	journal := newFakeJournal()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		_ = journal.RecordCalculation(context.Background(), event(id))
	}
	exporter := &fakeExporter{failing: map[string]bool{"b": true}}
	w := NewJournalWorker(journal, exporter, 2, quietLogger())

	n, err := w.ProcessPendingExports(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("exported = %d, want 1 (a exported, b failed)", n)
	}

	// Startup check takes five batches, so everything left but b goes out.
	if err := w.StartupExportCheck(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, id := range []string{"a", "c", "d", "e"} {
		if journal.get(id).ExportedAt == nil {
			t.Errorf("%s not exported", id)
		}
	}
	if journal.get("b").ExportError == "" {
		t.Error("b should carry its export error")
	}
}

func TestProcessPendingExportsListError(t *testing.T) {
	journal := newFakeJournal()
	journal.listErr = errors.New("disk I/O error")
	w := NewJournalWorker(journal, &fakeExporter{}, 2, quietLogger())

	if _, err := w.ProcessPendingExports(context.Background()); !errors.Is(err, journal.listErr) {
		t.Errorf("error = %v", err)
	}
	if err := w.StartupExportCheck(context.Background()); err == nil {
		t.Error("startup check should fail")
	}
}

func TestRunPeriodicExportStopsOnCancel(t *testing.T) {
	journal := newFakeJournal()
	_ = journal.RecordCalculation(context.Background(), event("a"))
	exporter := &fakeExporter{}
	w := NewJournalWorker(journal, exporter, 10, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.RunPeriodicExport(ctx, 5*time.Millisecond) }()

	deadline := time.After(2 * time.Second)
	for journal.get("a").ExportedAt == nil {
		select {
		case <-deadline:
			t.Fatal("periodic export never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("RunPeriodicExport = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunPeriodicExport did not stop")
	}
}
