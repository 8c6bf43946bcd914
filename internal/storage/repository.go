// Package storage is the SQLite calculation journal. Planning state is never
// stored here; each row is the summary of one finished calculation.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"planner/internal/core"

	_ "modernc.org/sqlite"
)

var ErrCalculationNotFound = errors.New("calculation not found")

type SQLiteRepository struct {
	db *sql.DB
}

// Calculation is a journal row: the recorded event plus its export status.
type Calculation struct {
	core.CalculationEvent
	ExportedAt  *time.Time
	ExportError string
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const insertCalculation = `
INSERT OR IGNORE INTO calculations (
    id, kind, loan_name, principal, annual_rate, total_months, currency,
    monthly_payment, total_interest, final_balance, participants, share_mode, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// RecordCalculation inserts an event. Recording the same id twice is a
// no-op, so redelivered queue messages are harmless.
func (r *SQLiteRepository) RecordCalculation(ctx context.Context, e core.CalculationEvent) error {
	if e.ID == "" {
		return fmt.Errorf("record calculation: empty id")
	}
	res, err := r.db.ExecContext(ctx, insertCalculation,
		e.ID, e.Kind, e.LoanName, e.Principal, e.AnnualRate, e.TotalMonths, string(e.Currency),
		e.MonthlyPayment, e.TotalInterest, e.FinalBalance, e.Participants, string(e.ShareMode),
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record calculation: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		slog.DebugContext(ctx, "Calculation already recorded", "id", e.ID)
		return nil
	}
	slog.InfoContext(ctx, "Calculation saved to SQLite",
		"id", e.ID,
		"kind", e.Kind,
		"loan", e.LoanName,
		"monthly_payment", e.MonthlyPayment)
	return nil
}

const selectColumns = `
SELECT id, kind, loan_name, principal, annual_rate, total_months, currency,
       monthly_payment, total_interest, final_balance, participants, share_mode,
       created_at, exported_at, export_error
FROM calculations`

// ListCalculations returns the most recent calculations first.
func (r *SQLiteRepository) ListCalculations(ctx context.Context, limit int) ([]Calculation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list calculations: %w", err)
	}
	defer rows.Close()
	return scanCalculations(rows)
}

// ListPendingExport returns calculations not yet exported, oldest first.
func (r *SQLiteRepository) ListPendingExport(ctx context.Context, limit int) ([]Calculation, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` WHERE exported_at IS NULL ORDER BY created_at LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending export: %w", err)
	}
	defer rows.Close()
	return scanCalculations(rows)
}

func (r *SQLiteRepository) GetCalculation(ctx context.Context, id string) (*Calculation, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	c, err := scanCalculation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCalculationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get calculation %s: %w", id, err)
	}
	return c, nil
}

// MarkExported records a successful export to the spreadsheet.
func (r *SQLiteRepository) MarkExported(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE calculations SET exported_at = ?, export_error = '' WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("mark calculation exported: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCalculationNotFound
	}
	return nil
}

// MarkExportError keeps the row pending and remembers why the export failed.
func (r *SQLiteRepository) MarkExportError(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if _, err := r.db.ExecContext(ctx,
		`UPDATE calculations SET export_error = ? WHERE id = ?`, msg, id); err != nil {
		return fmt.Errorf("mark calculation export error: %w", err)
	}
	slog.WarnContext(ctx, "Calculation marked with export error", "id", id, "error", msg)
	return nil
}

// CountCalculations is the number of journal rows.
func (r *SQLiteRepository) CountCalculations(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM calculations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count calculations: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCalculation(s scanner) (*Calculation, error) {
	var (
		c          Calculation
		currency   string
		shareMode  string
		createdAt  string
		exportedAt sql.NullString
	)
	err := s.Scan(
		&c.ID, &c.Kind, &c.LoanName, &c.Principal, &c.AnnualRate, &c.TotalMonths, &currency,
		&c.MonthlyPayment, &c.TotalInterest, &c.FinalBalance, &c.Participants, &shareMode,
		&createdAt, &exportedAt, &c.ExportError,
	)
	if err != nil {
		return nil, err
	}
	c.Currency = core.Currency(currency)
	c.ShareMode = core.ShareMode(shareMode)
	if c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	if exportedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, exportedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse exported_at %q: %w", exportedAt.String, err)
		}
		c.ExportedAt = &t
	}
	return &c, nil
}

func scanCalculations(rows *sql.Rows) ([]Calculation, error) {
	var out []Calculation
	for rows.Next() {
		c, err := scanCalculation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan calculation: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calculations: %w", err)
	}
	return out, nil
}
