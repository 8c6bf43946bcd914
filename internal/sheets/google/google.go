// Package google exports journal rows to a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"planner/internal/core"
)

// Header is the first row of the calculations sheet.
var Header = []any{
	"Date", "ID", "Kind", "Loan", "Principal", "Rate %", "Months",
	"Currency", "Monthly payment", "Total interest", "Final balance",
	"Participants", "Share mode",
}

type Options struct {
	SpreadsheetID      string
	SheetName          string // base name, the current year is prefixed
	ServiceAccountJSON string
	ServiceAccountFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
}

var ErrNotInitialized = errors.New("sheets service not initialized")

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	id := strings.TrimSpace(opts.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	base := strings.TrimSpace(opts.SheetName)
	if base == "" {
		base = "Calculations"
	}

	creds, err := credentials(opts)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	sheet := yearPrefixedName(base, time.Now().Year())
	slog.InfoContext(ctx, "Google Sheets exporter ready", "sheet", sheet)
	return &Client{svc: svc, spreadsheetID: id, sheet: sheet}, nil
}

func credentials(opts Options) ([]byte, error) {
	switch {
	case strings.TrimSpace(opts.ServiceAccountJSON) != "":
		return []byte(opts.ServiceAccountJSON), nil
	case opts.ServiceAccountFile != "":
		data, err := os.ReadFile(opts.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	}
	if path := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
}

// AppendCalculation adds one summary row and returns the updated range.
func (c *Client) AppendCalculation(ctx context.Context, e core.CalculationEvent) (string, error) {
	if c.svc == nil {
		return "", ErrNotInitialized
	}
	if e.ID == "" {
		return "", errors.New("calculation without id")
	}

	vr := &gsheet.ValueRange{Values: [][]any{calculationRow(e)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.sheet+"!A:M", vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheet, err)
	}

	ref := c.sheet
	if resp.Updates != nil {
		ref = resp.Updates.UpdatedRange
	}
	return ref, nil
}

// RecordCalculation lets the client act as a journal backend.
func (c *Client) RecordCalculation(ctx context.Context, e core.CalculationEvent) error {
	ref, err := c.AppendCalculation(ctx, e)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Calculation exported to Google Sheets", "id", e.ID, "range", ref)
	return nil
}

// EnsureHeader writes Header into row 1 when the sheet is empty.
func (c *Client) EnsureHeader(ctx context.Context) error {
	if c.svc == nil {
		return ErrNotInitialized
	}
	rng := c.sheet + "!A1:M1"
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}
	if len(resp.Values) > 0 {
		return nil
	}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{Header}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header to %s: %w", c.sheet, err)
	}
	return nil
}

func (c *Client) Close() error { return nil }

func calculationRow(e core.CalculationEvent) []any {
	return []any{
		e.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		e.ID,
		e.Kind,
		e.LoanName,
		core.Round2(e.Principal),
		e.AnnualRate,
		e.TotalMonths,
		string(e.Currency),
		core.Round2(e.MonthlyPayment),
		core.Round2(e.TotalInterest),
		core.Round2(e.FinalBalance),
		e.Participants,
		string(e.ShareMode),
	}
}

// yearPrefixedName returns "2025 Calculations" for base "Calculations". A
// base that already starts with a year is kept as is.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
