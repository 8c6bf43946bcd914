package google

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"planner/internal/core"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{ServiceAccountJSON: "{}"})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Options{SpreadsheetID: "sheet"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Options{
		SpreadsheetID:      "sheet",
		ServiceAccountFile: "/nonexistent/creds.json",
	})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_NotInitialized(t *testing.T) {
	c := &Client{spreadsheetID: "test", sheet: "2025 Calculations"}
	if _, err := c.AppendCalculation(context.Background(), core.CalculationEvent{ID: "x"}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if err := c.RecordCalculation(context.Background(), core.CalculationEvent{ID: "x"}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if err := c.EnsureHeader(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestCalculationRow(t *testing.T) {
	e := core.CalculationEvent{
		ID:             "abc",
		Kind:           core.KindLoan,
		LoanName:       "House",
		Principal:      300000,
		AnnualRate:     5,
		TotalMonths:    300,
		Currency:       core.NOK,
		MonthlyPayment: 1753.7701,
		TotalInterest:  226130.924,
		FinalBalance:   -0.14,
		Participants:   2,
		ShareMode:      core.ShareSalary,
		CreatedAt:      time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC),
	}
	row := calculationRow(e)
	if len(row) != len(Header) {
		t.Fatalf("row has %d cells, header has %d", len(row), len(Header))
	}
	if row[0] != "2025-03-04 05:06:07" || row[1] != "abc" || row[3] != "House" {
		t.Fatalf("unexpected leading cells: %v", row[:4])
	}
	if row[8] != 1753.77 || row[9] != 226130.92 || row[12] != "salary" {
		t.Fatalf("unexpected amounts: %v", row)
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"Calculations", "2025 Calculations"},
		{"  Loans ", "2025 Loans"},
		{"2024 Calculations", "2024 Calculations"},
		{"", ""},
		{"12345", "2025 12345"},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, 2025); got != tt.want {
			t.Errorf("yearPrefixedName(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}
