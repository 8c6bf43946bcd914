package http

import (
	"strings"
	"testing"

	"planner/internal/core"
)

func TestBalanceChart(t *testing.T) {
	rows := []core.ScheduleRow{
		{Month: 1, Balance: 50},
		{Month: 2, Balance: 0},
	}
	c := balanceChart(rows, 100, core.EUR)

	points := strings.Fields(c.Points)
	if len(points) != 3 {
		t.Fatalf("points = %v", points)
	}
	// Month 0 starts at the top left, the paid-off loan ends on the zero line.
	if points[0] != "60.0,16.0" {
		t.Errorf("first point = %s", points[0])
	}
	if !strings.HasSuffix(points[2], ","+c.ZeroY) {
		t.Errorf("last point %s not on zero line %s", points[2], c.ZeroY)
	}
	if c.MaxLabel != "100.00 EUR" || c.MinLabel != "0.00 EUR" {
		t.Errorf("labels = %q, %q", c.MaxLabel, c.MinLabel)
	}
}

func TestBalanceChartNegativeFinalBalance(t *testing.T) {
	rows := []core.ScheduleRow{{Month: 1, Balance: 40}, {Month: 2, Balance: -10}}
	c := balanceChart(rows, 100, "")

	points := strings.Fields(c.Points)
	last := points[len(points)-1]
	if !strings.HasSuffix(last, ","+strings.TrimSpace(formatY(c.Bottom))) {
		t.Errorf("negative balance should reach the bottom, got %s", last)
	}
	if c.MinLabel != "-10.00" {
		t.Errorf("min label = %q", c.MinLabel)
	}
}

func TestBalanceChartEmpty(t *testing.T) {
	if c := balanceChart(nil, 100, core.NOK); c.Points != "" || c.Months != 0 {
		t.Errorf("empty chart = %+v", c)
	}
}

func formatY(v int) string {
	var b strings.Builder
	writePoint(&b, 0, float64(v))
	_, y, _ := strings.Cut(b.String(), ",")
	return y
}
