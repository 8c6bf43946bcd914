package http

import (
	"strconv"
	"strings"

	"planner/internal/core"
)

const (
	chartWidth   = 640
	chartHeight  = 260
	chartPadLeft = 60
	chartPad     = 16
)

// chartView is a remaining-balance-over-time line chart, drawn as SVG.
type chartView struct {
	Width    int
	Height   int
	Left     int
	Right    int
	Top      int
	Bottom   int
	ZeroY    string // y of the zero balance line
	Points   string // polyline points
	MaxLabel string
	MinLabel string
	Months   int
}

// balanceChart plots the balance from month 0 (the principal) to the last
// row. A negative final balance dips below the zero line.
func balanceChart(rows []core.ScheduleRow, principal float64, c core.Currency) chartView {
	v := chartView{
		Width:  chartWidth,
		Height: chartHeight,
		Left:   chartPadLeft,
		Right:  chartWidth - chartPad,
		Top:    chartPad,
		Bottom: chartHeight - chartPad*2,
		Months: len(rows),
	}
	if len(rows) == 0 || principal <= 0 {
		return v
	}

	hi, lo := principal, 0.0
	for _, r := range rows {
		hi = max(hi, r.Balance)
		lo = min(lo, r.Balance)
	}
	span := hi - lo
	plotW := float64(v.Right - v.Left)
	plotH := float64(v.Bottom - v.Top)

	x := func(month int) float64 {
		return float64(v.Left) + float64(month)/float64(len(rows))*plotW
	}
	y := func(balance float64) float64 {
		return float64(v.Top) + (hi-balance)/span*plotH
	}

	var b strings.Builder
	writePoint(&b, x(0), y(principal))
	for _, r := range rows {
		b.WriteByte(' ')
		writePoint(&b, x(r.Month), y(r.Balance))
	}
	v.Points = b.String()
	v.ZeroY = strconv.FormatFloat(y(0), 'f', 1, 64)
	v.MaxLabel = core.FormatAmount(hi, c)
	v.MinLabel = core.FormatAmount(lo, c)
	return v
}

func writePoint(b *strings.Builder, x, y float64) {
	b.WriteString(strconv.FormatFloat(x, 'f', 1, 64))
	b.WriteByte(',')
	b.WriteString(strconv.FormatFloat(y, 'f', 1, 64))
}
