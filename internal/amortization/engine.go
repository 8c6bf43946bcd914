// Package amortization computes fixed-rate annuity payments and the
// month-by-month schedule that pays a loan down.
//
// Everything here is pure: the same terms always produce the same rows.
package amortization

import (
	"fmt"
	"iter"
	"math"
	"time"

	"cloud.google.com/go/civil"

	"planner/internal/core"
)

// Summary aggregates a full schedule.
type Summary struct {
	MonthlyPayment float64
	TotalMonths    int
	TotalInterest  float64
	TotalPaid      float64
	FinalBalance   float64
}

// MonthlyPayment returns the constant payment that amortizes principal over
// totalMonths at monthlyRate (a fraction, not a percent). The result is not
// rounded.
func MonthlyPayment(principal, monthlyRate float64, totalMonths int) (float64, error) {
	if totalMonths <= 0 {
		return 0, core.ErrNonPositiveTerm
	}
	if math.IsNaN(principal) || math.IsInf(principal, 0) || math.IsNaN(monthlyRate) || math.IsInf(monthlyRate, 0) {
		return 0, core.ErrNotFinite
	}
	if principal < 0 {
		return 0, core.ErrNegativePrincipal
	}
	if monthlyRate < 0 {
		return 0, core.ErrNegativeRate
	}

	n := float64(totalMonths)
	if monthlyRate == 0 {
		return principal / n, nil
	}
	growth := math.Pow(1+monthlyRate, n)
	return principal * (monthlyRate * growth) / (growth - 1), nil
}

// PaymentSchedule validates terms and returns the schedule as a lazy
// sequence. Ranging over it more than once restarts from month 1.
//
// The remaining balance is rounded to cents after every payment and the
// sequence always yields exactly TotalMonths rows, so the last balance may
// end a few cents below zero.
func PaymentSchedule(terms core.LoanTerms) (iter.Seq[core.ScheduleRow], error) {
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	months := terms.TotalMonths()
	rate := terms.MonthlyRate()
	payment, err := MonthlyPayment(terms.Principal, rate, months)
	if err != nil {
		return nil, err
	}

	return func(yield func(core.ScheduleRow) bool) {
		balance := terms.Principal
		for month := 1; month <= months; month++ {
			interest := balance * rate
			principal := payment - interest
			balance = core.Round2(balance - principal)

			row := core.ScheduleRow{
				Month:     month,
				Principal: core.Round2(principal),
				Interest:  core.Round2(interest),
				Balance:   balance,
			}
			if !terms.StartDate.IsZero() {
				row.Date = addMonths(terms.StartDate, month-1)
			}
			if !yield(row) {
				return
			}
		}
	}, nil
}

// addMonths moves d forward by n calendar months, clamping the day to the
// end of a shorter month (Jan 31 + 1 month is Feb 28 or 29).
func addMonths(d civil.Date, n int) civil.Date {
	first := time.Date(d.Year, d.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	lastDay := first.AddDate(0, 1, -1).Day()
	return civil.Date{Year: first.Year(), Month: first.Month(), Day: min(d.Day, lastDay)}
}

// MonthlyPaymentAllocation splits the first payment into its interest and
// principal parts, each rounded to cents.
func MonthlyPaymentAllocation(terms core.LoanTerms) (interest, principal float64, err error) {
	if err := terms.Validate(); err != nil {
		return 0, 0, err
	}
	rate := terms.MonthlyRate()
	payment, err := MonthlyPayment(terms.Principal, rate, terms.TotalMonths())
	if err != nil {
		return 0, 0, err
	}
	interest = terms.Principal * rate
	return core.Round2(interest), core.Round2(payment - interest), nil
}

// Collect drains a schedule into a slice.
func Collect(seq iter.Seq[core.ScheduleRow]) []core.ScheduleRow {
	var rows []core.ScheduleRow
	for row := range seq {
		rows = append(rows, row)
	}
	return rows
}

// Summarize walks the whole schedule once. TotalInterest is the sum of the
// rounded interest column.
func Summarize(terms core.LoanTerms) (Summary, error) {
	seq, err := PaymentSchedule(terms)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize: %w", err)
	}
	payment, err := MonthlyPayment(terms.Principal, terms.MonthlyRate(), terms.TotalMonths())
	if err != nil {
		return Summary{}, fmt.Errorf("summarize: %w", err)
	}

	s := Summary{
		MonthlyPayment: core.Round2(payment),
		TotalMonths:    terms.TotalMonths(),
		FinalBalance:   terms.Principal,
	}
	for row := range seq {
		s.TotalInterest += row.Interest
		s.TotalPaid += row.Principal + row.Interest
		s.FinalBalance = row.Balance
	}
	s.TotalInterest = core.Round2(s.TotalInterest)
	s.TotalPaid = core.Round2(s.TotalPaid)
	return s, nil
}
