package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"planner/internal/amortization"
	"planner/internal/core"
	"planner/internal/recorder"
	"planner/internal/session"
	"planner/internal/shares"
)

var (
	ErrNoLoans      = errors.New("no loans in the plan")
	ErrLoanNotFound = errors.New("loan not found")
)

// LoanReport is everything the planner shows for one calculated loan.
type LoanReport struct {
	Loan           core.Loan
	Rows           []core.ScheduleRow
	Summary        amortization.Summary
	FirstInterest  float64
	FirstPrincipal float64
	Shares         core.ShareResult
	PaymentSplit   []shares.Portion // monthly payment per stakeholder
	EventID        string
}

// PlanService runs calculations for the form host and journals them.
type PlanService struct {
	recorder recorder.Recorder
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

func NewPlanService(rec recorder.Recorder, logger *slog.Logger) *PlanService {
	if rec == nil {
		rec = recorder.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PlanService{
		recorder: rec,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// CalculateLoan amortizes a loan of the plan and splits its monthly payment
// between the stakeholders. An empty loanName selects the first loan.
func (s *PlanService) CalculateLoan(ctx context.Context, plan *session.Plan, loanName string) (*LoanReport, error) {
	var (
		loan core.Loan
		ok   bool
	)
	if loanName == "" {
		if loan, ok = plan.FirstLoan(); !ok {
			return nil, ErrNoLoans
		}
	} else if loan, ok = plan.Loan(loanName); !ok {
		return nil, fmt.Errorf("%q: %w", loanName, ErrLoanNotFound)
	}

	report, err := s.schedule(loan)
	if err != nil {
		return nil, fmt.Errorf("calculate loan %q: %w", loan.Name, err)
	}

	if people := plan.Stakeholders(loan.Name); len(people) > 0 {
		result, err := shares.Allocate(people, loan.ShareMode, loan.CustomShares)
		if err != nil {
			return nil, fmt.Errorf("calculate loan %q: %w", loan.Name, err)
		}
		report.Shares = result
		report.PaymentSplit = shares.Split(report.Summary.MonthlyPayment, result)
	}

	s.record(ctx, core.KindLoan, report)
	return report, nil
}

// CalculateMortgage runs the standalone calculator, which is not tied to a
// plan.
func (s *PlanService) CalculateMortgage(ctx context.Context, terms core.LoanTerms, currency core.Currency) (*LoanReport, error) {
	if currency == "" {
		currency = core.DefaultCurrency
	}
	loan := core.Loan{Terms: terms, Currency: currency, ShareMode: core.ShareEqual}
	if !currency.IsValid() {
		return nil, core.ErrInvalidCurrency
	}

	report, err := s.schedule(loan)
	if err != nil {
		return nil, fmt.Errorf("calculate mortgage: %w", err)
	}
	s.record(ctx, core.KindCalculator, report)
	return report, nil
}

// PreviewShares allocates shares without touching any loan.
func (s *PlanService) PreviewShares(_ context.Context, people []core.Person, mode core.ShareMode, custom map[string]float64) (core.ShareResult, error) {
	return shares.Allocate(people, mode, custom)
}

func (s *PlanService) Close() error {
	return s.recorder.Close()
}

func (s *PlanService) schedule(loan core.Loan) (*LoanReport, error) {
	seq, err := amortization.PaymentSchedule(loan.Terms)
	if err != nil {
		return nil, err
	}
	summary, err := amortization.Summarize(loan.Terms)
	if err != nil {
		return nil, err
	}
	interest, principal, err := amortization.MonthlyPaymentAllocation(loan.Terms)
	if err != nil {
		return nil, err
	}
	return &LoanReport{
		Loan:           loan,
		Rows:           amortization.Collect(seq),
		Summary:        summary,
		FirstInterest:  interest,
		FirstPrincipal: principal,
	}, nil
}

// record journals the calculation. Failures are logged only; the user
// still gets their numbers.
func (s *PlanService) record(ctx context.Context, kind string, r *LoanReport) {
	e := core.CalculationEvent{
		ID:             s.newID(),
		Kind:           kind,
		LoanName:       r.Loan.Name,
		Principal:      r.Loan.Terms.Principal,
		AnnualRate:     r.Loan.Terms.AnnualRate,
		TotalMonths:    r.Summary.TotalMonths,
		Currency:       r.Loan.Currency,
		MonthlyPayment: r.Summary.MonthlyPayment,
		TotalInterest:  r.Summary.TotalInterest,
		FinalBalance:   r.Summary.FinalBalance,
		Participants:   len(r.Shares.Shares),
		CreatedAt:      s.now().UTC(),
	}
	if !r.Shares.IsEmpty() {
		e.ShareMode = r.Shares.Mode
	}
	r.EventID = e.ID

	if err := s.recorder.RecordCalculation(ctx, e); err != nil {
		s.logger.ErrorContext(ctx, "Failed to record calculation",
			"id", e.ID,
			"kind", kind,
			"error", err)
	}
}
