package core

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"cloud.google.com/go/civil"
)

const (
	Years  TermUnit = "years"
	Months TermUnit = "months"
)

const (
	ShareEqual  ShareMode = "equal"
	ShareSalary ShareMode = "salary"
	ShareCustom ShareMode = "custom"
)

const maxNameLength = 80

// Upper bounds on loan terms accepted from forms.
const (
	MaxPrincipal  = 1_000_000_000.0
	MaxAnnualRate = 1000.0 // percent
	MaxTermMonths = 600    // 50 years
)

type (
	TermUnit  string
	ShareMode string

	// LoanTerms are the immutable inputs of one amortization computation.
	LoanTerms struct {
		Principal  float64 // original amount borrowed
		AnnualRate float64 // percent, e.g. 5.0 for 5 %
		Term       int
		Unit       TermUnit
		StartDate  civil.Date // optional, only used to date schedule rows
	}

	Loan struct {
		Name         string
		Terms        LoanTerms
		Currency     Currency
		Stakeholders []string // participant names, in selection order
		ShareMode    ShareMode
		CustomShares map[string]float64 // percent by participant, ShareCustom only
	}

	// Person is a planning participant. Name is unique within a plan.
	Person struct {
		Name     string
		Salary   float64 // yearly
		Assets   float64 // disposable assets
		Currency Currency
	}

	ScheduleRow struct {
		Month     int
		Date      civil.Date
		Principal float64
		Interest  float64
		Balance   float64 // remaining balance after this payment
	}
)

var (
	// ErrInvalidInput is the root of every validation failure raised by the
	// computation core. Specific errors below wrap it.
	ErrInvalidInput = errors.New("invalid input")

	ErrNonPositivePrincipal = fmt.Errorf("%w: principal must be positive", ErrInvalidInput)
	ErrNegativePrincipal    = fmt.Errorf("%w: principal cannot be negative", ErrInvalidInput)
	ErrPrincipalTooLarge    = fmt.Errorf("%w: principal cannot exceed %.0f", ErrInvalidInput, MaxPrincipal)
	ErrNegativeRate         = fmt.Errorf("%w: interest rate cannot be negative", ErrInvalidInput)
	ErrRateTooHigh          = fmt.Errorf("%w: interest rate cannot exceed %.0f %%", ErrInvalidInput, MaxAnnualRate)
	ErrNonPositiveTerm      = fmt.Errorf("%w: term must be positive", ErrInvalidInput)
	ErrTermTooLong          = fmt.Errorf("%w: term cannot exceed %d months", ErrInvalidInput, MaxTermMonths)
	ErrNotFinite            = fmt.Errorf("%w: amount must be a finite number", ErrInvalidInput)
	ErrInvalidTermUnit      = fmt.Errorf("%w: term unit must be years or months", ErrInvalidInput)
	ErrInvalidShareMode     = fmt.Errorf("%w: share mode must be equal, salary or custom", ErrInvalidInput)
	ErrEmptyName            = fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
	ErrNameTooLong          = fmt.Errorf("%w: name too long (max %d characters)", ErrInvalidInput, maxNameLength)
	ErrNegativeSalary       = fmt.Errorf("%w: salary cannot be negative", ErrInvalidInput)
	ErrNegativeAssets       = fmt.Errorf("%w: assets cannot be negative", ErrInvalidInput)
	ErrEmptySalaries        = fmt.Errorf("%w: salary list is empty", ErrInvalidInput)
	ErrZeroSalaryTotal      = fmt.Errorf("%w: salaries sum to zero", ErrInvalidInput)
	ErrNoParticipants       = fmt.Errorf("%w: at least one participant is required", ErrInvalidInput)
	ErrSharesDoNotSum       = fmt.Errorf("%w: shares must sum to 100", ErrInvalidInput)
	ErrDuplicateName        = fmt.Errorf("%w: duplicate name", ErrInvalidInput)
	ErrUnknownParticipant   = fmt.Errorf("%w: unknown participant", ErrInvalidInput)
)

// ParseTermUnit accepts "years"/"months" case-insensitively.
func ParseTermUnit(s string) (TermUnit, error) {
	switch TermUnit(strings.ToLower(strings.TrimSpace(s))) {
	case Years:
		return Years, nil
	case Months:
		return Months, nil
	default:
		return "", ErrInvalidTermUnit
	}
}

func (u TermUnit) IsValid() bool {
	return u == Years || u == Months
}

// ParseShareMode accepts "equal", "salary" and "custom"; empty means equal.
func ParseShareMode(s string) (ShareMode, error) {
	switch ShareMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ShareEqual:
		return ShareEqual, nil
	case ShareSalary:
		return ShareSalary, nil
	case ShareCustom:
		return ShareCustom, nil
	default:
		return "", ErrInvalidShareMode
	}
}

// MonthlyRate is the annual percentage rate converted to a monthly fraction.
func (t LoanTerms) MonthlyRate() float64 {
	return t.AnnualRate / 12 / 100
}

// TotalMonths is the number of monthly payments. It is zero for an unknown unit.
func (t LoanTerms) TotalMonths() int {
	switch t.Unit {
	case Years:
		return t.Term * 12
	case Months:
		return t.Term
	default:
		return 0
	}
}

// Validate checks the terms against the accepted ranges. The term is bounded
// in its own unit so TotalMonths cannot overflow.
func (t LoanTerms) Validate() error {
	if !isFinite(t.Principal) || !isFinite(t.AnnualRate) {
		return ErrNotFinite
	}
	if t.Principal <= 0 {
		return ErrNonPositivePrincipal
	}
	if t.Principal > MaxPrincipal {
		return ErrPrincipalTooLarge
	}
	if t.AnnualRate < 0 {
		return ErrNegativeRate
	}
	if t.AnnualRate > MaxAnnualRate {
		return ErrRateTooHigh
	}
	if t.Term <= 0 {
		return ErrNonPositiveTerm
	}
	switch t.Unit {
	case Years:
		if t.Term > MaxTermMonths/12 {
			return ErrTermTooLong
		}
	case Months:
		if t.Term > MaxTermMonths {
			return ErrTermTooLong
		}
	default:
		return ErrInvalidTermUnit
	}
	return nil
}

func (l Loan) Validate() error {
	if err := validateName(l.Name); err != nil {
		return err
	}
	if err := l.Terms.Validate(); err != nil {
		return fmt.Errorf("loan %q: %w", l.Name, err)
	}
	if !l.Currency.IsValid() {
		return ErrInvalidCurrency
	}
	switch l.ShareMode {
	case "", ShareEqual, ShareSalary, ShareCustom:
	default:
		return ErrInvalidShareMode
	}
	seen := make(map[string]struct{}, len(l.Stakeholders))
	for _, name := range l.Stakeholders {
		if _, ok := seen[name]; ok {
			return fmt.Errorf("stakeholder %q: %w", name, ErrDuplicateName)
		}
		seen[name] = struct{}{}
	}
	return nil
}

func (p Person) Validate() error {
	if err := validateName(p.Name); err != nil {
		return err
	}
	if !isFinite(p.Salary) || !isFinite(p.Assets) {
		return ErrNotFinite
	}
	if p.Salary < 0 {
		return ErrNegativeSalary
	}
	if p.Assets < 0 {
		return ErrNegativeAssets
	}
	if !p.Currency.IsValid() {
		return ErrInvalidCurrency
	}
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if len(name) > maxNameLength {
		return ErrNameTooLong
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
