package core

import "time"

const (
	KindLoan       = "loan"
	KindCalculator = "calculator"
)

// CalculationEvent is the journal record of one completed calculation.
type CalculationEvent struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"`
	LoanName       string    `json:"loan_name,omitempty"`
	Principal      float64   `json:"principal"`
	AnnualRate     float64   `json:"annual_rate"`
	TotalMonths    int       `json:"total_months"`
	Currency       Currency  `json:"currency"`
	MonthlyPayment float64   `json:"monthly_payment"`
	TotalInterest  float64   `json:"total_interest"`
	FinalBalance   float64   `json:"final_balance"`
	Participants   int       `json:"participants"`
	ShareMode      ShareMode `json:"share_mode,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
