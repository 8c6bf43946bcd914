package http

import (
	"strconv"
	"strings"
	"time"

	"planner/internal/core"
	"planner/internal/services"
	"planner/internal/shares"
	"planner/internal/storage"
)

// pageView wraps every full page with the shared navigation.
type pageView struct {
	Title   string
	Nav     []navLink
	Content any
}

type homeView struct {
	People int
	Loans  int
	Pages  []navLink
}

type personView struct {
	Name     string
	Salary   string
	Assets   string
	Currency core.Currency
}

type loanView struct {
	Name         string
	Principal    string
	Rate         string
	Term         string
	Currency     core.Currency
	Stakeholders string
	ShareMode    core.ShareMode
}

type termsForm struct {
	Principal string
	Rate      string
	Term      string
	Unit      core.TermUnit
	Currency  core.Currency
}

type workspaceView struct {
	People     []personView
	Loans      []loanView
	Names      []string
	Form       termsForm
	Currencies []core.Currency
	Units      []core.TermUnit
	Modes      []core.ShareMode
}

type calculatorView struct {
	Form       termsForm
	Currencies []core.Currency
	Units      []core.TermUnit
}

type rowView struct {
	Month     int
	Date      string
	Principal string
	Interest  string
	Balance   string
}

type shareView struct {
	Participant string
	Percent     string
	Amount      string
}

type reportView struct {
	Title          string
	Currency       core.Currency
	MonthlyPayment string
	TotalInterest  string
	TotalPaid      string
	FinalBalance   string
	TotalMonths    int
	FirstInterest  string
	FirstPrincipal string
	HasDates       bool
	Rows           []rowView
	ShareMode      core.ShareMode
	Shares         []shareView
	Chart          chartView
	EventID        string
}

type sharesView struct {
	Mode   core.ShareMode
	Shares []shareView
}

type historyRow struct {
	CreatedAt     string
	Kind          string
	LoanName      string
	Principal     string
	Rate          string
	Months        int
	Payment       string
	TotalInterest string
	Exported      string
}

type historyView struct {
	Rows []historyRow
}

func formatRate(rate float64) string {
	return strconv.FormatFloat(core.Round2(rate), 'f', -1, 64) + " %"
}

func formatTerm(t core.LoanTerms) string {
	return strconv.Itoa(t.Term) + " " + string(t.Unit)
}

func newTermsForm(t core.LoanTerms, c core.Currency) termsForm {
	return termsForm{
		Principal: strconv.FormatFloat(t.Principal, 'f', -1, 64),
		Rate:      strconv.FormatFloat(t.AnnualRate, 'f', -1, 64),
		Term:      strconv.Itoa(t.Term),
		Unit:      t.Unit,
		Currency:  c,
	}
}

func newPersonView(p core.Person) personView {
	return personView{
		Name:     p.Name,
		Salary:   core.FormatAmount(p.Salary, ""),
		Assets:   core.FormatAmount(p.Assets, ""),
		Currency: p.Currency,
	}
}

func newLoanView(l core.Loan) loanView {
	return loanView{
		Name:         l.Name,
		Principal:    core.FormatAmount(l.Terms.Principal, l.Currency),
		Rate:         formatRate(l.Terms.AnnualRate),
		Term:         formatTerm(l.Terms),
		Currency:     l.Currency,
		Stakeholders: strings.Join(l.Stakeholders, ", "),
		ShareMode:    l.ShareMode,
	}
}

func newShareViews(result core.ShareResult, split []shares.Portion, c core.Currency) []shareView {
	amounts := make(map[string]float64, len(split))
	for _, p := range split {
		amounts[p.Participant] = p.Amount
	}
	out := make([]shareView, 0, len(result.Shares))
	for _, s := range result.Shares {
		v := shareView{Participant: s.Participant, Percent: core.FormatPercent(s.Percent)}
		if amount, ok := amounts[s.Participant]; ok {
			v.Amount = core.FormatAmount(amount, c)
		}
		out = append(out, v)
	}
	return out
}

func newReportView(r *services.LoanReport) reportView {
	c := r.Loan.Currency
	title := r.Loan.Name
	if title == "" {
		title = "Mortgage"
	}
	v := reportView{
		Title:          title,
		Currency:       c,
		MonthlyPayment: core.FormatAmount(r.Summary.MonthlyPayment, c),
		TotalInterest:  core.FormatAmount(r.Summary.TotalInterest, c),
		TotalPaid:      core.FormatAmount(r.Summary.TotalPaid, c),
		FinalBalance:   core.FormatAmount(r.Summary.FinalBalance, c),
		TotalMonths:    r.Summary.TotalMonths,
		FirstInterest:  core.FormatAmount(r.FirstInterest, c),
		FirstPrincipal: core.FormatAmount(r.FirstPrincipal, c),
		HasDates:       !r.Loan.Terms.StartDate.IsZero(),
		Rows:           make([]rowView, 0, len(r.Rows)),
		Chart:          balanceChart(r.Rows, r.Loan.Terms.Principal, c),
		EventID:        r.EventID,
	}
	for _, row := range r.Rows {
		rv := rowView{
			Month:     row.Month,
			Principal: core.FormatAmount(row.Principal, ""),
			Interest:  core.FormatAmount(row.Interest, ""),
			Balance:   core.FormatAmount(row.Balance, ""),
		}
		if v.HasDates {
			rv.Date = row.Date.String()
		}
		v.Rows = append(v.Rows, rv)
	}
	if !r.Shares.IsEmpty() {
		v.ShareMode = r.Shares.Mode
		v.Shares = newShareViews(r.Shares, r.PaymentSplit, c)
	}
	return v
}

func newHistoryView(calcs []storage.Calculation) historyView {
	v := historyView{Rows: make([]historyRow, 0, len(calcs))}
	for _, c := range calcs {
		row := historyRow{
			CreatedAt:     c.CreatedAt.Local().Format(time.DateTime),
			Kind:          c.Kind,
			LoanName:      c.LoanName,
			Principal:     core.FormatAmount(c.Principal, c.Currency),
			Rate:          formatRate(c.AnnualRate),
			Months:        c.TotalMonths,
			Payment:       core.FormatAmount(c.MonthlyPayment, c.Currency),
			TotalInterest: core.FormatAmount(c.TotalInterest, c.Currency),
		}
		switch {
		case c.ExportedAt != nil:
			row.Exported = "exported"
		case c.ExportError != "":
			row.Exported = "failed"
		default:
			row.Exported = "pending"
		}
		v.Rows = append(v.Rows, row)
	}
	return v
}
