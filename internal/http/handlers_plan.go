package http

import (
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"planner/internal/core"
	"planner/internal/log"
	"planner/internal/services"
	"planner/internal/session"
)

var errPersonNotFound = errors.New("person not found")

// savePlan stores the plan and answers with the refreshed workspace.
func (s *Server) savePlan(w http.ResponseWriter, r *http.Request, id string, plan *session.Plan, notice string) {
	if err := s.sessions.Save(r.Context(), id, plan); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to save session",
			log.FieldError, err,
			log.FieldSessionID, id)
		InternalServerError("Could not save your plan, please try again").Write(w)
		return
	}
	b := NewHTMXResponse().
		TriggerPlanChanged(len(plan.People), len(plan.Loans)).
		TriggerSuccessNotification(notice)
	s.render(w, r, "workspace", s.workspace(plan), b)
}

func (s *Server) handleCreatePerson(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	id, plan, err := s.sessionPlan(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	person, err := parsePersonForm(r.Form, s.settings.Currency)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := plan.PutPerson(person); err != nil {
		s.writeError(w, r, err)
		return
	}
	atomic.AddInt64(&s.metrics.peopleSaved, 1)
	s.savePlan(w, r, id, plan, "Saved "+person.Name)
}

func (s *Server) handleDeletePerson(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodPost, http.MethodDelete); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	id, plan, err := s.sessionPlan(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	name := field(r.Form, "name")
	if !plan.DeletePerson(name) {
		s.writeError(w, r, fmt.Errorf("%w: %q", errPersonNotFound, name))
		return
	}
	s.savePlan(w, r, id, plan, "Removed "+name)
}

func (s *Server) handleCreateLoan(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	id, plan, err := s.sessionPlan(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	loan, err := parseLoanForm(r.Form, s.settings.Currency)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := plan.PutLoan(loan); err != nil {
		s.writeError(w, r, err)
		return
	}
	atomic.AddInt64(&s.metrics.loansSaved, 1)
	s.savePlan(w, r, id, plan, "Saved "+loan.Name)
}

func (s *Server) handleDeleteLoan(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodPost, http.MethodDelete); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	id, plan, err := s.sessionPlan(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	name := field(r.Form, "name")
	if !plan.DeleteLoan(name) {
		s.writeError(w, r, fmt.Errorf("%w: %q", services.ErrLoanNotFound, name))
		return
	}
	s.savePlan(w, r, id, plan, "Removed "+name)
}

// handleCalculatePlan amortizes the loan named in the form, or the first
// loan of the plan when none is named.
func (s *Server) handleCalculatePlan(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	_, plan, err := s.sessionPlan(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	report, err := s.planner.CalculateLoan(r.Context(), plan, field(r.Form, "loan"))
	if err != nil {
		atomic.AddInt64(&s.metrics.calcFailures, 1)
		s.writeError(w, r, err)
		return
	}
	atomic.AddInt64(&s.metrics.calculations, 1)

	terms := report.Loan.Terms
	log.NewStructuredLogger(log.FromContext(r.Context()).WithComponent(log.ComponentPlan)).
		LogCalculation(r.Context(), report.EventID, report.Loan.Name, terms.Principal, terms.AnnualRate,
			report.Summary.TotalMonths, report.Summary.MonthlyPayment, report.Loan.Currency.String())

	s.render(w, r, "report", newReportView(report), NewHTMXResponse().TriggerReportReady(report.EventID))
}

// handlePreviewShares shows how the selected people would split a loan
// before it is saved.
func (s *Server) handlePreviewShares(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	_, plan, err := s.sessionPlan(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	names, mode, custom, err := parseSharesForm(r.Form)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	people := make([]core.Person, 0, len(names))
	for _, name := range names {
		p, ok := plan.Person(name)
		if !ok {
			s.writeError(w, r, fmt.Errorf("%q: %w", name, core.ErrUnknownParticipant))
			return
		}
		people = append(people, p)
	}
	if len(people) == 0 {
		s.writeError(w, r, core.ErrNoParticipants)
		return
	}

	result, err := s.planner.PreviewShares(r.Context(), people, mode, custom)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	atomic.AddInt64(&s.metrics.sharePreviews, 1)
	s.render(w, r, "shares", sharesView{Mode: result.Mode, Shares: newShareViews(result, nil, "")}, nil)
}
