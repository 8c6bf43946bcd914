package http

import (
	"net/http"
	"sync/atomic"

	"planner/internal/log"
)

// handleCalculate runs the standalone mortgage calculator, which needs no
// plan and no session.
func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	terms, currency, err := parseTermsForm(r.Form, s.settings.Currency)
	if err != nil {
		atomic.AddInt64(&s.metrics.calcFailures, 1)
		s.writeError(w, r, err)
		return
	}

	report, err := s.planner.CalculateMortgage(r.Context(), terms, currency)
	if err != nil {
		atomic.AddInt64(&s.metrics.calcFailures, 1)
		s.writeError(w, r, err)
		return
	}
	atomic.AddInt64(&s.metrics.calculations, 1)

	log.NewStructuredLogger(log.FromContext(r.Context()).WithComponent(log.ComponentCalculator)).
		LogCalculation(r.Context(), report.EventID, "", terms.Principal, terms.AnnualRate,
			report.Summary.TotalMonths, report.Summary.MonthlyPayment, currency.String())

	s.render(w, r, "report", newReportView(report), NewHTMXResponse().TriggerReportReady(report.EventID))
}
