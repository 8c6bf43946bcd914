package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"planner/internal/core"
	"planner/internal/log"
	"planner/internal/session"
)

const historyLimit = 50

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.metrics.uptime).Round(time.Second).String(),
	})
}

// handleReady reports templates and every registered dependency check.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string, len(s.readiness)+1)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	for _, rc := range s.readiness {
		if err := rc.check(ctx); err != nil {
			checks[rc.name] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		checks[rc.name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	rateLimitHits, suspicious := s.security.snapshot()
	counter := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n\n", name, help, name, name, v)
	}
	gauge := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n\n", name, help, name, name, v)
	}

	counter("http_requests_total", "Total number of HTTP requests", atomic.LoadInt64(&s.metrics.requests))
	counter("calculations_total", "Loans and mortgages calculated", atomic.LoadInt64(&s.metrics.calculations))
	counter("calculation_failures_total", "Calculations rejected or failed", atomic.LoadInt64(&s.metrics.calcFailures))
	counter("people_saved_total", "People added or updated", atomic.LoadInt64(&s.metrics.peopleSaved))
	counter("loans_saved_total", "Loans added or updated", atomic.LoadInt64(&s.metrics.loansSaved))
	counter("share_previews_total", "Share previews computed", atomic.LoadInt64(&s.metrics.sharePreviews))
	counter("validation_errors_total", "Form submissions rejected as invalid", atomic.LoadInt64(&s.metrics.validationErrors))
	counter("rate_limit_hits_total", "Requests refused by the rate limiter", rateLimitHits)
	counter("suspicious_requests_total", "Requests matching exploit probes", suspicious)
	gauge("rate_limiter_active_clients", "Client IPs tracked by the rate limiter", int64(s.rateLimiter.ActiveClients()))
	if sized, ok := s.sessions.(interface{ Len() int }); ok {
		gauge("sessions_active", "Sessions held in memory", int64(sized.Len()))
	}
	gauge("uptime_seconds", "Seconds since start", int64(time.Since(s.metrics.uptime).Seconds()))
}

// handlePage renders a registered page. Unknown paths are 404.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	page, ok := s.pages.ByPath(r.URL.Path)
	if !ok {
		NotFoundError("Page not found").Write(w)
		return
	}
	if page.ID == "calculator" && r.Method == http.MethodPost {
		s.handleCalculate(w, r)
		return
	}
	if resp := RequireMethod(r, http.MethodGet, http.MethodHead); resp != nil {
		resp.Write(w)
		return
	}

	_, plan, err := s.sessionPlan(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	content, err := page.Data(r, plan)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.render(w, r, page.Template, pageView{
		Title:   page.Title,
		Nav:     s.pages.nav(page.ID),
		Content: content,
	}, nil)
}

func (s *Server) homeData(_ *http.Request, plan *session.Plan) (any, error) {
	links := s.pages.nav("home")
	return homeView{People: len(plan.People), Loans: len(plan.Loans), Pages: links[1:]}, nil
}

func (s *Server) planData(_ *http.Request, plan *session.Plan) (any, error) {
	return s.workspace(plan), nil
}

func (s *Server) calculatorData(_ *http.Request, _ *session.Plan) (any, error) {
	return calculatorView{
		Form:       newTermsForm(s.settings.Defaults, s.settings.Currency),
		Currencies: core.Currencies(),
		Units:      []core.TermUnit{core.Years, core.Months},
	}, nil
}

func (s *Server) historyData(r *http.Request, _ *session.Plan) (any, error) {
	calcs, err := s.journal.ListCalculations(r.Context(), historyLimit)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to list calculations",
			log.FieldError, err,
			log.FieldOperation, log.OpList)
		return nil, err
	}
	return newHistoryView(calcs), nil
}

func (s *Server) workspace(plan *session.Plan) workspaceView {
	v := workspaceView{
		People:     make([]personView, 0, len(plan.People)),
		Loans:      make([]loanView, 0, len(plan.Loans)),
		Names:      make([]string, 0, len(plan.People)),
		Form:       newTermsForm(s.settings.Defaults, s.settings.Currency),
		Currencies: core.Currencies(),
		Units:      []core.TermUnit{core.Years, core.Months},
		Modes:      []core.ShareMode{core.ShareEqual, core.ShareSalary, core.ShareCustom},
	}
	for _, p := range plan.People {
		v.People = append(v.People, newPersonView(p))
		v.Names = append(v.Names, p.Name)
	}
	for _, l := range plan.Loans {
		v.Loans = append(v.Loans, newLoanView(l))
	}
	return v
}
