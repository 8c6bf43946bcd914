package http

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"planner/internal/core"
	"planner/internal/log"
	"planner/internal/services"
	"planner/internal/session"
	"planner/internal/storage"
	appweb "planner/web"
)

// Planner runs the calculations behind the forms.
type Planner interface {
	CalculateLoan(ctx context.Context, plan *session.Plan, loanName string) (*services.LoanReport, error)
	CalculateMortgage(ctx context.Context, terms core.LoanTerms, currency core.Currency) (*services.LoanReport, error)
	PreviewShares(ctx context.Context, people []core.Person, mode core.ShareMode, custom map[string]float64) (core.ShareResult, error)
}

// JournalReader lists journaled calculations, newest first.
type JournalReader interface {
	ListCalculations(ctx context.Context, limit int) ([]storage.Calculation, error)
}

// Settings configures the form host.
type Settings struct {
	Addr string
	// Defaults prefill the loan and calculator forms.
	Defaults   core.LoanTerms
	Currency   core.Currency
	SessionTTL time.Duration
	// SecureCookies marks the session cookie Secure, for TLS deployments.
	SecureCookies bool
	// RateLimit is the number of POST requests allowed per client and minute.
	RateLimit int
}

// Option customizes a Server.
type Option func(*Server)

// WithJournal adds the History page listing recent calculations.
func WithJournal(j JournalReader) Option {
	return func(s *Server) { s.journal = j }
}

// WithReadinessCheck adds a dependency check reported by /readyz.
func WithReadinessCheck(name string, check func(context.Context) error) Option {
	return func(s *Server) {
		s.readiness = append(s.readiness, readinessCheck{name: name, check: check})
	}
}

// WithTemplates replaces the embedded templates.
func WithTemplates(t *template.Template) Option {
	return func(s *Server) { s.templates = t }
}

type readinessCheck struct {
	name  string
	check func(context.Context) error
}

// appMetrics holds counters exposed on /metrics. Fields are updated
// atomically.
type appMetrics struct {
	uptime           time.Time
	requests         int64
	calculations     int64
	calcFailures     int64
	peopleSaved      int64
	loansSaved       int64
	sharePreviews    int64
	validationErrors int64
}

// Server is the interactive planner: pages, HTMX form endpoints and probes.
type Server struct {
	http.Server
	templates    *template.Template
	pages        *PageRegistry
	planner      Planner
	sessions     session.Store
	journal      JournalReader
	settings     Settings
	logger       *log.Logger
	structured   *log.StructuredLogger
	rateLimiter  *rateLimiter
	security     *securityMetrics
	metrics      *appMetrics
	readiness    []readinessCheck
	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(settings Settings, planner Planner, sessions session.Store, logger *log.Logger, opts ...Option) *Server {
	if settings.Currency == "" {
		settings.Currency = core.DefaultCurrency
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	mux := http.NewServeMux()
	s := &Server{
		planner:     planner,
		sessions:    sessions,
		settings:    settings,
		logger:      logger,
		structured:  log.NewStructuredLogger(logger),
		rateLimiter: newRateLimiter(settings.RateLimit, time.Minute),
		security:    &securityMetrics{},
		metrics:     &appMetrics{uptime: time.Now()},
	}
	s.Server = http.Server{
		Addr:              settings.Addr,
		Handler:           log.Middleware(logger)(s.withSecurityHeaders(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	for _, opt := range opts {
		opt(s)
	}

	s.pages = NewPageRegistry().
		Register(Page{ID: "home", Title: "Home", Path: "/", Template: "home.html", Data: s.homeData}).
		Register(Page{ID: "plan", Title: "Planner", Path: "/plan", Template: "plan.html", Data: s.planData}).
		Register(Page{ID: "calculator", Title: "Mortgage Calculator", Path: "/calculator", Template: "calculator.html", Data: s.calculatorData})
	if s.journal != nil {
		s.pages.Register(Page{ID: "history", Title: "History", Path: "/history", Template: "history.html", Data: s.historyData})
	}

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			static.ServeHTTP(w, r)
		}))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	mux.HandleFunc("/people", s.handleCreatePerson)
	mux.HandleFunc("/people/delete", s.handleDeletePerson)
	mux.HandleFunc("/loans", s.handleCreateLoan)
	mux.HandleFunc("/loans/delete", s.handleDeleteLoan)
	mux.HandleFunc("/plan/calculate", s.handleCalculatePlan)
	mux.HandleFunc("/shares/preview", s.handlePreviewShares)

	// Pages, including GET /calculator. POST /calculator runs it.
	mux.HandleFunc("/", s.handlePage)

	return s
}

// Pages returns the registered pages in navigation order.
func (s *Server) Pages() *PageRegistry {
	return s.pages
}

// Shutdown stops the rate limiter cleanup and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request
// logging to responses.
func (s *Server) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		atomic.AddInt64(&s.metrics.requests, 1)

		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		logger := log.FromContext(r.Context()).With(log.FieldRequestID, requestID)
		ctx := log.NewContext(r.Context(), logger)
		r = r.WithContext(ctx)

		structured := log.NewStructuredLogger(logger)
		structured.LogHTTPStart(ctx, r, clientIP)

		if reason := suspiciousReason(r); reason != "" {
			atomic.AddInt64(&s.security.suspiciousRequests, 1)
			logger.WarnContext(ctx, "Suspicious request",
				"reason", reason,
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.UserAgent())
		}

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP, s.security) {
			logger.WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Request-ID", requestID)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		structured.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// sessionPlan loads the plan of the caller's session, issuing a new session
// cookie when there is none or it is not one of ours. An expired session
// starts over with an empty plan under the same id.
func (s *Server) sessionPlan(w http.ResponseWriter, r *http.Request) (string, *session.Plan, error) {
	if c, err := r.Cookie(session.CookieName); err == nil && session.ValidID(c.Value) {
		plan, err := s.sessions.Load(r.Context(), c.Value)
		switch {
		case err == nil:
			return c.Value, plan, nil
		case errors.Is(err, session.ErrNotFound):
			return c.Value, session.NewPlan(), nil
		default:
			return "", nil, err
		}
	}

	id := session.NewID()
	cookie := &http.Cookie{
		Name:     session.CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.settings.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if s.settings.SessionTTL > 0 {
		cookie.MaxAge = int(s.settings.SessionTTL.Seconds())
	}
	http.SetCookie(w, cookie)
	return id, session.NewPlan(), nil
}

// render executes a template into b and writes it. Template failures become
// a 500 so a half-rendered page is never sent.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any, b *HTMXResponseBuilder) {
	if s.templates == nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded", log.FieldPath, r.URL.Path)
		InternalServerError("Templates not loaded").Write(w)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err,
			log.FieldOperation, log.OpRender,
			"template", name)
		InternalServerError("Could not render page").Write(w)
		return
	}
	if b == nil {
		b = NewHTMXResponse()
	}
	b.BodyHTML(buf.String()).Write(w)
}

// writeError maps a failed operation to a response. Validation problems
// are shown to the user as they are; they are never corrected silently.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrLoanNotFound), errors.Is(err, errPersonNotFound):
		NotFoundError(userMessage(err)).Write(w)
	case errors.Is(err, services.ErrNoLoans):
		UnprocessableEntityError("Add a loan before calculating").Write(w)
	case errors.Is(err, core.ErrInvalidInput):
		atomic.AddInt64(&s.metrics.validationErrors, 1)
		msg := userMessage(err)
		UnprocessableEntityError(msg).TriggerErrorNotification(msg).Write(w)
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldError, err,
			log.FieldPath, r.URL.Path)
		InternalServerError("Something went wrong, please try again").Write(w)
	}
}
