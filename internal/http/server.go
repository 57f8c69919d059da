package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"bilancio/internal/core"
	applog "bilancio/internal/log"
	"bilancio/internal/middleware/auth"
	"bilancio/internal/middleware/ratelimit"
	"bilancio/internal/middleware/security"
	"bilancio/internal/middleware/trace"

	"github.com/gorilla/mux"
)

// Budget is the application surface served over HTTP.
type Budget interface {
	Today() core.Date
	Ping(ctx context.Context) error

	Snapshot(ctx context.Context, ownerID string, monthStart, monthEnd core.Date) (core.Snapshot, error)
	MonthSnapshot(ctx context.Context, ownerID, month string) (core.Snapshot, error)
	UnpaidInRange(ctx context.Context, ownerID string, start, end core.Date) (core.Snapshot, error)
	ExportSnapshot(ctx context.Context, ownerID, month string) (string, error)

	ListEntries(ctx context.Context, ownerID string) ([]core.OneTimeEntry, error)
	GetEntry(ctx context.Context, ownerID, id string) (core.OneTimeEntry, error)
	CreateEntry(ctx context.Context, ownerID string, e core.OneTimeEntry) (core.OneTimeEntry, error)
	UpdateEntry(ctx context.Context, ownerID, id string, e core.OneTimeEntry) (core.OneTimeEntry, error)
	DeleteEntry(ctx context.Context, ownerID, id string) error

	ListRules(ctx context.Context, ownerID string) ([]core.Rule, error)
	GetRule(ctx context.Context, ownerID, id string) (core.Rule, error)
	CreateRule(ctx context.Context, ownerID string, r core.Rule) (core.Rule, error)
	UpdateRule(ctx context.Context, ownerID, id string, r core.Rule) (core.Rule, error)
	SetRuleActive(ctx context.Context, ownerID, id string, active bool) (core.Rule, error)
	DeleteRule(ctx context.Context, ownerID, id string) error

	ListOverrides(ctx context.Context, ownerID string) ([]core.Override, error)
	DeleteOverride(ctx context.Context, ownerID, id string) error
	MarkOccurrencePaid(ctx context.Context, ownerID, ruleID string, occurrence, paidOn core.Date) (core.Override, error)
	PostponeOccurrence(ctx context.Context, ownerID, ruleID string, occurrence, newDate core.Date) (core.Override, error)
	SkipOccurrence(ctx context.Context, ownerID, ruleID string, occurrence core.Date) (core.Override, error)
	OccurrenceOverride(ctx context.Context, ownerID, ruleID string, occurrence core.Date) (core.Override, bool, error)

	GetOwner(ctx context.Context, id string) (core.Owner, error)
	SaveOwner(ctx context.Context, o core.Owner) error
}

type Config struct {
	Addr               string
	JWTSecret          string
	JWTIssuer          string
	RateLimitPerMinute int
	TrustedProxies     []string
	BlockSuspicious    bool
	Logger             *applog.Logger
}

type Server struct {
	http.Server
	budget   Budget
	auth     *auth.Authenticator
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	logger   *applog.Logger

	shutdownOnce sync.Once
}

// NewServer wires middleware and routes and returns a ready-to-run server.
func NewServer(cfg Config, b Budget) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = applog.Default(applog.ComponentHTTP)
	}

	detector := security.NewDetector(cfg.BlockSuspicious, logger.Logger)
	for _, cidr := range cfg.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", applog.FieldError, err)
		}
	}

	s := &Server{
		budget:   b,
		auth:     auth.New(cfg.JWTSecret, cfg.JWTIssuer),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		detector: detector,
		tracer:   trace.NewMiddleware(detector.ClientIP, logger),
		logger:   logger,
	}
	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// routes wraps the router so that unmatched requests are traced and screened too.
func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no such route"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	})

	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.auth.Middleware(writeError))
	api.Use(applog.Enrich(func(r *http.Request) []any { return []any{applog.FieldOwnerID, owner(r)} }))
	api.Use(s.limiter.Middleware(s.ownerOrIP, ratelimit.IsMutation))

	api.HandleFunc("/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/snapshot/export", s.handleExportSnapshot).Methods(http.MethodPost)
	api.HandleFunc("/unpaid", s.handleUnpaid).Methods(http.MethodGet)

	api.HandleFunc("/entries", s.handleListEntries).Methods(http.MethodGet)
	api.HandleFunc("/entries", s.handleCreateEntry).Methods(http.MethodPost)
	api.HandleFunc("/entries/{id}", s.handleGetEntry).Methods(http.MethodGet)
	api.HandleFunc("/entries/{id}", s.handleUpdateEntry).Methods(http.MethodPut)
	api.HandleFunc("/entries/{id}", s.handleDeleteEntry).Methods(http.MethodDelete)

	api.HandleFunc("/rules", s.handleListRules).Methods(http.MethodGet)
	api.HandleFunc("/rules", s.handleCreateRule).Methods(http.MethodPost)
	api.HandleFunc("/rules/{id}", s.handleGetRule).Methods(http.MethodGet)
	api.HandleFunc("/rules/{id}", s.handleUpdateRule).Methods(http.MethodPut)
	api.HandleFunc("/rules/{id}", s.handleDeleteRule).Methods(http.MethodDelete)
	api.HandleFunc("/rules/{id}/activate", s.handleSetRuleActive(true)).Methods(http.MethodPost)
	api.HandleFunc("/rules/{id}/deactivate", s.handleSetRuleActive(false)).Methods(http.MethodPost)
	api.HandleFunc("/rules/{id}/occurrences/{date}/{action:paid|postpone|skip}", s.handleOccurrence).Methods(http.MethodPost)

	api.HandleFunc("/overrides", s.handleListOverrides).Methods(http.MethodGet)
	api.HandleFunc("/overrides/{id}", s.handleDeleteOverride).Methods(http.MethodDelete)

	api.HandleFunc("/owner", s.handleGetOwner).Methods(http.MethodGet)
	api.HandleFunc("/owner", s.handleUpdateOwner).Methods(http.MethodPut)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	return s.tracer.Middleware(s.detector.Middleware(headers.Middleware(r)))
}

// ownerOrIP keys the rate limiter by owner, falling back to the client address.
func (s *Server) ownerOrIP(r *http.Request) string {
	if owner, ok := auth.OwnerFromContext(r.Context()); ok {
		return "owner:" + owner
	}
	return "ip:" + s.detector.ClientIP(r)
}

// Shutdown stops background work and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.budget.Ping(ctx); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "storage unavailable"})
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// owner returns the authenticated owner; the auth middleware guarantees one.
func owner(r *http.Request) string {
	o, _ := auth.OwnerFromContext(r.Context())
	return o
}
