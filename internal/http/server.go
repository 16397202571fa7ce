package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"finview/internal/analytics"
	"finview/internal/core"
	"finview/internal/log"
	"finview/internal/ports"
)

// requestTimeout bounds every store-backed handler.
const requestTimeout = 7 * time.Second

type (
	// TransactionCreator runs the create flow for one record.
	TransactionCreator interface {
		Create(ctx context.Context, kind core.Kind, in core.NewTransaction) (core.Transaction, error)
	}

	// DashboardReader serves aggregates and merged history.
	DashboardReader interface {
		Dashboard(ctx context.Context, period core.Period) (analytics.Dashboard, error)
		History(ctx context.Context) ([]analytics.HistoryEntry, error)
	}

	// Pinger is implemented by stores that can report readiness.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// Deps are the collaborators the handlers call.
type Deps struct {
	Transactions TransactionCreator
	Dashboard    DashboardReader
	Categories   ports.CategoryLister
	// Ready is optional; when nil /readyz always reports ready.
	Ready  Pinger
	Logger *log.Logger
	// PostsPerMinute limits create requests per client IP. Zero means 60.
	PostsPerMinute int
}

type Server struct {
	http.Server
	deps         Deps
	logger       *log.Logger
	limiter      *rateLimiter
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default(log.ComponentHTTP)
	}

	s := &Server{
		deps:    deps,
		logger:  logger,
		limiter: newRateLimiter(deps.PostsPerMinute),
	}
	s.limiter.start(5 * time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/api/dashboard", s.handleDashboard)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/categories", s.handleCategories)
	mux.HandleFunc("/api/expenses", s.limitPosts(s.handleCreate(core.KindExpense)))
	mux.HandleFunc("/api/incomes", s.limitPosts(s.handleCreate(core.KindIncome)))

	requestID := func(r *http.Request) string {
		if id := r.Header.Get("X-Request-ID"); id != "" {
			return id
		}
		return uuid.NewString()
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           log.Middleware(logger, requestID)(withSecurityHeaders(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown stops background cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) limitPosts(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			ip := clientIP(r)
			if !s.limiter.allow(ip) {
				log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
					log.FieldClientIP, ip,
					log.FieldPath, r.URL.Path)
				w.Header().Set("Retry-After", "60")
				writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
				return
			}
		}
		next(w, r)
	}
}
