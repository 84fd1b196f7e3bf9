package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"moneta/internal/analytics"
	"moneta/internal/cache"
	"moneta/internal/core"
	"moneta/internal/log"
)

// Store is the read/write surface the handlers need from storage.
type Store interface {
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	ListTransactions(ctx context.Context, from, to time.Time) ([]core.Transaction, error)
	CreateCategory(ctx context.Context, c core.Category) error
	ListCategories(ctx context.Context) ([]core.Category, error)
	CreateRule(ctx context.Context, rule core.RecurrenceRule) error
	GetRule(ctx context.Context, id string) (core.RecurrenceRule, error)
	ListRules(ctx context.Context) ([]core.RecurrenceRule, error)
	DeleteRule(ctx context.Context, id string) error
	CreateGoal(ctx context.Context, g core.Goal) error
	ListGoals(ctx context.Context) ([]core.Goal, error)
	GetGoal(ctx context.Context, id string) (core.Goal, error)
	AddToGoal(ctx context.Context, id string, cents int64) error
	DeleteGoal(ctx context.Context, id string) error
}

// Recorder routes transaction writes through the service so the export
// queue sees them.
type Recorder interface {
	RecordTransaction(ctx context.Context, tx core.Transaction, ruleID string) (string, error)
	DeleteTransaction(ctx context.Context, id string) error
}

type Server struct {
	http.Server
	store       Store
	recorder    Recorder
	logger      *log.Logger
	rateLimiter *rateLimiter

	periodCache   *cache.LRU[[]analytics.PeriodBucket]
	categoryCache *cache.LRU[[]analytics.CategorySummary]
	trendCache    *cache.LRU[analytics.TrendSeries]
	periodLoader  *cache.Loader[[]analytics.PeriodBucket]
	catLoader     *cache.Loader[[]analytics.CategorySummary]
	trendLoader   *cache.Loader[analytics.TrendSeries]

	cacheManager *cache.Manager
	shutdownOnce sync.Once
}

// NewServer wires routes and dashboard caches, returning a server ready
// to ListenAndServe.
func NewServer(addr string, store Store, recorder Recorder, cacheTTL time.Duration, logger *log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		store:         store,
		recorder:      recorder,
		logger:        logger.WithComponent(log.ComponentHTTP),
		rateLimiter:   newRateLimiter(),
		periodCache:   cache.NewLRU[[]analytics.PeriodBucket](100, cacheTTL),
		categoryCache: cache.NewLRU[[]analytics.CategorySummary](100, cacheTTL),
		trendCache:    cache.NewLRU[analytics.TrendSeries](100, cacheTTL),
		cacheManager:  cache.NewManager(),
	}
	s.periodLoader = cache.NewLoader[[]analytics.PeriodBucket](s.periodCache)
	s.catLoader = cache.NewLoader[[]analytics.CategorySummary](s.categoryCache)
	s.trendLoader = cache.NewLoader[analytics.TrendSeries](s.trendCache)

	s.cacheManager.Register(s.periodCache)
	s.cacheManager.Register(s.categoryCache)
	s.cacheManager.Register(s.trendCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/transactions", s.secured(s.handleCreateTransaction))
	mux.HandleFunc("GET /api/transactions", s.secured(s.handleListTransactions))
	mux.HandleFunc("GET /api/transactions/{id}", s.secured(s.handleGetTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.secured(s.handleDeleteTransaction))

	mux.HandleFunc("GET /api/categories", s.secured(s.handleListCategories))
	mux.HandleFunc("POST /api/categories", s.secured(s.handleCreateCategory))

	mux.HandleFunc("POST /api/rules", s.secured(s.handleCreateRule))
	mux.HandleFunc("GET /api/rules", s.secured(s.handleListRules))
	mux.HandleFunc("GET /api/rules/{id}", s.secured(s.handleGetRule))
	mux.HandleFunc("DELETE /api/rules/{id}", s.secured(s.handleDeleteRule))

	mux.HandleFunc("GET /api/dashboard/periods", s.secured(s.handleDashboardPeriods))
	mux.HandleFunc("GET /api/dashboard/categories", s.secured(s.handleDashboardCategories))
	mux.HandleFunc("GET /api/dashboard/trend", s.secured(s.handleDashboardTrend))

	mux.HandleFunc("POST /api/goals", s.secured(s.handleCreateGoal))
	mux.HandleFunc("GET /api/goals", s.secured(s.handleListGoals))
	mux.HandleFunc("POST /api/goals/{id}/contributions", s.secured(s.handleGoalContribution))
	mux.HandleFunc("DELETE /api/goals/{id}", s.secured(s.handleDeleteGoal))

	return s
}

// secured adds security headers, rate limiting, and request logging.
func (s *Server) secured(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		s.logger.InfoContext(ctx, "request started",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, clientIP,
			log.FieldUserAgent, r.Header.Get("User-Agent"))

		// Rate limit mutations only; dashboard reads are cached anyway.
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			s.logger.WarnContext(ctx, "rate limit exceeded",
				log.FieldClientIP, clientIP, log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.logger.InfoContext(ctx, "request completed",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, time.Since(start).Milliseconds(),
			log.FieldClientIP, clientIP)
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// invalidateDashboards drops every cached aggregate after a write.
func (s *Server) invalidateDashboards() {
	s.periodCache.Purge()
	s.categoryCache.Purge()
	s.trendCache.Purge()
}

// Shutdown stops background cleanup and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// rateLimiter is a simple per-IP in-memory limiter.
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]
	if !exists {
		rl.clients[clientIP] = &clientInfo{lastRequest: now, requests: 1}
		return true
	}

	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	client.requests++
	client.lastRequest = now
	return client.requests <= 60
}
