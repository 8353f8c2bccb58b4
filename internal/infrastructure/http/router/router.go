package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	limitmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limitredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	"login-risk-engine/internal/interfaces/http/handler"
)

// Options configures middleware and optional routes
type Options struct {
	Logger *zap.Logger

	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Only set it behind a proxy that overwrites those headers.
	TrustProxy bool
	// AllowedOrigins for CORS; empty allows any origin
	AllowedOrigins []string

	// RateLimit uses the "<limit>-<period>" format, e.g. "300-M". Empty disables limiting.
	RateLimit string
	// RateLimitRedis shares limiter counters across instances when set
	RateLimitRedis *goredis.Client

	MetricsEnabled bool
	MetricsPath    string
}

// Router holds all HTTP handlers
type Router struct {
	mux           chi.Router
	riskHandler   *handler.RiskHandler
	healthHandler *handler.HealthHandler
	opts          Options
}

// NewRouter creates a new router with all routes configured
func NewRouter(
	riskHandler *handler.RiskHandler,
	healthHandler *handler.HealthHandler,
	opts Options,
) (*Router, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	r := &Router{
		mux:           chi.NewRouter(),
		riskHandler:   riskHandler,
		healthHandler: healthHandler,
		opts:          opts,
	}
	if err := r.setupRoutes(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Router) setupRoutes() error {
	origins := r.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r.mux.Use(middleware.RequestID)
	if r.opts.TrustProxy {
		r.mux.Use(middleware.RealIP)
	}
	r.mux.Use(requestLogger(r.opts.Logger))
	r.mux.Use(middleware.Recoverer)
	r.mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	// Health endpoints
	r.mux.Get("/health", r.healthHandler.Health)
	r.mux.Get("/ready", r.healthHandler.Ready)
	r.mux.Get("/live", r.healthHandler.Live)

	if r.opts.MetricsEnabled {
		path := r.opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.mux.Method(http.MethodGet, path, handler.MetricsHandler())
	}

	assess := http.Handler(http.HandlerFunc(r.riskHandler.Assess))
	if r.opts.RateLimit != "" {
		limit, err := r.rateLimiter()
		if err != nil {
			return err
		}
		assess = limit(assess)
	}

	r.mux.Route("/risk", func(rr chi.Router) {
		// Scoring
		rr.Method(http.MethodPost, "/assess", assess)
		rr.Post("/attempt-outcome", r.riskHandler.RecordOutcome)

		// Ledger read side
		rr.Get("/attempts/{attemptId}", r.riskHandler.GetAttempt)
		rr.Get("/identities/{identityKey}/attempts", r.riskHandler.ListAttempts)
		rr.Get("/identities/{identityKey}/baseline", r.riskHandler.GetBaseline)
	})
	return nil
}

func (r *Router) rateLimiter() (func(http.Handler) http.Handler, error) {
	rate, err := limiter.NewRateFromFormatted(r.opts.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit %q: %w", r.opts.RateLimit, err)
	}

	store := memory.NewStore()
	if r.opts.RateLimitRedis != nil {
		store, err = limitredis.NewStoreWithOptions(r.opts.RateLimitRedis, limiter.StoreOptions{
			Prefix: "risk:ratelimit",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limit store: %w", err)
		}
	}

	// Keyed on RemoteAddr, which RealIP rewrites only when TrustProxy is set
	mw := limitmw.NewMiddleware(limiter.New(store, rate))
	return mw.Handler, nil
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Handler returns the http.Handler
func (r *Router) Handler() http.Handler {
	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
			next.ServeHTTP(ww, req)

			logger.Debug("http request",
				zap.String("request_id", middleware.GetReqID(req.Context())),
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
