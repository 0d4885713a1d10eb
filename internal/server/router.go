package server

import (
	"context"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/middleware"
)

// RouterConfig holds the cross-cutting settings applied around the routes.
type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	Metrics        *metrics.Metrics
	Checker        *health.Checker

	// Limiter throttles POST /predict per client when set.
	Limiter *middleware.Limiter
}

// NewRouter builds the full HTTP handler.
//
// Route table:
//
//	GET    /                             → service info
//	GET    /health                       → model health and uptime
//	GET    /health/live                  → liveness probe
//	GET    /health/ready                 → readiness probe
//	POST   /predict                      → classify a text
//	GET    /api/v1/model                 → loaded model metadata
//	GET    /api/v1/stats                 → prediction history summary
//	GET    /api/v1/predictions/recent    → latest stored predictions
//	GET    /api/v1/cache/stats           → prediction cache counters
//	POST   /api/v1/cache/invalidate      → drop cached predictions
//
// Middleware chain (outermost first):
//
//	RequestID → CORS → Timeout → Metrics → mux
//
// Metrics wraps the mux directly so it sees the matched route pattern.
// RateLimit applies to /predict only.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	checker := cfg.Checker
	if checker == nil {
		checker = health.NewChecker()
	}
	checker.Register("model", func(ctx context.Context) health.ComponentHealth {
		st := h.deps.Predictor.Status()
		if !st.Ready {
			return health.ComponentHealth{Status: health.StatusDown, Message: st.State + ": " + st.Reason}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.Root)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	mux.Handle("POST /predict", middleware.RateLimit(cfg.Limiter)(http.HandlerFunc(h.Predict)))

	mux.HandleFunc("GET /api/v1/model", h.Model)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/predictions/recent", h.Recent)

	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)

	mws := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.CORS(middleware.DefaultCORSConfig(cfg.AllowedOrigins...)),
		middleware.Timeout(cfg.RequestTimeout),
	}
	if cfg.Metrics != nil {
		mws = append(mws, middleware.Metrics(cfg.Metrics))
	}
	return middleware.Chain(mux, mws...)
}
