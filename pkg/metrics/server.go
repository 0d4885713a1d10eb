package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes a gatherer on its own port so scrapes never compete with
// the prediction API for its rate limit or timeout budget.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger *slog.Logger
}

// HandlerFor serves g in the Prometheus exposition format. Encoding errors
// are logged rather than failing the scrape.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{
		ErrorLog:      slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// Listen binds addr before returning so a port clash fails startup instead
// of surfacing later in a goroutine. A nil gatherer means the default
// registry.
func Listen(addr string, g prometheus.Gatherer) (*Server, error) {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", HandlerFor(g))
	return &Server{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
		},
		ln:     ln,
		logger: slog.Default().With("component", "metrics"),
	}, nil
}

// StartServer listens on port and serves the default registry in the
// background.
func StartServer(port int) (*Server, error) {
	s, err := Listen(fmt.Sprintf(":%d", port), nil)
	if err != nil {
		return nil, err
	}
	go s.Serve()
	return s, nil
}

func (s *Server) Addr() string { return s.ln.Addr().String() }

// Serve blocks until Shutdown.
func (s *Server) Serve() {
	s.logger.Info("metrics server listening", "addr", s.Addr())
	if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("metrics server stopped", "error", err)
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
