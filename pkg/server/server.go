package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"overcast-labs/creditguard/pkg/config"
	"overcast-labs/creditguard/pkg/governor"
	"overcast-labs/creditguard/pkg/processing/tokens"
	"overcast-labs/creditguard/pkg/proxy/handlers"
	"overcast-labs/creditguard/pkg/proxy/middleware"
	"overcast-labs/creditguard/pkg/telemetry/logging"
)

// Server is the governed HTTP proxy server.
type Server struct {
	config    *config.Config
	gov       *governor.Governor
	estimator *tokens.Estimator
	logger    *slog.Logger

	httpServer   *http.Server
	shutdownOnce sync.Once

	mu        sync.Mutex
	isRunning bool
}

// New creates a server. The upstream URL must already be validated by
// config loading.
func New(cfg *config.Config, gov *governor.Governor, estimator *tokens.Estimator, logger *slog.Logger) (*Server, error) {
	if _, err := url.Parse(cfg.Server.UpstreamURL); err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}

	return &Server{
		config:    cfg,
		gov:       gov,
		estimator: estimator,
		logger:    logger,
	}, nil
}

// Start starts the HTTP server and blocks until shutdown or listen
// failure. Cancelling ctx triggers graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true

	s.httpServer = &http.Server{
		Addr:           s.config.Server.ListenAddress,
		Handler:        s.routes(),
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		IdleTimeout:    s.config.Server.IdleTimeout,
		MaxHeaderBytes: s.config.Server.MaxHeaderBytes,
	}
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("server listening",
			"address", s.config.Server.ListenAddress,
			"upstream", s.config.Server.UpstreamURL,
			"tier", s.gov.Tier().Name,
		)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown drains connections within the configured timeout. Safe to
// call multiple times.
func (s *Server) Shutdown() error {
	var err error
	s.shutdownOnce.Do(func() {
		s.logger.Info("server shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()

		err = s.httpServer.Shutdown(ctx)

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
	})
	return err
}

// routes builds the handler tree and middleware chain.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	usage := handlers.NewUsageHandler(s.gov)
	mux.HandleFunc("/v1/usage", usage.Summary)
	mux.HandleFunc("/v1/breaker", usage.Breaker)
	mux.HandleFunc("/healthz", handlers.Health)

	if s.config.Telemetry.Metrics.Enabled {
		mux.Handle(s.config.Telemetry.Metrics.Path, promhttp.Handler())
	}

	// Everything else is LLM traffic, admission-checked and proxied.
	proxy := s.upstreamProxy()
	mux.Handle("/", middleware.Admission(s.gov, s.estimator)(proxy))

	var handler http.Handler = mux
	handler = middleware.Logging(s.logger)(handler)
	handler = middleware.Recovery(handler)
	handler = middleware.RequestID(handler)
	return handler
}

// upstreamProxy builds the reverse proxy to the upstream LLM API.
func (s *Server) upstreamProxy() http.Handler {
	upstream, err := url.Parse(s.config.Server.UpstreamURL)
	if err != nil {
		// Unreachable after config validation.
		panic(fmt.Sprintf("invalid upstream URL %q: %v", s.config.Server.UpstreamURL, err))
	}

	proxy := httputil.NewSingleHostReverseProxy(upstream)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logging.FromContext(r.Context()).Error("upstream request failed",
			"upstream", upstream.Host,
			"error", err,
		)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprintf(w, `{"error":"upstream_unavailable","message":"upstream request failed"}`)
	}

	return proxy
}
