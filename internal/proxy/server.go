package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/dmitrijs2005/truecam/internal/logging"
	"github.com/dmitrijs2005/truecam/internal/proxy/config"
)

// Route paths served by the intermediary.
const (
	AuthRoute    = "/api/qtsp-auth"
	ProxyRoute   = "/api/qtsp-proxy"
	HealthRoute  = "/healthz"
	MetricsRoute = "/metrics"
)

// TokenFetcher performs one client-credentials exchange.
// *clientcredentials.Config satisfies it.
type TokenFetcher interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

// Server serves the intermediary routes.
type Server struct {
	cfg         *config.Config
	logger      logging.Logger
	httpClient  *http.Client
	credentials TokenFetcher
	now         func() time.Time
}

// NewServer builds a Server from cfg. When cfg lacks credentials the auth
// route answers 500 until the process is restarted with them.
func NewServer(cfg *config.Config, logger logging.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		logger:     logger.With("module", "proxy"),
		httpClient: &http.Client{Timeout: cfg.UpstreamTimeout},
		now:        time.Now,
	}

	if cfg.HasCredentials() {
		s.credentials = &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.LoginURL,
			Scopes:       []string{cfg.Scope},
			AuthStyle:    oauth2.AuthStyleInParams,
		}
	}

	return s
}

// Handler returns the routed http.Handler with logging, metrics and panic
// recovery installed.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(metricsMiddleware)

	r.Post(AuthRoute, s.handleAuth)
	r.HandleFunc(ProxyRoute, s.handleProxy)
	r.Get(HealthRoute, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, MetricsRoute, promhttp.Handler())

	return r
}

// Run listens on the configured address until ctx is cancelled, then
// drains in-flight requests for at most ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "http server started", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", srv.Addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info(ctx, "http server stopped")
	return nil
}

type errorBody struct {
	Error    string `json:"error"`
	Details  string `json:"details,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
