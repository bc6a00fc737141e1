// ABOUTME: Gateway orchestrator that wires the store, ElevenLabs client, and services
// ABOUTME: Owns the HTTP server lifecycle and the unauthenticated root and health endpoints

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/2389/convai-gateway/internal/agents"
	"github.com/2389/convai-gateway/internal/auth"
	"github.com/2389/convai-gateway/internal/config"
	"github.com/2389/convai-gateway/internal/conversation"
	"github.com/2389/convai-gateway/internal/elevenlabs"
	"github.com/2389/convai-gateway/internal/store"
)

// Version is reported by the root endpoint.
const Version = "1.0.0"

// Gateway serves the convai HTTP API.
type Gateway struct {
	config        *config.Config
	store         store.Store
	provider      *elevenlabs.Client
	agents        *agents.Service
	conversations *conversation.Service
	resolver      *auth.Resolver
	limiter       *rateLimiter
	httpServer    *http.Server
	logger        *slog.Logger
}

// initStore creates and returns a store based on config.
func initStore(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	var s store.Store
	var err error
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		s, err = store.NewSQLiteStore(cfg.Storage.SQLitePath)
	default:
		s, err = store.NewJSONStore(cfg.Storage.DataDir)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	logger.Info("store opened", "backend", cfg.Storage.Backend)
	return s, nil
}

// initResolver creates the identity resolver, with a JWT verifier when a secret is configured.
func initResolver(cfg *config.Config, logger *slog.Logger) (*auth.Resolver, error) {
	var verifier auth.TokenVerifier
	if cfg.Auth.JWTSecret != "" {
		v, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			return nil, fmt.Errorf("creating JWT verifier: %w", err)
		}
		verifier = v
		logger.Info("HTTP auth enabled (JWT bearer tokens)")
	} else {
		logger.Warn("HTTP auth disabled - no jwt_secret configured, trusting " + auth.UserIDHeader + " header")
	}

	allowDev := cfg.DevIdentityAllowed()
	if allowDev && verifier == nil {
		logger.Warn("development identity fallback enabled", "user_id", auth.DevUserID, "environment", cfg.Environment)
	}
	return auth.NewResolver(verifier, allowDev, logger), nil
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := initStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	resolver, err := initResolver(cfg, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	provider := elevenlabs.New(elevenlabs.Config{
		APIKey:  cfg.ElevenLabs.APIKey,
		BaseURL: cfg.ElevenLabs.BaseURL,
		Timeout: cfg.ElevenLabs.Timeout,
	}, logger)
	if !provider.Configured() {
		logger.Warn("ELEVENLABS_API_KEY not configured - agent and conversation operations will fail")
	}

	gw := &Gateway{
		config:        cfg,
		store:         s,
		provider:      provider,
		agents:        agents.New(s, provider, logger),
		conversations: conversation.New(s, provider, logger),
		resolver:      resolver,
		limiter:       newRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
		logger:        logger.With("component", "gateway"),
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Handler returns the root HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown (context canceled), or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	g.logger.Info("starting gateway", "http_addr", g.config.Server.HTTPAddr, "environment", g.config.Environment)

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	serverErr := g.waitForShutdownSignal(ctx, errCh)
	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server and closes the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	errs = appendCloseError(errs, "store close", g.store.Close())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// RootResponse is the JSON response for GET /.
type RootResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
	Health  string `json:"health"`
}

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status               string `json:"status"`
	Environment          string `json:"environment"`
	ElevenLabsConfigured bool   `json:"elevenlabs_configured"`
}

// handleRoot returns the liveness banner.
func (g *Gateway) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, RootResponse{
		Message: "ConvAI Gateway API",
		Version: Version,
		Health:  "/health",
	})
}

// handleHealth reports process health and whether the provider is configured.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:               "healthy",
		Environment:          g.config.Environment,
		ElevenLabsConfigured: g.provider.Configured(),
	})
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
