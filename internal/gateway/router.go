// ABOUTME: Route table and middleware chain for the convai HTTP API
// ABOUTME: Applies CORS globally and identity, rate limits, and user recording to /api routes

package gateway

import (
	"errors"
	"net/http"

	"github.com/go-chi/cors"

	"github.com/2389/convai-gateway/internal/apierr"
	"github.com/2389/convai-gateway/internal/auth"
	"github.com/2389/convai-gateway/internal/store"
)

// routes builds the gateway's HTTP handler.
func (g *Gateway) routes() http.Handler {
	mux := http.NewServeMux()

	// Unauthenticated
	mux.HandleFunc("GET /{$}", g.handleRoot)
	mux.HandleFunc("GET /health", g.handleHealth)

	api := func(h http.HandlerFunc) http.Handler {
		return g.resolver.Middleware(g.limiter.middleware(g.recordUser(h)))
	}

	mux.Handle("POST /api/agents/create", api(g.handleCreateAgent))
	mux.Handle("GET /api/agents/list", api(g.handleListAgents))
	mux.Handle("GET /api/agents/conversations", api(g.handleListConversations))
	mux.Handle("GET /api/agents/{agent_id}", api(g.handleGetAgent))
	mux.Handle("DELETE /api/agents/{agent_id}", api(g.handleDeleteAgent))

	return cors.Handler(cors.Options{
		AllowedOrigins:   g.config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	})(mux)
}

// recordUser creates a user record the first time an identity is seen.
// Failures are logged and do not block the request.
func (g *Gateway) recordUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := auth.FromContext(r.Context())
		if id != nil {
			_, err := g.store.GetUser(r.Context(), id.UserID)
			if apierr.Is(err, apierr.KindNotFound) {
				_, err = g.store.CreateUser(r.Context(), id.UserID, id.Email, id.Name)
				switch {
				case err == nil:
					g.logger.Info("recorded new user", "user_id", id.UserID, "source", id.Source)
				case errors.Is(err, store.ErrDuplicateUser):
					// created by a concurrent request
					err = nil
				}
			}
			if err != nil {
				g.logger.Warn("failed to record user", "user_id", id.UserID, "error", err)
			}
		}
		next.ServeHTTP(w, r)
	})
}
