// ABOUTME: HTTP middleware that resolves the calling user for API endpoints
// ABOUTME: Tries a JWT bearer token, then the X-User-Id header, then the dev identity

package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

const (
	// UserIDHeader carries the caller's user id when no token verifier is configured.
	UserIDHeader = "X-User-Id"

	// DevUserID is the fallback identity used in development.
	DevUserID = "default-user"
)

// ErrUnauthenticated is returned when no identity can be established.
var ErrUnauthenticated = errors.New("authentication required")

// Resolver establishes the identity of API callers.
//
// With a verifier configured, a valid bearer token is the only accepted
// identity. Without one, the X-User-Id header is trusted as given, and
// requests with neither fall back to DevUserID when allowDev is set.
type Resolver struct {
	verifier TokenVerifier
	allowDev bool
	logger   *slog.Logger
}

// NewResolver creates a Resolver. verifier may be nil.
func NewResolver(verifier TokenVerifier, allowDev bool, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		verifier: verifier,
		allowDev: allowDev,
		logger:   logger.With("component", "auth"),
	}
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// Resolve returns the identity for r, or an error wrapping ErrUnauthenticated.
func (res *Resolver) Resolve(r *http.Request) (*Identity, error) {
	if res.verifier != nil {
		token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
		if errMsg != "" {
			return nil, errors.Join(ErrUnauthenticated, errors.New(errMsg))
		}
		userID, err := res.verifier.Verify(token)
		if err != nil {
			return nil, errors.Join(ErrUnauthenticated, err)
		}
		return identityFor(userID, SourceToken), nil
	}

	if userID := strings.TrimSpace(r.Header.Get(UserIDHeader)); userID != "" {
		return identityFor(userID, SourceHeader), nil
	}

	if res.allowDev {
		return identityFor(DevUserID, SourceDev), nil
	}

	return nil, errors.Join(ErrUnauthenticated, errors.New("missing "+UserIDHeader+" header"))
}

// Middleware resolves the caller and adds the Identity to the request context.
// Unresolvable requests get 401.
func (res *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := res.Resolve(r)
		if err != nil {
			res.logger.Debug("rejecting unauthenticated request", "path", r.URL.Path, "error", err)
			writeUnauthorized(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	msg := ErrUnauthenticated.Error()
	switch {
	case errors.Is(err, ErrExpiredToken):
		msg = ErrExpiredToken.Error()
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrMissingClaim):
		msg = ErrInvalidToken.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
