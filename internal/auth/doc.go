// Package auth resolves the identity of convai-gateway API callers.
//
// # Resolution Order
//
//   - JWT Tokens: when auth.jwt_secret is configured, every request must carry
//     "Authorization: Bearer <token>" signed HS256 with that secret. The "sub"
//     claim is the user id. No other identity source is consulted.
//
//   - X-User-Id header: without a secret, the header value is taken as the
//     user id. The caller is trusted; this mode is only suitable behind
//     something that sets the header itself.
//
//   - Development identity: with auth.allow_dev_identity set, requests with no
//     header resolve to "default-user".
//
// Anything else is rejected with 401.
//
// # Identity
//
// Handlers read the caller with FromContext after Resolver.Middleware has run.
// Email and Name are derived from the user id ("<id>@example.com" and "<id>").
//
// # Token Management
//
//	verifier, err := auth.NewJWTVerifier(secret)
//	token, err := verifier.Generate(userID, 24*time.Hour)
//
// Secrets shorter than MinSecretLength are refused.
package auth
