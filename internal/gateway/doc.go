// Package gateway wires the convai-gateway HTTP server.
//
// # Overview
//
// Gateway owns the ownership store, the ElevenLabs client, the agent and
// conversation services, the identity resolver and the HTTP server. New builds
// all of them from a config.Config; Run serves until the context is canceled
// or a shutdown signal arrives.
//
// # HTTP API
//
//   - GET /                            - Service banner with version
//   - GET /health                      - Liveness and provider configuration
//   - POST /api/agents/create          - Create an agent for the caller
//   - GET /api/agents/list             - List the caller's agents
//   - GET /api/agents/conversations    - Conversation history for the caller's agents
//   - GET /api/agents/{agent_id}       - Local record plus provider detail
//   - DELETE /api/agents/{agent_id}    - Delete by provider id or internal id
//
// Every /api route runs behind the identity resolver, records first-seen
// users, and is subject to the optional per-user rate limit. CORS applies to
// all routes.
//
// # Errors
//
// Service errors carry an apierr.Kind which selects the status code:
// validation 400, not found 404, provider 502, timeout 504, missing provider
// configuration 503. Anything else is logged and reported as a bare 500.
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return gw.Run(ctx)
package gateway
