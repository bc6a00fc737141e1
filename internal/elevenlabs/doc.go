// Package elevenlabs is the gateway's client for the ElevenLabs
// Conversational AI API.
//
// # Operations
//
//   - CreateAgent: POST /convai/agents/create, returns the provider agent id
//   - GetConversations: GET /convai/conversations with limit, cursor, agent_ids
//   - GetAgent: GET /convai/agents/{id}
//   - DeleteAgent: DELETE /convai/agents/{id} (200 or 204)
//
// # Errors
//
// Every failure is an *apierr.Error:
//
//   - ConfigurationError: no API key, raised before any network I/O
//   - TimeoutError: the call exceeded the configured timeout (30s default)
//   - ProviderError: non-success status, with the response body attached
//   - ProtocolError: success status but a body that breaks the API contract
//
// No call is retried.
package elevenlabs
