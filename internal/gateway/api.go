// ABOUTME: HTTP API handlers for agent lifecycle and conversation history
// ABOUTME: Translates JSON requests into service calls and service errors into status codes

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/2389/convai-gateway/internal/agents"
	"github.com/2389/convai-gateway/internal/apierr"
	"github.com/2389/convai-gateway/internal/auth"
	"github.com/2389/convai-gateway/internal/conversation"
	"github.com/2389/convai-gateway/internal/elevenlabs"
	"github.com/2389/convai-gateway/internal/store"
)

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 1 << 20

// CreateAgentRequest is the JSON request body for POST /api/agents/create.
type CreateAgentRequest struct {
	Name         string `json:"name"`
	FirstMessage string `json:"firstMessage,omitempty"`
	SystemPrompt string `json:"systemPrompt,omitempty"`
	Language     string `json:"language,omitempty"`
}

// CreateAgentResponse is the JSON response for POST /api/agents/create.
type CreateAgentResponse struct {
	Success bool   `json:"success"`
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
}

// ListAgentsResponse is the JSON response for GET /api/agents/list.
type ListAgentsResponse struct {
	Agents []*store.Agent `json:"agents"`
	Total  int            `json:"total"`
}

// AgentDetailResponse is the JSON response for GET /api/agents/{agent_id}.
type AgentDetailResponse struct {
	Agent      *store.Agent           `json:"agent"`
	ElevenLabs elevenlabs.AgentDetail `json:"elevenlabs"`
}

// DeleteAgentResponse is the JSON response for DELETE /api/agents/{agent_id}.
type DeleteAgentResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// sendJSONError writes a JSON error response.
func sendJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// sendServiceError maps a service error to a status code and writes it.
// Internal errors are logged and reported without detail.
func (g *Gateway) sendServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := apierr.HTTPStatus(err)

	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || status == http.StatusInternalServerError {
		g.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.logger.Warn("request failed", "method", r.Method, "path", r.URL.Path, "kind", apiErr.Kind, "error", err)
	sendJSONError(w, status, apiErr.Error())
}

// parseCreateAgentRequest decodes a CreateAgentRequest from the given reader.
func parseCreateAgentRequest(r io.Reader) (*CreateAgentRequest, error) {
	var req CreateAgentRequest
	if err := json.NewDecoder(io.LimitReader(r, maxRequestBody)).Decode(&req); err != nil {
		return nil, apierr.Validation("invalid JSON body: " + err.Error())
	}
	return &req, nil
}

// handleCreateAgent handles POST /api/agents/create.
func (g *Gateway) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())

	req, err := parseCreateAgentRequest(r.Body)
	if err != nil {
		g.sendServiceError(w, r, err)
		return
	}

	created, err := g.agents.Create(r.Context(), id.UserID, agents.CreateRequest{
		Name:         req.Name,
		FirstMessage: req.FirstMessage,
		SystemPrompt: req.SystemPrompt,
		Language:     req.Language,
	})
	if err != nil {
		g.sendServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CreateAgentResponse{
		Success: true,
		AgentID: created.AgentID,
		Name:    created.Name,
	})
}

// handleListAgents handles GET /api/agents/list.
func (g *Gateway) handleListAgents(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())

	list, err := g.agents.List(r.Context(), id.UserID)
	if err != nil {
		g.sendServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []*store.Agent{}
	}

	writeJSON(w, http.StatusOK, ListAgentsResponse{Agents: list, Total: len(list)})
}

// handleListConversations handles GET /api/agents/conversations.
// Query parameters: cursor, limit (1-100, default 20), agent_ids (comma separated).
func (g *Gateway) handleListConversations(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())
	q := r.URL.Query()

	var limit int
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			sendJSONError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		if n == 0 {
			// explicit 0 is out of range; Query treats 0 as unset
			sendJSONError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	page, err := g.conversations.List(r.Context(), id.UserID, conversation.Query{
		AgentIDs: conversation.ParseAgentIDs(q.Get("agent_ids")),
		Cursor:   q.Get("cursor"),
		Limit:    limit,
	})
	if err != nil {
		g.sendServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// handleGetAgent handles GET /api/agents/{agent_id}.
func (g *Gateway) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())

	detail, err := g.agents.Get(r.Context(), id.UserID, r.PathValue("agent_id"))
	if err != nil {
		g.sendServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AgentDetailResponse{
		Agent:      detail.Agent,
		ElevenLabs: detail.Provider,
	})
}

// handleDeleteAgent handles DELETE /api/agents/{agent_id}.
// The id may be the ElevenLabs agent id or the internal id.
func (g *Gateway) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())

	deleted, err := g.agents.Delete(r.Context(), id.UserID, r.PathValue("agent_id"))
	if err != nil {
		g.sendServiceError(w, r, err)
		return
	}

	msg := "Agent deleted successfully"
	if !deleted {
		msg = "Agent was already removed"
	}
	writeJSON(w, http.StatusOK, DeleteAgentResponse{Success: deleted, Message: msg})
}
