// ABOUTME: ConversationService lists ElevenLabs call history for a user's agents
// ABOUTME: Resolves which agents to query and labels results with locally known names

package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/convai-gateway/internal/apierr"
	"github.com/2389/convai-gateway/internal/elevenlabs"
	"github.com/2389/convai-gateway/internal/store"
)

// AgentLister defines what the service needs from storage
type AgentLister interface {
	GetUserAgents(ctx context.Context, userID string) ([]*store.Agent, error)
}

// HistoryProvider defines what the service needs from ElevenLabs
type HistoryProvider interface {
	GetConversations(ctx context.Context, q elevenlabs.ConversationQuery) (*elevenlabs.ConversationPage, error)
}

// Service lists conversation history scoped to a user's agents.
type Service struct {
	store    AgentLister
	provider HistoryProvider
	logger   *slog.Logger
}

// New creates a new ConversationService
func New(store AgentLister, provider HistoryProvider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		provider: provider,
		logger:   logger.With("component", "conversation"),
	}
}

// Query selects conversations. When AgentIDs is empty the user's own agents
// are queried. Limit 0 means elevenlabs.DefaultPageSize.
type Query struct {
	AgentIDs []string
	Cursor   string
	Limit    int
}

// Page is one page of conversations.
type Page struct {
	Conversations []elevenlabs.Conversation `json:"conversations"`
	HasMore       bool                      `json:"has_more"`
	NextCursor    *string                   `json:"next_cursor,omitempty"`
}

// ParseAgentIDs splits a comma-separated id list, dropping blanks.
func ParseAgentIDs(raw string) []string {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// List returns a page of conversations for the user.
//
// Explicit agent ids are passed to ElevenLabs as given; otherwise the user's
// own agents are used, and a user with no agents gets an empty page without
// an upstream call. Conversations for agents the user owns are labeled with
// the local agent name; all other provider data is returned unchanged.
func (s *Service) List(ctx context.Context, userID string, q Query) (*Page, error) {
	limit := q.Limit
	if limit == 0 {
		limit = elevenlabs.DefaultPageSize
	}
	if limit < elevenlabs.MinPageSize || limit > elevenlabs.MaxPageSize {
		return nil, apierr.Validation(fmt.Sprintf("limit must be between %d and %d",
			elevenlabs.MinPageSize, elevenlabs.MaxPageSize))
	}

	owned, err := s.store.GetUserAgents(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}

	names := make(map[string]string, len(owned))
	for _, a := range owned {
		names[a.ElevenLabsAgentID] = a.Name
	}

	agentIDs := q.AgentIDs
	if len(agentIDs) == 0 {
		if len(owned) == 0 {
			return &Page{Conversations: []elevenlabs.Conversation{}}, nil
		}
		agentIDs = make([]string, 0, len(owned))
		for _, a := range owned {
			agentIDs = append(agentIDs, a.ElevenLabsAgentID)
		}
	}

	s.logger.Debug("fetching conversations", "user_id", userID, "agents", len(agentIDs), "limit", limit)

	page, err := s.provider.GetConversations(ctx, elevenlabs.ConversationQuery{
		AgentIDs: agentIDs,
		Cursor:   q.Cursor,
		Limit:    limit,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching conversations: %w", err)
	}

	conversations := make([]elevenlabs.Conversation, len(page.Conversations))
	copy(conversations, page.Conversations)
	for i := range conversations {
		if name, ok := names[conversations[i].AgentID]; ok {
			conversations[i].AgentName = name
		}
	}

	return &Page{
		Conversations: conversations,
		HasMore:       page.HasMore,
		NextCursor:    page.NextCursor,
	}, nil
}
