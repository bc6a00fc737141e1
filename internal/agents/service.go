// ABOUTME: Agent service that creates, lists, inspects, and deletes voice agents
// ABOUTME: Calls ElevenLabs first and only records agents the provider has confirmed

package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/convai-gateway/internal/apierr"
	"github.com/2389/convai-gateway/internal/elevenlabs"
	"github.com/2389/convai-gateway/internal/store"
)

// Defaults applied before the provider payload is built.
const (
	DefaultSystemPrompt = "You are a helpful AI assistant."
	DefaultLanguage     = "en"
)

// AgentStore defines what the service needs from storage
type AgentStore interface {
	GetAgent(ctx context.Context, id string) (*store.Agent, error)
	GetUserAgents(ctx context.Context, userID string) ([]*store.Agent, error)
	CreateAgent(ctx context.Context, agent *store.Agent) error
	DeleteAgent(ctx context.Context, id string) (bool, error)
}

// Provider defines what the service needs from ElevenLabs
type Provider interface {
	CreateAgent(ctx context.Context, cfg elevenlabs.AgentConfig) (string, error)
	GetAgent(ctx context.Context, agentID string) (elevenlabs.AgentDetail, error)
	DeleteAgent(ctx context.Context, agentID string) (bool, error)
}

// Service manages the agents a user owns.
type Service struct {
	store    AgentStore
	provider Provider
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// New creates a new agent Service
func New(store AgentStore, provider Provider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		provider: provider,
		logger:   logger.With("component", "agents"),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// CreateRequest is a caller's request to create an agent.
type CreateRequest struct {
	Name         string
	FirstMessage string
	SystemPrompt string
	Language     string
}

// Created identifies a newly created agent by its provider id.
type Created struct {
	AgentID string
	Name    string
}

// Detail pairs a local agent record with the provider's description of it.
type Detail struct {
	Agent    *store.Agent
	Provider elevenlabs.AgentDetail
}

// Create validates the request, creates the agent at ElevenLabs, and records
// ownership locally. The returned id is the provider's, since clients address
// agents by that id.
func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (*Created, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apierr.Validation("name is required")
	}

	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	language := req.Language
	if language == "" {
		language = DefaultLanguage
	}

	cfg := elevenlabs.BuildAgentConfig(name, req.FirstMessage, systemPrompt, language)
	s.logger.Info("creating agent", "user_id", userID, "name", name, "language", language)

	providerID, err := s.provider.CreateAgent(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating agent at elevenlabs: %w", err)
	}

	now := s.now()
	agent := &store.Agent{
		ID:                s.newID(),
		Name:              name,
		FirstMessage:      req.FirstMessage,
		SystemPrompt:      systemPrompt,
		Language:          language,
		UserID:            userID,
		CreatedAt:         now,
		UpdatedAt:         now,
		ElevenLabsAgentID: providerID,
	}
	if err := s.store.CreateAgent(ctx, agent); err != nil {
		s.logger.Error("agent created at elevenlabs but not recorded",
			"elevenlabs_agent_id", providerID, "user_id", userID, "error", err)
		if errors.Is(err, store.ErrDuplicateAgent) {
			return nil, apierr.Protocol("elevenlabs returned an agent_id that is already recorded: " + providerID)
		}
		return nil, fmt.Errorf("recording agent: %w", err)
	}

	s.logger.Info("created agent", "id", agent.ID, "elevenlabs_agent_id", providerID, "user_id", userID)
	return &Created{AgentID: providerID, Name: name}, nil
}

// List returns the user's agents in creation order.
func (s *Service) List(ctx context.Context, userID string) ([]*store.Agent, error) {
	agents, err := s.store.GetUserAgents(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	return agents, nil
}

// Get resolves one of the user's agents and fetches its provider description.
func (s *Service) Get(ctx context.Context, userID, id string) (*Detail, error) {
	agent, err := s.resolve(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	detail, err := s.provider.GetAgent(ctx, agent.ElevenLabsAgentID)
	if err != nil {
		return nil, fmt.Errorf("fetching agent from elevenlabs: %w", err)
	}
	return &Detail{Agent: agent, Provider: detail}, nil
}

// Delete removes one of the user's agents. id may be the provider id or the
// internal id. A provider-side failure is logged and local deletion proceeds,
// which can leave the agent orphaned at ElevenLabs.
func (s *Service) Delete(ctx context.Context, userID, id string) (bool, error) {
	agent, err := s.resolve(ctx, userID, id)
	if err != nil {
		return false, err
	}

	if _, err := s.provider.DeleteAgent(ctx, agent.ElevenLabsAgentID); err != nil {
		s.logger.Warn("failed to delete agent from elevenlabs, removing local record anyway",
			"elevenlabs_agent_id", agent.ElevenLabsAgentID, "error", err)
	} else {
		s.logger.Info("deleted agent from elevenlabs", "elevenlabs_agent_id", agent.ElevenLabsAgentID)
	}

	deleted, err := s.store.DeleteAgent(ctx, agent.ID)
	if err != nil {
		return false, fmt.Errorf("deleting agent: %w", err)
	}
	return deleted, nil
}

// resolve finds the user's agent by provider id first, then by internal id.
func (s *Service) resolve(ctx context.Context, userID, id string) (*store.Agent, error) {
	owned, err := s.store.GetUserAgents(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	for _, a := range owned {
		if a.ElevenLabsAgentID == id && a.UserID == userID {
			return a, nil
		}
	}

	agent, err := s.store.GetAgent(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apierr.NotFound("agent not found")
	}
	if err != nil {
		return nil, fmt.Errorf("looking up agent: %w", err)
	}
	if agent.UserID != userID {
		return nil, apierr.NotFound("agent not found")
	}
	return agent, nil
}
