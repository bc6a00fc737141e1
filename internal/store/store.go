// ABOUTME: Store interface and data types for the agent ownership store
// ABOUTME: Defines Agent, User records and the Store interface both backends implement

package store

import (
	"context"
	"time"

	"github.com/2389/convai-gateway/internal/apierr"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = apierr.NotFound("not found")

// ErrDuplicateAgent is returned when an agent id or ElevenLabs agent id is already stored
var ErrDuplicateAgent = apierr.Validation("agent already exists")

// ErrDuplicateUser is returned when creating a user that already exists
var ErrDuplicateUser = apierr.Validation("user already exists")

// Agent is a locally owned voice agent. ID is generated by the gateway;
// ElevenLabsAgentID is issued by the provider and is what clients address.
type Agent struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	FirstMessage      string    `json:"first_message"`
	SystemPrompt      string    `json:"system_prompt"`
	Language          string    `json:"language"`
	UserID            string    `json:"user_id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	ElevenLabsAgentID string    `json:"elevenlabs_agent_id"`
}

// User is an identity known to the gateway
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserUpdate holds the fields UpdateUser may change. Nil fields are left as-is.
type UserUpdate struct {
	Email *string
	Name  *string
}

// Store defines the ownership store: agents keyed by internal id plus an
// ordered per-user index of owned agent ids.
//
// Implementations serialize mutations so that every id in a user's index
// resolves to an agent owned by that user whenever no mutation is in flight.
type Store interface {
	// Agents
	GetAgent(ctx context.Context, id string) (*Agent, error)
	GetUserAgents(ctx context.Context, userID string) ([]*Agent, error)
	CreateAgent(ctx context.Context, agent *Agent) error
	DeleteAgent(ctx context.Context, id string) (bool, error)

	// Users
	GetUser(ctx context.Context, id string) (*User, error)
	CreateUser(ctx context.Context, id, email, name string) (*User, error)
	UpdateUser(ctx context.Context, id string, update UserUpdate) (*User, error)

	Close() error
}

// validateAgent checks the fields every stored agent must carry.
func validateAgent(agent *Agent) error {
	switch {
	case agent == nil:
		return apierr.Validation("agent is required")
	case agent.ID == "":
		return apierr.Validation("agent id is required")
	case agent.UserID == "":
		return apierr.Validation("agent user_id is required")
	case agent.ElevenLabsAgentID == "":
		return apierr.Validation("agent elevenlabs_agent_id is required")
	}
	return nil
}
