// ABOUTME: JSON file implementation of the Store interface
// ABOUTME: Keeps all tables in memory and atomically rewrites every file on each mutation

package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/natefinch/atomic"

	"github.com/2389/convai-gateway/internal/apierr"
)

const (
	usersFile      = "users.json"
	agentsFile     = "agents.json"
	userAgentsFile = "user_agents.json"
)

// JSONStore implements the Store interface over three JSON files in a data
// directory. Reads are served from memory; every mutation rewrites all files.
//
// If a rewrite fails the in-memory state is kept and the error is returned,
// so memory and disk may differ until the next successful write.
type JSONStore struct {
	mu     sync.RWMutex
	dir    string
	logger *slog.Logger

	users      map[string]*User
	agents     map[string]*Agent
	userAgents map[string][]string
}

// NewJSONStore opens (or initializes) a JSON store in dir.
// The directory is created if needed; missing files start as empty tables.
func NewJSONStore(dir string) (*JSONStore, error) {
	logger := slog.Default().With("component", "store")

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	s := &JSONStore{
		dir:        dir,
		logger:     logger,
		users:      make(map[string]*User),
		agents:     make(map[string]*Agent),
		userAgents: make(map[string][]string),
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	logger.Info("JSON store initialized", "dir", dir, "agents", len(s.agents), "users", len(s.users))
	return s, nil
}

// load reads each table from disk if its file exists.
func (s *JSONStore) load() error {
	tables := []struct {
		name string
		dst  any
	}{
		{usersFile, &s.users},
		{agentsFile, &s.agents},
		{userAgentsFile, &s.userAgents},
	}

	for _, tbl := range tables {
		data, err := os.ReadFile(filepath.Join(s.dir, tbl.name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", tbl.name, err)
		}
		if err := json.Unmarshal(data, tbl.dst); err != nil {
			return fmt.Errorf("parsing %s: %w", tbl.name, err)
		}
	}

	// A file containing "null" leaves the map nil
	if s.users == nil {
		s.users = make(map[string]*User)
	}
	if s.agents == nil {
		s.agents = make(map[string]*Agent)
	}
	if s.userAgents == nil {
		s.userAgents = make(map[string][]string)
	}

	s.dropForeignIndexEntries()
	return nil
}

// dropForeignIndexEntries removes index entries pointing at another user's
// agent. Dangling entries are kept and skipped on read.
func (s *JSONStore) dropForeignIndexEntries() {
	for userID, ids := range s.userAgents {
		kept := slices.DeleteFunc(slices.Clone(ids), func(id string) bool {
			agent, ok := s.agents[id]
			if ok && agent.UserID != userID {
				s.logger.Warn("dropping cross-owner agent index entry", "user_id", userID, "agent_id", id, "owner", agent.UserID)
				return true
			}
			return false
		})
		s.userAgents[userID] = kept
	}
}

// saveLocked rewrites all three files. Caller must hold s.mu for writing.
func (s *JSONStore) saveLocked() error {
	tables := []struct {
		name string
		src  any
	}{
		{usersFile, s.users},
		{agentsFile, s.agents},
		{userAgentsFile, s.userAgents},
	}

	for _, tbl := range tables {
		data, err := json.MarshalIndent(tbl.src, "", "  ")
		if err != nil {
			return apierr.Storage("encoding "+tbl.name, err)
		}
		if err := atomic.WriteFile(filepath.Join(s.dir, tbl.name), bytes.NewReader(data)); err != nil {
			s.logger.Error("failed to persist store", "file", tbl.name, "error", err)
			return apierr.Storage("writing "+tbl.name, err)
		}
	}
	return nil
}

// Close is a no-op; every mutation is already on disk.
func (s *JSONStore) Close() error {
	return nil
}

// GetAgent retrieves an agent by its internal id.
func (s *JSONStore) GetAgent(ctx context.Context, id string) (*Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agent, ok := s.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	a := *agent
	return &a, nil
}

// GetUserAgents returns the user's agents in creation order.
// Index entries whose agent record is missing or owned by another user are skipped.
func (s *JSONStore) GetUserAgents(ctx context.Context, userID string) ([]*Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.userAgents[userID]
	result := make([]*Agent, 0, len(ids))
	for _, id := range ids {
		agent, ok := s.agents[id]
		if !ok {
			s.logger.Debug("skipping dangling agent index entry", "user_id", userID, "agent_id", id)
			continue
		}
		if agent.UserID != userID {
			s.logger.Debug("skipping cross-owner agent index entry", "user_id", userID, "agent_id", id, "owner", agent.UserID)
			continue
		}
		a := *agent
		result = append(result, &a)
	}
	return result, nil
}

// CreateAgent stores a new agent and appends it to its owner's index.
func (s *JSONStore) CreateAgent(ctx context.Context, agent *Agent) error {
	if err := validateAgent(agent); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.agents[agent.ID]; exists {
		return ErrDuplicateAgent
	}
	for _, existing := range s.agents {
		if existing.ElevenLabsAgentID == agent.ElevenLabsAgentID {
			return ErrDuplicateAgent
		}
	}

	a := *agent
	s.agents[a.ID] = &a
	s.userAgents[a.UserID] = append(s.userAgents[a.UserID], a.ID)

	if err := s.saveLocked(); err != nil {
		return err
	}

	s.logger.Debug("created agent", "id", a.ID, "user_id", a.UserID, "elevenlabs_agent_id", a.ElevenLabsAgentID)
	return nil
}

// DeleteAgent removes an agent and its index entry.
// Returns false without writing if the agent does not exist.
func (s *JSONStore) DeleteAgent(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, ok := s.agents[id]
	if !ok {
		return false, nil
	}

	delete(s.agents, id)
	if ids, ok := s.userAgents[agent.UserID]; ok {
		s.userAgents[agent.UserID] = slices.DeleteFunc(slices.Clone(ids), func(aid string) bool {
			return aid == id
		})
	}

	if err := s.saveLocked(); err != nil {
		return false, err
	}

	s.logger.Debug("deleted agent", "id", id, "user_id", agent.UserID)
	return true, nil
}

// GetUser retrieves a user by id.
func (s *JSONStore) GetUser(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u := *user
	return &u, nil
}

// CreateUser stores a new user with an empty agent index.
// An index that already exists for the id is preserved.
func (s *JSONStore) CreateUser(ctx context.Context, id, email, name string) (*User, error) {
	if id == "" {
		return nil, apierr.Validation("user id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[id]; exists {
		return nil, ErrDuplicateUser
	}

	now := time.Now().UTC()
	user := &User{
		ID:        id,
		Email:     email,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.users[id] = user
	if _, ok := s.userAgents[id]; !ok {
		s.userAgents[id] = []string{}
	}

	if err := s.saveLocked(); err != nil {
		return nil, err
	}

	u := *user
	return &u, nil
}

// UpdateUser applies a partial update and bumps UpdatedAt.
func (s *JSONStore) UpdateUser(ctx context.Context, id string, update UserUpdate) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}

	if update.Email != nil {
		user.Email = *update.Email
	}
	if update.Name != nil {
		user.Name = *update.Name
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.saveLocked(); err != nil {
		return nil, err
	}

	u := *user
	return &u, nil
}
