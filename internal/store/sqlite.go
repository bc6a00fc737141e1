// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Each mutation runs in a transaction so the agent index never diverges from agents

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/2389/convai-gateway/internal/apierr"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	mu     sync.Mutex // serializes mutations
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A single connection keeps :memory: databases shared and writes ordered
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS agents (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			first_message TEXT NOT NULL DEFAULT '',
			system_prompt TEXT NOT NULL DEFAULT '',
			language TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			elevenlabs_agent_id TEXT NOT NULL UNIQUE
		);

		CREATE TABLE IF NOT EXISTS user_agents (
			user_id TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (user_id, agent_id)
		);

		CREATE INDEX IF NOT EXISTS idx_user_agents_position
			ON user_agents(user_id, position);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

const agentColumns = `a.id, a.name, a.first_message, a.system_prompt, a.language,
	a.user_id, a.created_at, a.updated_at, a.elevenlabs_agent_id`

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (*Agent, error) {
	var agent Agent
	var createdAtStr, updatedAtStr string
	err := row.Scan(
		&agent.ID,
		&agent.Name,
		&agent.FirstMessage,
		&agent.SystemPrompt,
		&agent.Language,
		&agent.UserID,
		&createdAtStr,
		&updatedAtStr,
		&agent.ElevenLabsAgentID,
	)
	if err != nil {
		return nil, err
	}
	if agent.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if agent.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAtStr); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &agent, nil
}

// GetAgent retrieves an agent by its internal id.
func (s *SQLiteStore) GetAgent(ctx context.Context, id string) (*Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents a WHERE a.id = ?`

	agent, err := scanAgent(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apierr.Storage("querying agent", err)
	}
	return agent, nil
}

// GetUserAgents returns the user's agents in creation order.
// The join drops index rows whose agent no longer exists or belongs to another user.
func (s *SQLiteStore) GetUserAgents(ctx context.Context, userID string) ([]*Agent, error) {
	query := `
		SELECT ` + agentColumns + `
		FROM user_agents ua
		JOIN agents a ON a.id = ua.agent_id AND a.user_id = ua.user_id
		WHERE ua.user_id = ?
		ORDER BY ua.position ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, apierr.Storage("querying user agents", err)
	}
	defer rows.Close()

	agents := []*Agent{}
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, apierr.Storage("scanning agent", err)
		}
		agents = append(agents, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, apierr.Storage("iterating agents", err)
	}
	return agents, nil
}

// CreateAgent inserts the agent and its index entry in one transaction.
func (s *SQLiteStore) CreateAgent(ctx context.Context, agent *Agent) error {
	if err := validateAgent(agent); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO agents (id, name, first_message, system_prompt, language,
				user_id, created_at, updated_at, elevenlabs_agent_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			agent.ID,
			agent.Name,
			agent.FirstMessage,
			agent.SystemPrompt,
			agent.Language,
			agent.UserID,
			agent.CreatedAt.UTC().Format(time.RFC3339Nano),
			agent.UpdatedAt.UTC().Format(time.RFC3339Nano),
			agent.ElevenLabsAgentID,
		)
		if err != nil {
			if isConstraintViolation(err) {
				return ErrDuplicateAgent
			}
			return apierr.Storage("inserting agent", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO user_agents (user_id, agent_id, position)
			VALUES (?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM user_agents WHERE user_id = ?))
		`, agent.UserID, agent.ID, agent.UserID)
		if err != nil {
			return apierr.Storage("inserting user agent index", err)
		}

		s.logger.Debug("created agent", "id", agent.ID, "user_id", agent.UserID)
		return nil
	})
}

// DeleteAgent removes an agent and its index entry.
// Returns false if the agent does not exist.
func (s *SQLiteStore) DeleteAgent(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := false
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, id)
		if err != nil {
			return apierr.Storage("deleting agent", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return apierr.Storage("checking rows affected", err)
		}
		if n == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM user_agents WHERE agent_id = ?`, id); err != nil {
			return apierr.Storage("deleting user agent index", err)
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// GetUser retrieves a user by id.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	var user User
	var createdAtStr, updatedAtStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, created_at, updated_at FROM users WHERE id = ?
	`, id).Scan(&user.ID, &user.Email, &user.Name, &createdAtStr, &updatedAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apierr.Storage("querying user", err)
	}
	if user.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if user.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAtStr); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &user, nil
}

// CreateUser stores a new user.
func (s *SQLiteStore) CreateUser(ctx context.Context, id, email, name string) (*User, error) {
	if id == "" {
		return nil, apierr.Validation("user id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
	`, id, email, name, now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		if isConstraintViolation(err) {
			return nil, ErrDuplicateUser
		}
		return nil, apierr.Storage("inserting user", err)
	}

	return &User{ID: id, Email: email, Name: name, CreatedAt: now, UpdatedAt: now}, nil
}

// UpdateUser applies a partial update and bumps UpdatedAt.
func (s *SQLiteStore) UpdateUser(ctx context.Context, id string, update UserUpdate) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var email, name string
		err := tx.QueryRowContext(ctx, `SELECT email, name FROM users WHERE id = ?`, id).Scan(&email, &name)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return apierr.Storage("querying user", err)
		}
		if update.Email != nil {
			email = *update.Email
		}
		if update.Name != nil {
			name = *update.Name
		}
		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET email = ?, name = ?, updated_at = ? WHERE id = ?
		`, email, name, now.Format(time.RFC3339Nano), id); err != nil {
			return apierr.Storage("updating user", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, id)
}

// inTx runs fn in a transaction, committing on success and rolling back on error.
func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apierr.Storage("beginning transaction", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return apierr.Storage("committing transaction", err)
	}
	return nil
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}
