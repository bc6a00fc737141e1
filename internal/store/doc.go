// Package store provides the agent ownership store for the gateway.
//
// # Architecture
//
// The Store interface covers two logical tables plus users:
//
//   - agents: Agent records keyed by the gateway's internal id
//   - user_agents: per-user ordered list of owned agent ids (creation order)
//   - users: identities seen by the gateway
//
// Two implementations are provided:
//
//   - JSONStore: the default. Tables live in memory and every mutation
//     atomically rewrites users.json, agents.json and user_agents.json.
//   - SQLiteStore: opt-in via storage.backend: sqlite. Mutations run in a
//     transaction, so a failed write never leaves agents and index apart.
//
// Both serialize mutations per store instance. Between operations every id in
// a user's index refers to an agent whose UserID is that user.
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: Requested entity does not exist
//   - ErrDuplicateAgent: Agent id or ElevenLabs agent id already stored
//   - ErrDuplicateUser: User already exists
//
// Persistence failures are returned as apierr StorageError values.
//
// # Testing
//
// Use NewJSONStore(t.TempDir()) or NewSQLiteStore(":memory:") for tests.
package store
