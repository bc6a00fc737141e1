// Package agents implements agent lifecycle for gateway users.
//
// Create calls ElevenLabs before touching the store, so a record is only
// written once the provider has issued an agent id. Delete works the other
// way around: it tries the provider first but always removes the local
// record, logging when the provider call fails.
//
// Agents are resolved for a user by provider id first and then by internal
// id; an agent owned by someone else is reported as not found.
package agents
