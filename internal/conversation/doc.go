// Package conversation lists ElevenLabs conversation history for gateway users.
//
// # Service
//
//	svc := conversation.New(store, elevenlabsClient, logger)
//	page, err := svc.List(ctx, userID, conversation.Query{Limit: 20})
//
// # Agent Resolution
//
// A query either names provider agent ids explicitly (the web client passes
// ids it keeps in user metadata) or falls back to every agent the user owns
// in the store. With no explicit ids and no owned agents the result is an
// empty page and ElevenLabs is not called.
//
// # Name Enrichment
//
// The user's own agents are always used to build a provider id to name map,
// even for explicit queries, since explicit ids may only partly overlap the
// owned set. Matching conversations get agent_name set; nothing else in the
// provider response is changed.
package conversation
