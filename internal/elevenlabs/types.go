// ABOUTME: Request and response shapes for the ElevenLabs Conversational AI API
// ABOUTME: BuildAgentConfig omits empty nested objects; Conversation keeps unknown provider fields

package elevenlabs

import "encoding/json"

// AgentConfig is the body of POST /convai/agents/create.
type AgentConfig struct {
	Name               string             `json:"name,omitempty"`
	ConversationConfig ConversationConfig `json:"conversation_config"`
}

// ConversationConfig holds the agent's conversation settings.
type ConversationConfig struct {
	Agent *AgentSettings `json:"agent,omitempty"`
}

// AgentSettings configures the agent's opening line, prompt, and language.
type AgentSettings struct {
	FirstMessage string          `json:"first_message,omitempty"`
	Prompt       *PromptSettings `json:"prompt,omitempty"`
	Language     string          `json:"language,omitempty"`
}

// PromptSettings wraps the system prompt.
type PromptSettings struct {
	Prompt string `json:"prompt"`
}

// BuildAgentConfig assembles a create payload from already-defaulted inputs.
func BuildAgentConfig(name, firstMessage, systemPrompt, language string) AgentConfig {
	cfg := AgentConfig{Name: name}

	if firstMessage == "" && systemPrompt == "" && language == "" {
		return cfg
	}

	settings := &AgentSettings{
		FirstMessage: firstMessage,
		Language:     language,
	}
	if systemPrompt != "" {
		settings.Prompt = &PromptSettings{Prompt: systemPrompt}
	}
	cfg.ConversationConfig.Agent = settings
	return cfg
}

// ConversationQuery selects a page of conversations.
type ConversationQuery struct {
	AgentIDs []string
	Cursor   string
	Limit    int
}

// Conversation summarizes one call. AgentName is filled in by the gateway
// from its own records when it knows the agent. Provider fields without a
// struct field are kept in Extra and written back out unchanged.
type Conversation struct {
	ConversationID    string         `json:"conversation_id"`
	AgentID           string         `json:"agent_id"`
	AgentName         string         `json:"agent_name,omitempty"`
	StartTimeUnixSecs int64          `json:"start_time_unix_secs"`
	CallDurationSecs  int            `json:"call_duration_secs"`
	MessageCount      int            `json:"message_count"`
	TranscriptSummary *string        `json:"transcript_summary,omitempty"`
	CallSuccessful    string         `json:"call_successful"`
	Metadata          map[string]any `json:"metadata,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// conversationFields is Conversation without its JSON methods.
type conversationFields Conversation

// UnmarshalJSON decodes the known fields and keeps the rest in Extra.
func (c *Conversation) UnmarshalJSON(data []byte) error {
	var known conversationFields
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range raw {
		if _, ok := conversationKeys[key]; ok {
			delete(raw, key)
		}
	}
	if len(raw) > 0 {
		known.Extra = raw
	}

	*c = Conversation(known)
	return nil
}

// MarshalJSON writes the known fields plus Extra. Known fields win on a clash.
func (c Conversation) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(conversationFields(c))
	if err != nil || len(c.Extra) == 0 {
		return data, err
	}

	merged := make(map[string]json.RawMessage, len(c.Extra)+len(conversationKeys))
	for key, value := range c.Extra {
		merged[key] = value
	}
	var known map[string]json.RawMessage
	if err := json.Unmarshal(data, &known); err != nil {
		return nil, err
	}
	for key, value := range known {
		merged[key] = value
	}
	return json.Marshal(merged)
}

// conversationKeys lists the JSON keys Conversation decodes itself.
var conversationKeys = map[string]struct{}{
	"conversation_id":      {},
	"agent_id":             {},
	"agent_name":           {},
	"start_time_unix_secs": {},
	"call_duration_secs":   {},
	"message_count":        {},
	"transcript_summary":   {},
	"call_successful":      {},
	"metadata":             {},
}

// ConversationPage is one page of GET /convai/conversations.
type ConversationPage struct {
	Conversations []Conversation `json:"conversations"`
	HasMore       bool           `json:"has_more"`
	NextCursor    *string        `json:"next_cursor,omitempty"`
}

// AgentDetail is the provider's agent description, passed through untouched.
type AgentDetail map[string]any
