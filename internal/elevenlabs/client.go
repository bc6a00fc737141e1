// ABOUTME: HTTP client for the ElevenLabs Conversational AI API
// ABOUTME: Creates, fetches, and deletes agents and lists conversation history

package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/2389/convai-gateway/internal/apierr"
)

const (
	// DefaultBaseURL is the public ElevenLabs API root.
	DefaultBaseURL = "https://api.elevenlabs.io/v1"

	// DefaultTimeout bounds every upstream call.
	DefaultTimeout = 30 * time.Second

	// APIKeyHeader carries the API key on every request.
	APIKeyHeader = "xi-api-key"
)

// Page size bounds for conversation listing.
const (
	MinPageSize     = 1
	MaxPageSize     = 100
	DefaultPageSize = 20
)

// Config configures a Client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration

	// HTTPClient overrides the default client; its Timeout is replaced by Timeout.
	HTTPClient *http.Client
}

// Client talks to the ElevenLabs API.
type Client struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
}

// New creates a new ElevenLabs client. A missing API key is not an error here;
// every operation reports it as a ConfigurationError instead.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := &http.Client{}
	if cfg.HTTPClient != nil {
		c := *cfg.HTTPClient
		httpClient = &c
	}
	httpClient.Timeout = timeout

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		timeout: timeout,
		client:  httpClient,
		logger:  logger,
	}
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// CreateAgent creates an agent and returns the provider-issued agent id.
func (c *Client) CreateAgent(ctx context.Context, cfg AgentConfig) (string, error) {
	body, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshaling agent config: %w", err)
	}

	status, respBody, err := c.do(ctx, http.MethodPost, "/convai/agents/create", nil, body)
	if err != nil {
		return "", err
	}
	c.logger.Info("elevenlabs create agent response", "status", status)

	if status != http.StatusOK {
		c.logger.Error("elevenlabs create agent failed", "status", status, "body", string(respBody))
		return "", apierr.Provider(status, string(respBody))
	}

	var created struct {
		AgentID string `json:"agent_id"`
	}
	if err := json.Unmarshal(respBody, &created); err != nil {
		return "", apierr.Wrap(err, apierr.KindProtocol, "decoding create agent response")
	}
	if created.AgentID == "" {
		return "", apierr.Protocol("no agent_id received from ElevenLabs")
	}
	return created.AgentID, nil
}

// GetConversations lists conversations, optionally filtered to agentIDs.
func (c *Client) GetConversations(ctx context.Context, q ConversationQuery) (*ConversationPage, error) {
	limit := q.Limit
	if limit == 0 {
		limit = DefaultPageSize
	}
	if limit < MinPageSize || limit > MaxPageSize {
		return nil, apierr.Validation(fmt.Sprintf("limit must be between %d and %d", MinPageSize, MaxPageSize))
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if q.Cursor != "" {
		params.Set("cursor", q.Cursor)
	}
	if len(q.AgentIDs) > 0 {
		params.Set("agent_ids", strings.Join(q.AgentIDs, ","))
	}

	status, respBody, err := c.do(ctx, http.MethodGet, "/convai/conversations", params, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		c.logger.Error("elevenlabs list conversations failed", "status", status, "body", string(respBody))
		return nil, apierr.Provider(status, string(respBody))
	}

	var page ConversationPage
	if err := json.Unmarshal(respBody, &page); err != nil {
		return nil, apierr.Wrap(err, apierr.KindProtocol, "decoding conversations response")
	}
	if page.Conversations == nil {
		page.Conversations = []Conversation{}
	}
	return &page, nil
}

// GetAgent fetches the provider's full description of an agent.
func (c *Client) GetAgent(ctx context.Context, agentID string) (AgentDetail, error) {
	status, respBody, err := c.do(ctx, http.MethodGet, "/convai/agents/"+url.PathEscape(agentID), nil, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		c.logger.Error("elevenlabs get agent failed", "status", status, "body", string(respBody))
		return nil, apierr.Provider(status, string(respBody))
	}

	var detail AgentDetail
	if err := json.Unmarshal(respBody, &detail); err != nil {
		return nil, apierr.Wrap(err, apierr.KindProtocol, "decoding agent response")
	}
	return detail, nil
}

// DeleteAgent deletes an agent. Both 200 and 204 count as success.
func (c *Client) DeleteAgent(ctx context.Context, agentID string) (bool, error) {
	status, respBody, err := c.do(ctx, http.MethodDelete, "/convai/agents/"+url.PathEscape(agentID), nil, nil)
	if err != nil {
		return false, err
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		c.logger.Error("elevenlabs delete agent failed", "status", status, "body", string(respBody))
		return false, apierr.Provider(status, string(respBody))
	}
	return true, nil
}

// do sends a request and returns the status code and full response body.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body []byte) (int, []byte, error) {
	if c.apiKey == "" {
		return 0, nil, apierr.Configuration("ELEVENLABS_API_KEY not configured")
	}

	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set(APIKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return 0, nil, apierr.Timeout(fmt.Sprintf("elevenlabs request timed out after %s", c.timeout), err)
		}
		return 0, nil, apierr.Wrap(err, apierr.KindProvider, "sending request to elevenlabs")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return 0, nil, apierr.Timeout(fmt.Sprintf("elevenlabs request timed out after %s", c.timeout), err)
		}
		return 0, nil, apierr.Wrap(err, apierr.KindProvider, "reading elevenlabs response")
	}
	return resp.StatusCode, respBody, nil
}

// isTimeout reports whether err came from a client timeout or an expired deadline.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
