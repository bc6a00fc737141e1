// ABOUTME: Tests for the ElevenLabs client against a fake HTTP server
// ABOUTME: Covers payload shape, headers, error classification, and timeouts

package elevenlabs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/convai-gateway/internal/apierr"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{APIKey: "test-key", BaseURL: srv.URL}, nil)
}

func TestBuildAgentConfig_DefaultsOnly(t *testing.T) {
	cfg := BuildAgentConfig("Helper", "", "You are a helpful AI assistant.", "en")

	body, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "Helper",
		"conversation_config": {
			"agent": {
				"prompt": {"prompt": "You are a helpful AI assistant."},
				"language": "en"
			}
		}
	}`, string(body))
}

func TestBuildAgentConfig_AllEmpty(t *testing.T) {
	body, err := json.Marshal(BuildAgentConfig("Helper", "", "", ""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name": "Helper", "conversation_config": {}}`, string(body))
}

func TestBuildAgentConfig_AllFields(t *testing.T) {
	body, err := json.Marshal(BuildAgentConfig("Helper", "Hello!", "Be brief.", "de"))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "Helper",
		"conversation_config": {
			"agent": {
				"first_message": "Hello!",
				"prompt": {"prompt": "Be brief."},
				"language": "de"
			}
		}
	}`, string(body))
}

func TestCreateAgent_Success(t *testing.T) {
	var gotBody []byte
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/convai/agents/create", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get(APIKeyHeader))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"agent_id": "el-123"}`))
	})

	id, err := client.CreateAgent(context.Background(), BuildAgentConfig("Helper", "", "", "en"))
	require.NoError(t, err)
	assert.Equal(t, "el-123", id)
	assert.JSONEq(t, `{"name":"Helper","conversation_config":{"agent":{"language":"en"}}}`, string(gotBody))
}

func TestCreateAgent_ProviderError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"invalid language"}`))
	})

	_, err := client.CreateAgent(context.Background(), BuildAgentConfig("Helper", "", "", "xx"))
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.KindProvider))

	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Contains(t, apiErr.Body, "invalid language")
}

func TestCreateAgent_MissingAgentID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "ok"}`))
	})

	_, err := client.CreateAgent(context.Background(), BuildAgentConfig("Helper", "", "", ""))
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.KindProtocol))
}

func TestClient_MissingAPIKey(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL}, nil)
	assert.False(t, client.Configured())

	ctx := context.Background()
	_, err := client.CreateAgent(ctx, BuildAgentConfig("Helper", "", "", ""))
	assert.True(t, apierr.Is(err, apierr.KindConfiguration))
	_, err = client.GetConversations(ctx, ConversationQuery{Limit: 20})
	assert.True(t, apierr.Is(err, apierr.KindConfiguration))
	_, err = client.GetAgent(ctx, "el-1")
	assert.True(t, apierr.Is(err, apierr.KindConfiguration))
	_, err = client.DeleteAgent(ctx, "el-1")
	assert.True(t, apierr.Is(err, apierr.KindConfiguration))

	assert.Equal(t, int32(0), hits.Load())
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := New(Config{APIKey: "k", BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)

	_, err := client.CreateAgent(context.Background(), BuildAgentConfig("Helper", "", "", ""))
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.KindTimeout), "got %v", err)
}

func TestClient_ContextDeadlineIsTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := New(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.DeleteAgent(ctx, "el-1")
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.KindTimeout), "got %v", err)
}

func TestGetConversations_QueryParams(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/convai/conversations", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "50", q.Get("limit"))
		assert.Equal(t, "cur-1", q.Get("cursor"))
		assert.Equal(t, "el-1,el-2", q.Get("agent_ids"))
		_, _ = w.Write([]byte(`{
			"conversations": [{
				"conversation_id": "conv-1",
				"agent_id": "el-1",
				"start_time_unix_secs": 1700000000,
				"call_duration_secs": 42,
				"message_count": 6,
				"transcript_summary": "Talked about weather",
				"call_successful": "success",
				"metadata": {"source": "web"}
			}],
			"has_more": true,
			"next_cursor": "cur-2"
		}`))
	})

	page, err := client.GetConversations(context.Background(), ConversationQuery{
		AgentIDs: []string{"el-1", "el-2"},
		Cursor:   "cur-1",
		Limit:    50,
	})
	require.NoError(t, err)
	require.Len(t, page.Conversations, 1)
	conv := page.Conversations[0]
	assert.Equal(t, "conv-1", conv.ConversationID)
	assert.Equal(t, int64(1700000000), conv.StartTimeUnixSecs)
	assert.Equal(t, 42, conv.CallDurationSecs)
	require.NotNil(t, conv.TranscriptSummary)
	assert.Equal(t, "Talked about weather", *conv.TranscriptSummary)
	assert.Equal(t, "web", conv.Metadata["source"])
	assert.True(t, page.HasMore)
	require.NotNil(t, page.NextCursor)
	assert.Equal(t, "cur-2", *page.NextCursor)
}

func TestGetConversations_KeepsUnknownFields(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"conversations": [{
				"conversation_id": "conv-1",
				"agent_id": "el-1",
				"call_successful": "success",
				"status": "done",
				"rating": {"score": 5}
			}],
			"has_more": false
		}`))
	})

	page, err := client.GetConversations(context.Background(), ConversationQuery{})
	require.NoError(t, err)
	require.Len(t, page.Conversations, 1)

	conv := page.Conversations[0]
	assert.Equal(t, "conv-1", conv.ConversationID)
	assert.JSONEq(t, `"done"`, string(conv.Extra["status"]))
	assert.NotContains(t, conv.Extra, "conversation_id")

	conv.AgentName = "Helper"
	out, err := json.Marshal(conv)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "done", decoded["status"])
	assert.Equal(t, map[string]any{"score": float64(5)}, decoded["rating"])
	assert.Equal(t, "Helper", decoded["agent_name"])
	assert.Equal(t, "conv-1", decoded["conversation_id"])
}

func TestConversation_MarshalWithoutExtra(t *testing.T) {
	out, err := json.Marshal(Conversation{ConversationID: "conv-1", AgentID: "el-1"})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "conv-1", decoded["conversation_id"])
	assert.NotContains(t, decoded, "agent_name")
	assert.NotContains(t, decoded, "Extra")
}

func TestGetConversations_OmitsEmptyFilters(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "20", q.Get("limit"))
		assert.False(t, q.Has("cursor"))
		assert.False(t, q.Has("agent_ids"))
		_, _ = w.Write([]byte(`{"has_more": false}`))
	})

	page, err := client.GetConversations(context.Background(), ConversationQuery{})
	require.NoError(t, err)
	assert.NotNil(t, page.Conversations)
	assert.Empty(t, page.Conversations)
	assert.Nil(t, page.NextCursor)
}

func TestGetConversations_LimitOutOfRange(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})

	for _, limit := range []int{-1, 101, 150} {
		_, err := client.GetConversations(context.Background(), ConversationQuery{Limit: limit})
		assert.True(t, apierr.Is(err, apierr.KindValidation), "limit %d", limit)
	}
	assert.Equal(t, int32(0), hits.Load())
}

func TestGetAgent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/convai/agents/el-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"agent_id": "el-1", "name": "Helper"}`))
	})

	detail, err := client.GetAgent(context.Background(), "el-1")
	require.NoError(t, err)
	assert.Equal(t, "Helper", detail["name"])
}

func TestDeleteAgent_StatusHandling(t *testing.T) {
	tests := []struct {
		status  int
		wantErr bool
	}{
		{http.StatusOK, false},
		{http.StatusNoContent, false},
		{http.StatusNotFound, true},
		{http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			w.WriteHeader(tt.status)
		})

		ok, err := client.DeleteAgent(context.Background(), "el-1")
		if tt.wantErr {
			assert.True(t, apierr.Is(err, apierr.KindProvider), "status %d", tt.status)
			assert.False(t, ok)
		} else {
			assert.NoError(t, err, "status %d", tt.status)
			assert.True(t, ok)
		}
	}
}
