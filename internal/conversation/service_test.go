// ABOUTME: Tests for ConversationService
// ABOUTME: Verifies agent id resolution, empty short-circuit, limits, and name enrichment

package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/convai-gateway/internal/apierr"
	"github.com/2389/convai-gateway/internal/elevenlabs"
	"github.com/2389/convai-gateway/internal/store"
)

// mockHistory implements HistoryProvider for testing
type mockHistory struct {
	page    *elevenlabs.ConversationPage
	err     error
	calls   int
	lastReq elevenlabs.ConversationQuery
}

func (m *mockHistory) GetConversations(ctx context.Context, q elevenlabs.ConversationQuery) (*elevenlabs.ConversationPage, error) {
	m.calls++
	m.lastReq = q
	if m.err != nil {
		return nil, m.err
	}
	return m.page, nil
}

func createTestStore(t *testing.T) *store.JSONStore {
	s, err := store.NewJSONStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func addAgent(t *testing.T, s store.Store, id, userID, providerID, name string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, s.CreateAgent(context.Background(), &store.Agent{
		ID:                id,
		Name:              name,
		UserID:            userID,
		Language:          "en",
		CreatedAt:         now,
		UpdatedAt:         now,
		ElevenLabsAgentID: providerID,
	}))
}

func TestService_List_NoAgentsShortCircuits(t *testing.T) {
	history := &mockHistory{}
	svc := New(createTestStore(t), history, nil)

	page, err := svc.List(context.Background(), "user-1", Query{})
	require.NoError(t, err)
	assert.NotNil(t, page.Conversations)
	assert.Empty(t, page.Conversations)
	assert.False(t, page.HasMore)
	assert.Nil(t, page.NextCursor)
	assert.Equal(t, 0, history.calls)
}

func TestService_List_UsesOwnedAgents(t *testing.T) {
	testStore := createTestStore(t)
	addAgent(t, testStore, "a1", "user-1", "el-1", "Helper")
	addAgent(t, testStore, "a2", "user-1", "el-2", "Concierge")
	addAgent(t, testStore, "a3", "user-2", "el-3", "Someone Else")

	cursor := "next-page"
	history := &mockHistory{page: &elevenlabs.ConversationPage{
		Conversations: []elevenlabs.Conversation{
			{ConversationID: "c1", AgentID: "el-1", CallSuccessful: "success"},
			{ConversationID: "c2", AgentID: "el-2", CallSuccessful: "failure"},
		},
		HasMore:    true,
		NextCursor: &cursor,
	}}
	svc := New(testStore, history, nil)

	page, err := svc.List(context.Background(), "user-1", Query{Cursor: "start", Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, []string{"el-1", "el-2"}, history.lastReq.AgentIDs)
	assert.Equal(t, "start", history.lastReq.Cursor)
	assert.Equal(t, 10, history.lastReq.Limit)

	require.Len(t, page.Conversations, 2)
	assert.Equal(t, "Helper", page.Conversations[0].AgentName)
	assert.Equal(t, "Concierge", page.Conversations[1].AgentName)
	assert.Equal(t, "failure", page.Conversations[1].CallSuccessful)
	assert.True(t, page.HasMore)
	require.NotNil(t, page.NextCursor)
	assert.Equal(t, "next-page", *page.NextCursor)
}

func TestService_List_ExplicitIDsPartialOverlap(t *testing.T) {
	testStore := createTestStore(t)
	addAgent(t, testStore, "a1", "user-1", "el-1", "Helper")

	history := &mockHistory{page: &elevenlabs.ConversationPage{
		Conversations: []elevenlabs.Conversation{
			{ConversationID: "c1", AgentID: "el-1"},
			{ConversationID: "c2", AgentID: "el-foreign"},
		},
	}}
	svc := New(testStore, history, nil)

	page, err := svc.List(context.Background(), "user-1", Query{AgentIDs: []string{"el-1", "el-foreign"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"el-1", "el-foreign"}, history.lastReq.AgentIDs)
	assert.Equal(t, elevenlabs.DefaultPageSize, history.lastReq.Limit)
	assert.Equal(t, "Helper", page.Conversations[0].AgentName)
	assert.Empty(t, page.Conversations[1].AgentName)
}

func TestService_List_ExplicitIDsWithoutOwnedAgents(t *testing.T) {
	history := &mockHistory{page: &elevenlabs.ConversationPage{
		Conversations: []elevenlabs.Conversation{{ConversationID: "c1", AgentID: "el-9"}},
	}}
	svc := New(createTestStore(t), history, nil)

	page, err := svc.List(context.Background(), "user-1", Query{AgentIDs: []string{"el-9"}})
	require.NoError(t, err)
	assert.Equal(t, 1, history.calls)
	assert.Len(t, page.Conversations, 1)
}

func TestService_List_LimitOutOfRange(t *testing.T) {
	testStore := createTestStore(t)
	addAgent(t, testStore, "a1", "user-1", "el-1", "Helper")
	history := &mockHistory{}
	svc := New(testStore, history, nil)

	for _, limit := range []int{-5, 101, 150} {
		_, err := svc.List(context.Background(), "user-1", Query{Limit: limit})
		assert.True(t, apierr.Is(err, apierr.KindValidation), "limit %d", limit)
	}
	assert.Equal(t, 0, history.calls)
}

func TestService_List_ProviderErrorPropagates(t *testing.T) {
	testStore := createTestStore(t)
	addAgent(t, testStore, "a1", "user-1", "el-1", "Helper")
	svc := New(testStore, &mockHistory{err: apierr.Provider(500, "oops")}, nil)

	_, err := svc.List(context.Background(), "user-1", Query{})
	assert.True(t, apierr.Is(err, apierr.KindProvider))
}

func TestService_List_DoesNotMutateProviderPage(t *testing.T) {
	testStore := createTestStore(t)
	addAgent(t, testStore, "a1", "user-1", "el-1", "Helper")
	providerPage := &elevenlabs.ConversationPage{
		Conversations: []elevenlabs.Conversation{{ConversationID: "c1", AgentID: "el-1"}},
	}
	svc := New(testStore, &mockHistory{page: providerPage}, nil)

	_, err := svc.List(context.Background(), "user-1", Query{})
	require.NoError(t, err)
	assert.Empty(t, providerPage.Conversations[0].AgentName)
}

func TestParseAgentIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, ParseAgentIDs(" a, b ,,c ,"))
	assert.Empty(t, ParseAgentIDs(""))
	assert.Empty(t, ParseAgentIDs(" , "))
}
