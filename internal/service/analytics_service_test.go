package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/repository"
)

func newAnalyticsFixture(t *testing.T) (*AnalyticsService, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	svc := NewAnalyticsService(store.Conversations(), store.Messages(), store.Users(), nil, 0, 500, zap.NewNop())
	return svc, store
}

func appendAt(t *testing.T, store *repository.MemoryStore, convID string, at time.Time, role domain.Role, text string, sentiment domain.Sentiment) {
	t.Helper()
	store.Clock = func() time.Time { return at }
	_, err := store.Messages().Append(context.Background(), convID, repository.MessageDraft{
		SenderID:   "sender",
		SenderRole: role,
		Text:       text,
		Sentiment:  sentiment,
	})
	require.NoError(t, err)
}

func TestSummaryEmptyStore(t *testing.T) {
	svc, _ := newAnalyticsFixture(t)

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)

	assert.Empty(t, summary.ChatsPerAgent)
	assert.Nil(t, summary.AverageFirstResponseTimeMinutes)
	assert.Empty(t, summary.SentimentByDay)
	assert.Empty(t, summary.TopKeywords)
}

func TestSummaryAverageFirstResponse(t *testing.T) {
	svc, store := newAnalyticsFixture(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	conv, _, err := store.Conversations().GetOrCreateOpen(ctx, "customer-1")
	require.NoError(t, err)

	appendAt(t, store, conv.ID, base, domain.RoleCustomer, "where is my order", domain.SentimentNeutral)
	appendAt(t, store, conv.ID, base.Add(5*time.Minute), domain.RoleAgent, "checking now", domain.SentimentNeutral)
	appendAt(t, store, conv.ID, base.Add(30*time.Minute), domain.RoleAgent, "resolved", domain.SentimentNeutral)

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	require.NotNil(t, summary.AverageFirstResponseTimeMinutes)
	assert.InDelta(t, 5.0, *summary.AverageFirstResponseTimeMinutes, 0.001)
}

func TestSummaryAverageSkipsUnansweredThreads(t *testing.T) {
	svc, store := newAnalyticsFixture(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	answered, _, err := store.Conversations().GetOrCreateOpen(ctx, "customer-1")
	require.NoError(t, err)
	unanswered, _, err := store.Conversations().GetOrCreateOpen(ctx, "customer-2")
	require.NoError(t, err)

	appendAt(t, store, answered.ID, base, domain.RoleCustomer, "help", domain.SentimentNeutral)
	appendAt(t, store, answered.ID, base.Add(10*time.Minute), domain.RoleAgent, "on it", domain.SentimentNeutral)
	appendAt(t, store, unanswered.ID, base, domain.RoleCustomer, "hello?", domain.SentimentNeutral)

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	require.NotNil(t, summary.AverageFirstResponseTimeMinutes)
	assert.InDelta(t, 10.0, *summary.AverageFirstResponseTimeMinutes, 0.001)
}

func TestSummaryAverageNilWithoutReplies(t *testing.T) {
	svc, store := newAnalyticsFixture(t)
	ctx := context.Background()

	conv, _, err := store.Conversations().GetOrCreateOpen(ctx, "customer-1")
	require.NoError(t, err)
	appendAt(t, store, conv.ID, time.Now().UTC(), domain.RoleCustomer, "anyone there", domain.SentimentNeutral)

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Nil(t, summary.AverageFirstResponseTimeMinutes)
}

func TestSummarySentimentByDay(t *testing.T) {
	svc, store := newAnalyticsFixture(t)
	ctx := context.Background()

	conv, _, err := store.Conversations().GetOrCreateOpen(ctx, "customer-1")
	require.NoError(t, err)

	day1 := time.Date(2025, 3, 1, 23, 30, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 2, 0, 30, 0, 0, time.UTC)
	appendAt(t, store, conv.ID, day1, domain.RoleCustomer, "this is awful", domain.SentimentNegative)
	appendAt(t, store, conv.ID, day1, domain.RoleAgent, "sorry about that", domain.SentimentNeutral)
	appendAt(t, store, conv.ID, day2, domain.RoleCustomer, "thanks, great help", domain.SentimentPositive)

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	require.Len(t, summary.SentimentByDay, 2)

	assert.Equal(t, "2025-03-01", summary.SentimentByDay[0].Date)
	assert.Equal(t, int64(1), summary.SentimentByDay[0].Negative)
	assert.Equal(t, int64(1), summary.SentimentByDay[0].Neutral)
	assert.Equal(t, int64(0), summary.SentimentByDay[0].Positive)

	assert.Equal(t, "2025-03-02", summary.SentimentByDay[1].Date)
	assert.Equal(t, int64(1), summary.SentimentByDay[1].Positive)
}

func TestSummaryTopKeywords(t *testing.T) {
	svc, store := newAnalyticsFixture(t)
	ctx := context.Background()

	conv, _, err := store.Conversations().GetOrCreateOpen(ctx, "customer-1")
	require.NoError(t, err)

	appendAt(t, store, conv.ID, time.Now().UTC(), domain.RoleCustomer,
		"the refund for my delivery, please process the refund", domain.SentimentNeutral)
	appendAt(t, store, conv.ID, time.Now().UTC(), domain.RoleCustomer,
		"refund and delivery update", domain.SentimentNeutral)

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, summary.TopKeywords)

	assert.Equal(t, "refund", summary.TopKeywords[0].Keyword)
	assert.Equal(t, int64(3), summary.TopKeywords[0].Count)

	for _, kw := range summary.TopKeywords {
		assert.Greater(t, len(kw.Keyword), 3)
		assert.NotContains(t, []string{"the", "and", "for", "please"}, kw.Keyword)
	}
}

func TestSummaryChatsPerAgent(t *testing.T) {
	svc, store := newAnalyticsFixture(t)
	ctx := context.Background()

	agent := &domain.User{Name: "Dana", Email: "dana@example.com", Role: domain.RoleAgent}
	require.NoError(t, store.Users().Create(ctx, agent))

	convA, _, err := store.Conversations().GetOrCreateOpen(ctx, "customer-a")
	require.NoError(t, err)
	convB, _, err := store.Conversations().GetOrCreateOpen(ctx, "customer-b")
	require.NoError(t, err)

	_, err = store.Conversations().AssignAgent(ctx, convA.ID, agent.ID)
	require.NoError(t, err)
	_, err = store.Conversations().AssignAgent(ctx, convB.ID, agent.ID)
	require.NoError(t, err)
	_, err = store.Conversations().AssignAgent(ctx, convB.ID, "ghost-agent")
	require.NoError(t, err)

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	require.Len(t, summary.ChatsPerAgent, 2)

	byID := map[string]AgentChatCount{}
	for _, row := range summary.ChatsPerAgent {
		byID[row.AgentID] = row
	}
	assert.Equal(t, int64(2), byID[agent.ID].Count)
	assert.Equal(t, "Dana", byID[agent.ID].Name)
	assert.Equal(t, "dana@example.com", byID[agent.ID].Email)
	assert.Equal(t, "Unknown", byID["ghost-agent"].Name)
	assert.Equal(t, "", byID["ghost-agent"].Email)
	assert.Equal(t, int64(1), byID["ghost-agent"].Count)
}
