package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/classify"
	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/ingest"
	"github.com/spec-kit/support-chat/internal/realtime"
	"github.com/spec-kit/support-chat/internal/repository"
	apperrors "github.com/spec-kit/support-chat/pkg/util"
)

func newChatFixture(t *testing.T) (*ChatService, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	adapter := classify.NewAdapter(classify.Heuristic, time.Second)
	pipeline := ingest.NewPipeline(store.Messages(), adapter, realtime.NewBus(), nil, nil, zap.NewNop())
	svc := NewChatService(store.Conversations(), store.Messages(), pipeline, nil, zap.NewNop())
	return svc, store
}

func TestOpenConversationCustomerOnly(t *testing.T) {
	svc, _ := newChatFixture(t)
	ctx := context.Background()

	conv, err := svc.OpenConversation(ctx, customerPrincipal("customer-1"))
	require.NoError(t, err)
	assert.Equal(t, "customer-1", conv.CustomerID)
	assert.Equal(t, domain.ConversationOpen, conv.Status)

	again, err := svc.OpenConversation(ctx, customerPrincipal("customer-1"))
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)

	_, err = svc.OpenConversation(ctx, staffPrincipal("agent-1"))
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", apperrors.ToDomainError(err).Code)
}

func TestListConversationsScoping(t *testing.T) {
	svc, _ := newChatFixture(t)
	ctx := context.Background()

	_, err := svc.OpenConversation(ctx, customerPrincipal("customer-1"))
	require.NoError(t, err)
	_, err = svc.OpenConversation(ctx, customerPrincipal("customer-2"))
	require.NoError(t, err)

	mine, err := svc.ListConversations(ctx, customerPrincipal("customer-1"), nil)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "customer-1", mine[0].CustomerID)

	all, err := svc.ListConversations(ctx, staffPrincipal("agent-1"), nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGetConversationDeniedForStranger(t *testing.T) {
	svc, _ := newChatFixture(t)
	ctx := context.Background()

	conv, err := svc.OpenConversation(ctx, customerPrincipal("customer-1"))
	require.NoError(t, err)

	_, err = svc.GetConversation(ctx, customerPrincipal("customer-2"), conv.ID)
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", apperrors.ToDomainError(err).Code)

	got, err := svc.GetConversation(ctx, staffPrincipal("agent-1"), conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)
}

func TestSendMessageThroughPipeline(t *testing.T) {
	svc, store := newChatFixture(t)
	ctx := context.Background()

	conv, err := svc.OpenConversation(ctx, customerPrincipal("customer-1"))
	require.NoError(t, err)

	msg, err := svc.SendMessage(ctx, customerPrincipal("customer-1"), conv.ID, "this is awful", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.SentimentNegative, msg.Sentiment)

	msgs, err := svc.ListMessages(ctx, customerPrincipal("customer-1"), conv.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	_, err = svc.SendMessage(ctx, customerPrincipal("customer-2"), conv.ID, "hi", nil)
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", apperrors.ToDomainError(err).Code)

	stored, err := store.Messages().ListByConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestUpdateStatusStaffOnly(t *testing.T) {
	svc, _ := newChatFixture(t)
	ctx := context.Background()

	conv, err := svc.OpenConversation(ctx, customerPrincipal("customer-1"))
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, customerPrincipal("customer-1"), conv.ID, domain.ConversationClosed)
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", apperrors.ToDomainError(err).Code)

	updated, err := svc.UpdateStatus(ctx, staffPrincipal("agent-1"), conv.ID, domain.ConversationEscalated)
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationEscalated, updated.Status)

	_, err = svc.UpdateStatus(ctx, staffPrincipal("agent-1"), conv.ID, domain.ConversationStatus("archived"))
	require.Error(t, err)
	assert.Equal(t, "INVALID_INPUT", apperrors.ToDomainError(err).Code)
}

func TestAssignAgentIdempotent(t *testing.T) {
	svc, _ := newChatFixture(t)
	ctx := context.Background()

	conv, err := svc.OpenConversation(ctx, customerPrincipal("customer-1"))
	require.NoError(t, err)

	agentID := uuid.NewString()
	assigned, err := svc.AssignAgent(ctx, staffPrincipal("agent-1"), conv.ID, agentID)
	require.NoError(t, err)
	assert.Equal(t, []string{agentID}, assigned.AgentIDs)

	again, err := svc.AssignAgent(ctx, staffPrincipal("agent-1"), conv.ID, agentID)
	require.NoError(t, err)
	assert.Equal(t, []string{agentID}, again.AgentIDs)

	_, err = svc.AssignAgent(ctx, staffPrincipal("agent-1"), conv.ID, "not-a-uuid")
	require.Error(t, err)
	assert.Equal(t, "INVALID_INPUT", apperrors.ToDomainError(err).Code)
}

func TestUnknownConversationIsNotFound(t *testing.T) {
	svc, _ := newChatFixture(t)
	ctx := context.Background()

	_, err := svc.GetConversation(ctx, staffPrincipal("agent-1"), "missing")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", apperrors.ToDomainError(err).Code)
}
