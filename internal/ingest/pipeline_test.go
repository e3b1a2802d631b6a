package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/classify"
	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/repository"
	apperrors "github.com/spec-kit/support-chat/pkg/util"
)

type recordingBus struct {
	conversations []string
	payloads      [][]byte
}

func (b *recordingBus) Publish(conversationID string, payload []byte, _ string) int {
	b.conversations = append(b.conversations, conversationID)
	b.payloads = append(b.payloads, payload)
	return 1
}

func newTestPipeline(t *testing.T, fn classify.Func) (*Pipeline, *repository.MemoryStore, *recordingBus, string) {
	t.Helper()

	store := repository.NewMemoryStore()
	conv, created, err := store.Conversations().GetOrCreateOpen(context.Background(), "customer-1")
	require.NoError(t, err)
	require.True(t, created)

	bus := &recordingBus{}
	adapter := classify.NewAdapter(fn, time.Second)
	pipeline := NewPipeline(store.Messages(), adapter, bus, nil, nil, zap.NewNop())
	return pipeline, store, bus, conv.ID
}

func TestSubmitPersistsAndPublishes(t *testing.T) {
	pipeline, store, bus, convID := newTestPipeline(t, classify.Heuristic)

	msg, err := pipeline.Submit(context.Background(), Input{
		ConversationID: convID,
		SenderID:       "customer-1",
		SenderRole:     domain.RoleCustomer,
		Text:           "  this is terrible  ",
	})
	require.NoError(t, err)

	assert.Equal(t, "this is terrible", msg.Text)
	assert.Equal(t, domain.SentimentNegative, msg.Sentiment)
	assert.NotEmpty(t, msg.ID)

	stored, err := store.Messages().ListByConversation(context.Background(), convID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, msg.ID, stored[0].ID)

	require.Len(t, bus.payloads, 1)
	assert.Equal(t, convID, bus.conversations[0])
	assert.Contains(t, string(bus.payloads[0]), "new-message")
	assert.Contains(t, string(bus.payloads[0]), msg.ID)
}

func TestSubmitRejectsEmptyMessage(t *testing.T) {
	pipeline, _, bus, convID := newTestPipeline(t, classify.Heuristic)

	_, err := pipeline.Submit(context.Background(), Input{
		ConversationID: convID,
		SenderID:       "customer-1",
		SenderRole:     domain.RoleCustomer,
		Text:           "   ",
	})
	require.Error(t, err)
	assert.Equal(t, "INVALID_INPUT", apperrors.ToDomainError(err).Code)
	assert.Empty(t, bus.payloads)
}

func TestSubmitAttachmentOnlyIsNeutral(t *testing.T) {
	calls := 0
	pipeline, _, _, convID := newTestPipeline(t, func(ctx context.Context, text string) (classify.Result, error) {
		calls++
		return classify.Heuristic(ctx, text)
	})

	msg, err := pipeline.Submit(context.Background(), Input{
		ConversationID: convID,
		SenderID:       "customer-1",
		SenderRole:     domain.RoleCustomer,
		Attachment: &domain.Attachment{
			URL:        "/uploads/abc.png",
			ExternalID: "abc.png",
			MimeType:   "image/png",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SentimentNeutral, msg.Sentiment)
	assert.Equal(t, 0, calls)
	require.NotNil(t, msg.Attachment)
	assert.Equal(t, "abc.png", msg.Attachment.ExternalID)
}

func TestSubmitClassifierFailureFallsBackToNeutral(t *testing.T) {
	pipeline, _, bus, convID := newTestPipeline(t, func(context.Context, string) (classify.Result, error) {
		return classify.Result{}, errors.New("model offline")
	})

	msg, err := pipeline.Submit(context.Background(), Input{
		ConversationID: convID,
		SenderID:       "customer-1",
		SenderRole:     domain.RoleCustomer,
		Text:           "this is terrible",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SentimentNeutral, msg.Sentiment)
	assert.Len(t, bus.payloads, 1)
}

func TestSubmitUnknownConversation(t *testing.T) {
	pipeline, _, bus, _ := newTestPipeline(t, classify.Heuristic)

	_, err := pipeline.Submit(context.Background(), Input{
		ConversationID: "missing",
		SenderID:       "customer-1",
		SenderRole:     domain.RoleCustomer,
		Text:           "hello",
	})
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", apperrors.ToDomainError(err).Code)
	assert.Empty(t, bus.payloads)
}

func TestSubmitKeepsOrderPerConversation(t *testing.T) {
	pipeline, store, _, convID := newTestPipeline(t, classify.Heuristic)

	for i := 0; i < 5; i++ {
		_, err := pipeline.Submit(context.Background(), Input{
			ConversationID: convID,
			SenderID:       "customer-1",
			SenderRole:     domain.RoleCustomer,
			Text:           "message",
		})
		require.NoError(t, err)
	}

	msgs, err := store.Messages().ListByConversation(context.Background(), convID)
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	for i := 1; i < len(msgs); i++ {
		assert.Greater(t, msgs[i].Seq, msgs[i-1].Seq)
	}
}
