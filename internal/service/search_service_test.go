package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/auth"
	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/repository"
	apperrors "github.com/spec-kit/support-chat/pkg/util"
)

func staffPrincipal(id string) *auth.Principal {
	return &auth.Principal{
		User: &domain.User{ID: id, Name: "Agent", Role: domain.RoleAgent},
		Role: domain.RoleAgent,
	}
}

func customerPrincipal(id string) *auth.Principal {
	return &auth.Principal{
		User: &domain.User{ID: id, Name: "Customer", Role: domain.RoleCustomer},
		Role: domain.RoleCustomer,
	}
}

func newSearchFixture(t *testing.T) (*SearchService, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	svc := NewSearchService(store.Conversations(), store.Messages(), store.Users(), zap.NewNop())
	return svc, store
}

func seedConversation(t *testing.T, store *repository.MemoryStore, customerID, text string, sentiment domain.Sentiment) *domain.Conversation {
	t.Helper()
	ctx := context.Background()
	conv, _, err := store.Conversations().GetOrCreateOpen(ctx, customerID)
	require.NoError(t, err)
	if text != "" {
		_, err = store.Messages().Append(ctx, conv.ID, repository.MessageDraft{
			SenderID:   customerID,
			SenderRole: domain.RoleCustomer,
			Text:       text,
			Sentiment:  sentiment,
		})
		require.NoError(t, err)
	}
	return conv
}

func TestSearchIntersectsPredicates(t *testing.T) {
	svc, store := newSearchFixture(t)
	ctx := context.Background()

	seedConversation(t, store, "customer-a", "the refund never arrived", domain.SentimentNegative)
	matching := seedConversation(t, store, "customer-b", "refund received, thanks", domain.SentimentPositive)
	seedConversation(t, store, "customer-c", "love the product", domain.SentimentPositive)

	list, err := svc.Search(ctx, staffPrincipal("agent-1"), SearchQuery{
		Text:      "refund",
		Sentiment: "positive",
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, matching.ID, list[0].ID)
}

func TestSearchShortCircuitsOnEmptyPredicate(t *testing.T) {
	svc, store := newSearchFixture(t)
	ctx := context.Background()

	seedConversation(t, store, "customer-a", "hello there", domain.SentimentNeutral)

	list, err := svc.Search(ctx, staffPrincipal("agent-1"), SearchQuery{Text: "nonexistent-token"})
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = svc.Search(ctx, staffPrincipal("agent-1"), SearchQuery{CustomerName: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSearchByCustomerName(t *testing.T) {
	svc, store := newSearchFixture(t)
	ctx := context.Background()

	alice := &domain.User{Name: "Alice Smith", Email: "alice@example.com", Role: domain.RoleCustomer}
	require.NoError(t, store.Users().Create(ctx, alice))

	conv := seedConversation(t, store, alice.ID, "need help", domain.SentimentNeutral)
	seedConversation(t, store, "someone-else", "need help", domain.SentimentNeutral)

	list, err := svc.Search(ctx, staffPrincipal("agent-1"), SearchQuery{CustomerName: "alice"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, conv.ID, list[0].ID)
}

func TestSearchByAgentName(t *testing.T) {
	svc, store := newSearchFixture(t)
	ctx := context.Background()

	dana := &domain.User{Name: "Dana", Email: "dana@example.com", Role: domain.RoleAgent}
	require.NoError(t, store.Users().Create(ctx, dana))

	assigned := seedConversation(t, store, "customer-a", "", domain.SentimentNeutral)
	_, err := store.Conversations().AssignAgent(ctx, assigned.ID, dana.ID)
	require.NoError(t, err)
	seedConversation(t, store, "customer-b", "", domain.SentimentNeutral)

	list, err := svc.Search(ctx, staffPrincipal("agent-1"), SearchQuery{AgentName: "dana"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, assigned.ID, list[0].ID)
}

func TestSearchCustomerScopedToOwnConversations(t *testing.T) {
	svc, store := newSearchFixture(t)
	ctx := context.Background()

	mine := seedConversation(t, store, "customer-a", "refund please", domain.SentimentNeutral)
	seedConversation(t, store, "customer-b", "refund please", domain.SentimentNeutral)

	list, err := svc.Search(ctx, customerPrincipal("customer-a"), SearchQuery{Text: "refund"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)
}

func TestSearchRejectsInvalidInput(t *testing.T) {
	svc, _ := newSearchFixture(t)
	ctx := context.Background()

	_, err := svc.Search(ctx, staffPrincipal("agent-1"), SearchQuery{Status: "archived"})
	assert.Error(t, err)

	_, err = svc.Search(ctx, staffPrincipal("agent-1"), SearchQuery{Sentiment: "meh"})
	assert.Error(t, err)
}

func TestSearchNoPredicatesReturnsAll(t *testing.T) {
	svc, store := newSearchFixture(t)
	ctx := context.Background()

	seedConversation(t, store, "customer-a", "", domain.SentimentNeutral)
	seedConversation(t, store, "customer-b", "", domain.SentimentNeutral)

	list, err := svc.Search(ctx, staffPrincipal("agent-1"), SearchQuery{})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

type failingTextSearch struct {
	repository.MessageRepository
}

func (failingTextSearch) ConversationIDsByText(context.Context, string) ([]string, error) {
	return nil, errors.New("query failed")
}

func TestSearchPredicateFailureIsAggregationFailure(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewSearchService(store.Conversations(), failingTextSearch{store.Messages()}, store.Users(), zap.NewNop())

	_, err := svc.Search(context.Background(), staffPrincipal("agent-1"), SearchQuery{Text: "refund"})
	require.Error(t, err)
	assert.Equal(t, "AGGREGATION_FAILED", apperrors.ToDomainError(err).Code)
}
