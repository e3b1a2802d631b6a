package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/auth"
	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/repository"
	apperrors "github.com/spec-kit/support-chat/pkg/util"
)

// SearchQuery is a conjunction of optional predicates. Empty members are
// ignored; supplying none returns every conversation visible to the caller.
type SearchQuery struct {
	Text         string
	Sentiment    string
	Status       string
	CustomerName string
	AgentName    string
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

// SearchService resolves cross-entity conversation searches.
type SearchService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	users         repository.UserRepository
	logger        *zap.Logger
}

// NewSearchService wires the search service.
func NewSearchService(conversations repository.ConversationRepository, messages repository.MessageRepository, users repository.UserRepository, logger *zap.Logger) *SearchService {
	return &SearchService{conversations: conversations, messages: messages, users: users, logger: logger}
}

// Search evaluates each supplied predicate independently and intersects the
// results. Any predicate that matches nothing short-circuits to an empty
// result without touching the remaining stores. Customers are always scoped
// to their own conversations regardless of the query.
func (s *SearchService) Search(ctx context.Context, principal *auth.Principal, q SearchQuery) ([]domain.Conversation, error) {
	filter := repository.ConversationFilter{
		CreatedFrom: q.From,
		CreatedTo:   q.To,
		Limit:       q.Limit,
		Offset:      q.Offset,
	}

	if status := strings.TrimSpace(q.Status); status != "" {
		st := domain.ConversationStatus(status)
		if !st.Valid() {
			return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": status})
		}
		filter.Status = &st
	}
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return nil, apperrors.NewValidationError("date range is inverted", nil)
	}

	if principal.Role == domain.RoleCustomer {
		id := principal.User.ID
		filter.CustomerID = &id
	}

	var idSet map[string]struct{}
	haveIDSet := false
	intersect := func(ids []string) bool {
		if !haveIDSet {
			idSet = make(map[string]struct{}, len(ids))
			for _, id := range ids {
				idSet[id] = struct{}{}
			}
			haveIDSet = true
		} else {
			next := make(map[string]struct{})
			for _, id := range ids {
				if _, ok := idSet[id]; ok {
					next[id] = struct{}{}
				}
			}
			idSet = next
		}
		return len(idSet) > 0
	}

	if text := strings.TrimSpace(q.Text); text != "" {
		ids, err := s.messages.ConversationIDsByText(ctx, text)
		if err != nil {
			return nil, apperrors.NewAggregationFailure(err)
		}
		if !intersect(ids) {
			return []domain.Conversation{}, nil
		}
	}

	if sentiment := strings.TrimSpace(q.Sentiment); sentiment != "" {
		label := domain.Sentiment(sentiment)
		if !label.Valid() {
			return nil, apperrors.NewValidationError("invalid sentiment", map[string]any{"sentiment": sentiment})
		}
		ids, err := s.messages.ConversationIDsBySentiment(ctx, label)
		if err != nil {
			return nil, apperrors.NewAggregationFailure(err)
		}
		if !intersect(ids) {
			return []domain.Conversation{}, nil
		}
	}

	if name := strings.TrimSpace(q.CustomerName); name != "" {
		ids, err := s.users.FindIDsByNameSubstring(ctx, name)
		if err != nil {
			return nil, apperrors.NewAggregationFailure(err)
		}
		if len(ids) == 0 {
			return []domain.Conversation{}, nil
		}
		filter.CustomerIn = ids
	}

	if name := strings.TrimSpace(q.AgentName); name != "" {
		ids, err := s.users.FindIDsByNameSubstring(ctx, name)
		if err != nil {
			return nil, apperrors.NewAggregationFailure(err)
		}
		if len(ids) == 0 {
			return []domain.Conversation{}, nil
		}
		filter.AgentIn = ids
	}

	if haveIDSet {
		filter.IDs = make([]string, 0, len(idSet))
		for id := range idSet {
			filter.IDs = append(filter.IDs, id)
		}
	}

	list, err := s.conversations.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.NewAggregationFailure(err)
	}
	return list, nil
}
