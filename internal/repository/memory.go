package repository

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-chat/internal/domain"
)

var errEmailTaken = errors.New("email already registered")

// MemoryStore is an in-memory conversation store with the same semantics as
// the postgres repositories, including pgx.ErrNoRows for missing rows. It backs
// the service when no POSTGRES_DSN is configured and the test suite. A single
// mutex spans the check-then-create window of GetOrCreateOpen, which is what
// the partial unique index provides on postgres.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	emailIdx map[string]string
	convs    map[string]*domain.Conversation
	msgs     map[string][]domain.Message
	seq      int64
	// Clock supplies persistence timestamps; tests override it.
	Clock func() time.Time
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*domain.User),
		emailIdx: make(map[string]string),
		convs:    make(map[string]*domain.Conversation),
		msgs:     make(map[string][]domain.Message),
		Clock:    time.Now,
	}
}

// Users returns the user repository view of the store.
func (s *MemoryStore) Users() UserRepository { return &memoryUsers{s} }

// Conversations returns the conversation repository view of the store.
func (s *MemoryStore) Conversations() ConversationRepository { return &memoryConversations{s} }

// Messages returns the message repository view of the store.
func (s *MemoryStore) Messages() MessageRepository { return &memoryMessages{s} }

func (s *MemoryStore) now() time.Time {
	return s.Clock().UTC()
}

type memoryUsers struct{ s *MemoryStore }

func (r *memoryUsers) Create(_ context.Context, user *domain.User) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(user.Email))
	if _, exists := s.emailIdx[email]; exists {
		return errEmailTaken
	}
	now := s.now()
	user.ID = uuid.NewString()
	user.Email = email
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := *user
	s.users[user.ID] = &stored
	s.emailIdx[email] = user.ID
	return nil
}

func (r *memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (r *memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.emailIdx[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *s.users[id]
	return &copied, nil
}

func (r *memoryUsers) FindIDsByNameSubstring(_ context.Context, name string) ([]string, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	needle := strings.ToLower(name)
	var ids []string
	for _, user := range s.users {
		if strings.Contains(strings.ToLower(user.Name), needle) {
			ids = append(ids, user.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *memoryUsers) FindByIDs(_ context.Context, ids []string) ([]domain.UserRef, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	refs := make([]domain.UserRef, 0, len(ids))
	for _, id := range ids {
		if user, ok := s.users[id]; ok {
			refs = append(refs, domain.UserRef{ID: user.ID, Name: user.Name, Email: user.Email})
		}
	}
	return refs, nil
}

type memoryConversations struct{ s *MemoryStore }

func (r *memoryConversations) GetOrCreateOpen(_ context.Context, customerID string) (*domain.Conversation, bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, conv := range s.convs {
		if conv.CustomerID == customerID && conv.Status.Active() {
			copied := cloneConversation(conv)
			return &copied, false, nil
		}
	}

	now := s.now()
	conv := &domain.Conversation{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		AgentIDs:   []string{},
		Status:     domain.ConversationOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.convs[conv.ID] = conv
	copied := cloneConversation(conv)
	return &copied, true, nil
}

func (r *memoryConversations) GetByID(_ context.Context, id string) (*domain.Conversation, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := cloneConversation(conv)
	return &copied, nil
}

func (r *memoryConversations) ListWithFilter(_ context.Context, filter ConversationFilter) ([]domain.Conversation, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	idSet := toSet(filter.IDs, len(filter.IDs) > 0)
	customerSet := toSet(filter.CustomerIn, len(filter.CustomerIn) > 0)

	var result []domain.Conversation
	for _, conv := range s.convs {
		if filter.Status != nil && conv.Status != *filter.Status {
			continue
		}
		if filter.CustomerID != nil && conv.CustomerID != *filter.CustomerID {
			continue
		}
		if customerSet != nil {
			if _, ok := customerSet[conv.CustomerID]; !ok {
				continue
			}
		}
		if idSet != nil {
			if _, ok := idSet[conv.ID]; !ok {
				continue
			}
		}
		if len(filter.AgentIn) > 0 && !anyAgentMember(conv, filter.AgentIn) {
			continue
		}
		if filter.CreatedFrom != nil && conv.CreatedAt.Before(*filter.CreatedFrom) {
			continue
		}
		if filter.CreatedTo != nil && conv.CreatedAt.After(*filter.CreatedTo) {
			continue
		}
		result = append(result, cloneConversation(conv))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []domain.Conversation{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (r *memoryConversations) UpdateStatus(_ context.Context, id string, status domain.ConversationStatus) (*domain.Conversation, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	conv.Status = status
	conv.UpdatedAt = s.now()
	copied := cloneConversation(conv)
	return &copied, nil
}

func (r *memoryConversations) AssignAgent(_ context.Context, id, agentID string) (*domain.Conversation, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if !conv.HasAgent(agentID) {
		conv.AgentIDs = append(conv.AgentIDs, agentID)
	}
	conv.UpdatedAt = s.now()
	copied := cloneConversation(conv)
	return &copied, nil
}

func (r *memoryConversations) AgentLoad(_ context.Context) ([]AgentLoadRow, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int64)
	for _, conv := range s.convs {
		for _, agentID := range conv.AgentIDs {
			counts[agentID]++
		}
	}
	rows := make([]AgentLoadRow, 0, len(counts))
	for agentID, count := range counts {
		rows = append(rows, AgentLoadRow{AgentID: agentID, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].AgentID < rows[j].AgentID })
	return rows, nil
}

type memoryMessages struct{ s *MemoryStore }

func (r *memoryMessages) Append(_ context.Context, conversationID string, draft MessageDraft) (*domain.Message, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[conversationID]
	if !ok {
		return nil, pgx.ErrNoRows
	}

	now := s.now()
	s.seq++
	msg := domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       draft.SenderID,
		SenderRole:     draft.SenderRole,
		Text:           draft.Text,
		Sentiment:      draft.Sentiment,
		ReadBy:         []string{draft.SenderID},
		CreatedAt:      now,
		Seq:            s.seq,
	}
	if draft.Attachment != nil {
		attachment := *draft.Attachment
		msg.Attachment = &attachment
	}

	s.msgs[conversationID] = append(s.msgs[conversationID], msg)
	conv.UpdatedAt = now

	copied := cloneMessage(&msg)
	return &copied, nil
}

func (r *memoryMessages) ListByConversation(_ context.Context, conversationID string) ([]domain.Message, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.msgs[conversationID]
	result := make([]domain.Message, 0, len(stored))
	for i := range stored {
		result = append(result, cloneMessage(&stored[i]))
	}
	sort.Slice(result, func(i, j int) bool { return orderingKeyLess(&result[i], &result[j]) })
	return result, nil
}

func (r *memoryMessages) ListThreadStats(_ context.Context) ([]ThreadStat, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []domain.Message
	for _, msgs := range s.msgs {
		all = append(all, msgs...)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].ConversationID != all[j].ConversationID {
			return all[i].ConversationID < all[j].ConversationID
		}
		return orderingKeyLess(&all[i], &all[j])
	})

	stats := make([]ThreadStat, 0, len(all))
	for i := range all {
		stats = append(stats, ThreadStat{
			ConversationID: all[i].ConversationID,
			SenderRole:     all[i].SenderRole,
			Sentiment:      all[i].Sentiment,
			CreatedAt:      all[i].CreatedAt,
		})
	}
	return stats, nil
}

func (r *memoryMessages) ListRecentTexts(_ context.Context, limit int) ([]string, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []domain.Message
	for _, msgs := range s.msgs {
		for i := range msgs {
			if msgs[i].Text != "" {
				all = append(all, msgs[i])
			}
		}
	}
	sort.Slice(all, func(i, j int) bool { return orderingKeyLess(&all[j], &all[i]) })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	texts := make([]string, 0, len(all))
	for i := range all {
		texts = append(texts, all[i].Text)
	}
	return texts, nil
}

func (r *memoryMessages) ConversationIDsByText(_ context.Context, substring string) ([]string, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	needle := strings.ToLower(substring)
	seen := make(map[string]struct{})
	var ids []string
	for convID, msgs := range s.msgs {
		for i := range msgs {
			if strings.Contains(strings.ToLower(msgs[i].Text), needle) {
				if _, ok := seen[convID]; !ok {
					seen[convID] = struct{}{}
					ids = append(ids, convID)
				}
				break
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *memoryMessages) ConversationIDsBySentiment(_ context.Context, sentiment domain.Sentiment) ([]string, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for convID, msgs := range s.msgs {
		for i := range msgs {
			if msgs[i].Sentiment == sentiment {
				ids = append(ids, convID)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func orderingKeyLess(a, b *domain.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Seq < b.Seq
}

func cloneConversation(conv *domain.Conversation) domain.Conversation {
	copied := *conv
	copied.AgentIDs = append([]string(nil), conv.AgentIDs...)
	return copied
}

func cloneMessage(msg *domain.Message) domain.Message {
	copied := *msg
	copied.ReadBy = append([]string(nil), msg.ReadBy...)
	if msg.Attachment != nil {
		attachment := *msg.Attachment
		copied.Attachment = &attachment
	}
	return copied
}

func anyAgentMember(conv *domain.Conversation, agentIDs []string) bool {
	for _, id := range agentIDs {
		if conv.HasAgent(id) {
			return true
		}
	}
	return false
}

func toSet(values []string, enabled bool) map[string]struct{} {
	if !enabled {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
