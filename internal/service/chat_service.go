package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/auth"
	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/events"
	"github.com/spec-kit/support-chat/internal/ingest"
	"github.com/spec-kit/support-chat/internal/repository"
	apperrors "github.com/spec-kit/support-chat/pkg/util"
)

// ChatService implements conversation lifecycle and message operations.
type ChatService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	pipeline      *ingest.Pipeline
	dispatcher    events.Dispatcher
	logger        *zap.Logger
}

// NewChatService wires the chat service.
func NewChatService(conversations repository.ConversationRepository, messages repository.MessageRepository, pipeline *ingest.Pipeline, dispatcher events.Dispatcher, logger *zap.Logger) *ChatService {
	return &ChatService{
		conversations: conversations,
		messages:      messages,
		pipeline:      pipeline,
		dispatcher:    dispatcher,
		logger:        logger,
	}
}

// OpenConversation returns the caller's active conversation, creating a new
// open one when none exists. Staff cannot open conversations on their own
// behalf; a conversation always belongs to a customer.
func (s *ChatService) OpenConversation(ctx context.Context, principal *auth.Principal) (*domain.Conversation, error) {
	if principal.Role != domain.RoleCustomer {
		return nil, apperrors.NewForbidden("only customers can open conversations")
	}

	conv, created, err := s.conversations.GetOrCreateOpen(ctx, principal.User.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if created {
		s.logger.Info("conversation created",
			zap.String("conversation_id", conv.ID),
			zap.String("customer_id", conv.CustomerID))
		s.publish(ctx, events.EventConversationCreated, conv.ID, principal,
			events.ConversationCreatedPayload{CustomerID: conv.CustomerID})
	}
	return conv, nil
}

// ListConversations returns conversations visible to the caller. Customers
// only ever see their own threads; staff see everything, optionally narrowed
// by status.
func (s *ChatService) ListConversations(ctx context.Context, principal *auth.Principal, status *domain.ConversationStatus) ([]domain.Conversation, error) {
	if status != nil && !status.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": string(*status)})
	}

	filter := repository.ConversationFilter{Status: status}
	if principal.Role == domain.RoleCustomer {
		id := principal.User.ID
		filter.CustomerID = &id
	}
	list, err := s.conversations.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}

// GetConversation loads one conversation with the access policy applied.
func (s *ChatService) GetConversation(ctx context.Context, principal *auth.Principal, conversationID string) (*domain.Conversation, error) {
	return s.authorize(ctx, principal, conversationID, auth.ActionViewConversation)
}

// ListMessages returns the full thread in stored order.
func (s *ChatService) ListMessages(ctx context.Context, principal *auth.Principal, conversationID string) ([]domain.Message, error) {
	if _, err := s.authorize(ctx, principal, conversationID, auth.ActionViewConversation); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return msgs, nil
}

// SendMessage runs one message through the ingestion pipeline on behalf of
// the caller.
func (s *ChatService) SendMessage(ctx context.Context, principal *auth.Principal, conversationID, text string, attachment *domain.Attachment) (*domain.Message, error) {
	if _, err := s.authorize(ctx, principal, conversationID, auth.ActionPostMessage); err != nil {
		return nil, err
	}
	return s.pipeline.Submit(ctx, ingest.Input{
		ConversationID: conversationID,
		SenderID:       principal.User.ID,
		SenderRole:     principal.Role,
		Text:           text,
		Attachment:     attachment,
	})
}

// UpdateStatus sets a conversation's status. Staff only; any valid target
// status is accepted from any current status.
func (s *ChatService) UpdateStatus(ctx context.Context, principal *auth.Principal, conversationID string, status domain.ConversationStatus) (*domain.Conversation, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": string(status)})
	}
	before, err := s.authorize(ctx, principal, conversationID, auth.ActionUpdateStatus)
	if err != nil {
		return nil, err
	}

	conv, err := s.conversations.UpdateStatus(ctx, conversationID, status)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publish(ctx, events.EventConversationStatus, conv.ID, principal,
		events.ConversationStatusPayload{OldStatus: before.Status, NewStatus: conv.Status})
	return conv, nil
}

// AssignAgent adds an agent to the conversation's member set. Assigning an
// agent who is already a member is a no-op success.
func (s *ChatService) AssignAgent(ctx context.Context, principal *auth.Principal, conversationID, agentID string) (*domain.Conversation, error) {
	if agentID == "" {
		return nil, apperrors.NewValidationError("agent id is required", nil)
	}
	if _, err := uuid.Parse(agentID); err != nil {
		return nil, apperrors.NewValidationError("invalid agent id", map[string]any{"agent_id": agentID})
	}
	before, err := s.authorize(ctx, principal, conversationID, auth.ActionAssignAgent)
	if err != nil {
		return nil, err
	}
	if before.HasAgent(agentID) {
		return before, nil
	}

	conv, err := s.conversations.AssignAgent(ctx, conversationID, agentID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publish(ctx, events.EventAgentAssigned, conv.ID, principal,
		events.AgentAssignedPayload{AgentID: agentID})
	return conv, nil
}

// AccessibleConversation checks whether the caller may receive live events
// for the conversation; used by the socket handler on join.
func (s *ChatService) AccessibleConversation(ctx context.Context, principal *auth.Principal, conversationID string) (*domain.Conversation, error) {
	return s.authorize(ctx, principal, conversationID, auth.ActionStreamEvents)
}

func (s *ChatService) authorize(ctx context.Context, principal *auth.Principal, conversationID string, action auth.Action) (*domain.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !auth.CanAccess(principal.Role, action, conv, principal.User.ID) {
		return nil, apperrors.NewForbidden("access to this conversation is denied")
	}
	return conv, nil
}

func (s *ChatService) publish(ctx context.Context, eventType events.EventType, conversationID string, principal *auth.Principal, payload any) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:             uuid.NewString(),
		Type:           eventType,
		ConversationID: conversationID,
		Actor:          events.Actor{UserID: principal.User.ID, Role: principal.Role},
		Timestamp:      time.Now(),
		Payload:        payload,
	})
}
