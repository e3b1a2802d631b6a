package events

import (
	"time"

	"github.com/spec-kit/support-chat/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventConversationCreated EventType = "conversation_created"
	EventConversationStatus  EventType = "conversation_status_changed"
	EventAgentAssigned       EventType = "conversation_agent_assigned"
	EventMessageAdded        EventType = "message_added"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID             string      `json:"id"`
	Type           EventType   `json:"type"`
	ConversationID string      `json:"conversation_id"`
	Actor          Actor       `json:"actor"`
	Timestamp      time.Time   `json:"timestamp"`
	Payload        interface{} `json:"payload"`
}

// ConversationCreatedPayload payload.
type ConversationCreatedPayload struct {
	CustomerID string `json:"customer_id"`
}

// ConversationStatusPayload payload.
type ConversationStatusPayload struct {
	OldStatus domain.ConversationStatus `json:"old_status"`
	NewStatus domain.ConversationStatus `json:"new_status"`
}

// AgentAssignedPayload payload.
type AgentAssignedPayload struct {
	AgentID string `json:"agent_id"`
}

// MessageAddedPayload payload.
type MessageAddedPayload struct {
	MessageID   string           `json:"message_id"`
	SenderID    string           `json:"sender_id"`
	SenderRole  domain.Role      `json:"sender_role"`
	Sentiment   domain.Sentiment `json:"sentiment"`
	BodyPreview string           `json:"body_preview"`
}
