package domain

import "time"

// ConversationStatus enumerates lifecycle states for conversations. No transition
// table is enforced; any authorized writer may set any value.
type ConversationStatus string

const (
	ConversationOpen      ConversationStatus = "open"
	ConversationPending   ConversationStatus = "pending"
	ConversationClosed    ConversationStatus = "closed"
	ConversationEscalated ConversationStatus = "escalated"
)

// Valid reports whether the status is one of the known values.
func (s ConversationStatus) Valid() bool {
	switch s {
	case ConversationOpen, ConversationPending, ConversationClosed, ConversationEscalated:
		return true
	}
	return false
}

// Active reports whether the conversation still counts against the
// one-active-conversation-per-customer rule.
func (s ConversationStatus) Active() bool {
	return s == ConversationOpen || s == ConversationPending
}

// Conversation is a thread between one customer and zero or more agents.
type Conversation struct {
	ID         string
	CustomerID string
	AgentIDs   []string
	Status     ConversationStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HasAgent reports whether the given agent is a member of the conversation.
func (c *Conversation) HasAgent(agentID string) bool {
	for _, id := range c.AgentIDs {
		if id == agentID {
			return true
		}
	}
	return false
}
