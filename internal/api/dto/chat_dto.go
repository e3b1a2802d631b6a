package dto

import (
	"time"

	"github.com/spec-kit/support-chat/internal/domain"
)

// SendMessageRequest payload for posting a message over HTTP.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// UpdateStatusRequest payload for changing a conversation's status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// AssignAgentRequest payload for adding an agent to a conversation.
type AssignAgentRequest struct {
	AgentID string `json:"agentId"`
}

// SentimentRequest payload for the standalone sentiment endpoint.
type SentimentRequest struct {
	Text string `json:"text"`
}

// SmartRepliesRequest payload for reply suggestions.
type SmartRepliesRequest struct {
	Text string `json:"text"`
}

// AttachmentResponse mirrors the stored attachment reference.
type AttachmentResponse struct {
	URL        string `json:"url"`
	ExternalID string `json:"externalId"`
	FileName   string `json:"filename,omitempty"`
	MimeType   string `json:"mimeType,omitempty"`
	SizeBytes  int64  `json:"sizeBytes,omitempty"`
}

// MessageResponse is the wire shape of a persisted message.
type MessageResponse struct {
	ID             string              `json:"id"`
	ConversationID string              `json:"conversationId"`
	SenderID       string              `json:"senderId"`
	SenderRole     string              `json:"senderRole"`
	Text           string              `json:"text"`
	Sentiment      string              `json:"sentiment"`
	Attachment     *AttachmentResponse `json:"attachment,omitempty"`
	ReadBy         []string            `json:"readBy"`
	CreatedAt      time.Time           `json:"createdAt"`
}

// ConversationResponse is the wire shape of a conversation.
type ConversationResponse struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customerId"`
	AgentIDs   []string  `json:"agentIds"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// NewMessageResponse maps a domain message.
func NewMessageResponse(msg *domain.Message) MessageResponse {
	resp := MessageResponse{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		SenderRole:     string(msg.SenderRole),
		Text:           msg.Text,
		Sentiment:      string(msg.Sentiment),
		ReadBy:         msg.ReadBy,
		CreatedAt:      msg.CreatedAt,
	}
	if resp.ReadBy == nil {
		resp.ReadBy = []string{}
	}
	if msg.Attachment != nil {
		resp.Attachment = &AttachmentResponse{
			URL:        msg.Attachment.URL,
			ExternalID: msg.Attachment.ExternalID,
			FileName:   msg.Attachment.FileName,
			MimeType:   msg.Attachment.MimeType,
			SizeBytes:  msg.Attachment.SizeBytes,
		}
	}
	return resp
}

// NewMessageResponses maps a slice preserving order.
func NewMessageResponses(msgs []domain.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for i := range msgs {
		out = append(out, NewMessageResponse(&msgs[i]))
	}
	return out
}

// NewConversationResponse maps a domain conversation.
func NewConversationResponse(conv *domain.Conversation) ConversationResponse {
	agents := conv.AgentIDs
	if agents == nil {
		agents = []string{}
	}
	return ConversationResponse{
		ID:         conv.ID,
		CustomerID: conv.CustomerID,
		AgentIDs:   agents,
		Status:     string(conv.Status),
		CreatedAt:  conv.CreatedAt,
		UpdatedAt:  conv.UpdatedAt,
	}
}

// NewConversationResponses maps a slice preserving order.
func NewConversationResponses(convs []domain.Conversation) []ConversationResponse {
	out := make([]ConversationResponse, 0, len(convs))
	for i := range convs {
		out = append(out, NewConversationResponse(&convs[i]))
	}
	return out
}
