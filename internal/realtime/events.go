package realtime

import (
	"encoding/json"
	"time"

	"github.com/spec-kit/support-chat/internal/domain"
)

// Event type markers delivered to clients.
const (
	EventNewMessage = "new-message"
	EventTyping     = "typing"
)

// MessagePayload is the wire shape of a message inside a new-message event.
type MessagePayload struct {
	ID             string             `json:"id"`
	ConversationID string             `json:"conversationId"`
	SenderID       string             `json:"senderId"`
	SenderRole     domain.Role        `json:"senderRole"`
	Text           string             `json:"text"`
	Sentiment      domain.Sentiment   `json:"sentiment"`
	Attachment     *AttachmentPayload `json:"attachment,omitempty"`
	ReadBy         []string           `json:"readBy"`
	CreatedAt      time.Time          `json:"createdAt"`
}

// AttachmentPayload mirrors the stored attachment reference.
type AttachmentPayload struct {
	URL        string `json:"url"`
	ExternalID string `json:"externalId"`
	FileName   string `json:"filename,omitempty"`
	MimeType   string `json:"mimeType,omitempty"`
	SizeBytes  int64  `json:"sizeBytes,omitempty"`
}

type newMessageEvent struct {
	Type           string         `json:"type"`
	ConversationID string         `json:"conversationId"`
	Message        MessagePayload `json:"message"`
}

type typingEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

// NewMessageEvent encodes a persisted message as a new-message event payload.
func NewMessageEvent(msg *domain.Message) ([]byte, error) {
	payload := MessagePayload{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		SenderRole:     msg.SenderRole,
		Text:           msg.Text,
		Sentiment:      msg.Sentiment,
		ReadBy:         msg.ReadBy,
		CreatedAt:      msg.CreatedAt,
	}
	if msg.Attachment != nil {
		payload.Attachment = &AttachmentPayload{
			URL:        msg.Attachment.URL,
			ExternalID: msg.Attachment.ExternalID,
			FileName:   msg.Attachment.FileName,
			MimeType:   msg.Attachment.MimeType,
			SizeBytes:  msg.Attachment.SizeBytes,
		}
	}
	return json.Marshal(newMessageEvent{
		Type:           EventNewMessage,
		ConversationID: msg.ConversationID,
		Message:        payload,
	})
}

// TypingEvent encodes an ephemeral typing signal.
func TypingEvent(conversationID, userID string) ([]byte, error) {
	return json.Marshal(typingEvent{
		Type:           EventTyping,
		ConversationID: conversationID,
		UserID:         userID,
	})
}
