package domain

import "time"

// Sentiment is the label assigned once at message creation and never recomputed.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Valid reports whether the sentiment is one of the known labels.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// Attachment is an opaque reference to externally stored binary content.
// The service never inspects the bytes behind it.
type Attachment struct {
	URL        string
	ExternalID string
	FileName   string
	MimeType   string
	SizeBytes  int64
}

// Message captures a single immutable entry in a conversation thread. Messages
// within one conversation are totally ordered by (CreatedAt, Seq).
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	SenderRole     Role
	Text           string
	Sentiment      Sentiment
	Attachment     *Attachment
	ReadBy         []string
	CreatedAt      time.Time
	Seq            int64
}

// HasAttachment reports whether the message carries an attachment reference.
func (m *Message) HasAttachment() bool {
	return m.Attachment != nil
}
