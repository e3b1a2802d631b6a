package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/classify"
	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/events"
	"github.com/spec-kit/support-chat/internal/observability"
	"github.com/spec-kit/support-chat/internal/realtime"
	"github.com/spec-kit/support-chat/internal/repository"
	apperrors "github.com/spec-kit/support-chat/pkg/util"
)

// Publisher is the fan-out side of the pipeline; realtime.Bus implements it.
type Publisher interface {
	Publish(conversationID string, payload []byte, excludeUserID string) int
}

// Input is one inbound message before validation and enrichment.
type Input struct {
	ConversationID string
	SenderID       string
	SenderRole     domain.Role
	Text           string
	Attachment     *domain.Attachment
}

// Pipeline moves one message through validate, classify, persist and publish.
// Failure before persistence aborts with an error; classification failure
// degrades to a neutral label instead. Persist+publish is serialized per
// conversation so the stored order and the broadcast order never diverge;
// the classifier is always called outside that lock.
type Pipeline struct {
	messages   repository.MessageRepository
	classifier *classify.Adapter
	bus        Publisher
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPipeline constructs the pipeline. metrics may be nil.
func NewPipeline(messages repository.MessageRepository, classifier *classify.Adapter, bus Publisher, dispatcher events.Dispatcher, metrics *observability.Metrics, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		messages:   messages,
		classifier: classifier,
		bus:        bus,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
		locks:      make(map[string]*sync.Mutex),
	}
}

// Submit runs one message through the pipeline and returns the persisted record.
func (p *Pipeline) Submit(ctx context.Context, in Input) (*domain.Message, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" && in.Attachment == nil {
		return nil, apperrors.NewValidationError("message text or attachment is required", nil)
	}

	sentiment := p.classifySentiment(ctx, text)

	lock := p.conversationLock(in.ConversationID)
	lock.Lock()
	msg, err := p.messages.Append(ctx, in.ConversationID, repository.MessageDraft{
		SenderID:   in.SenderID,
		SenderRole: in.SenderRole,
		Text:       text,
		Sentiment:  sentiment,
		Attachment: in.Attachment,
	})
	if err != nil {
		lock.Unlock()
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("conversation", map[string]any{"conversation_id": in.ConversationID})
		}
		return nil, apperrors.MapError(err)
	}

	// Best-effort broadcast: no subscribers and slow clients are fine, the
	// persisted row is the durable record.
	if payload, encodeErr := realtime.NewMessageEvent(msg); encodeErr == nil {
		delivered := p.bus.Publish(msg.ConversationID, payload, "")
		if p.metrics != nil {
			p.metrics.RecordEventPublish(realtime.EventNewMessage, delivered)
		}
	} else {
		p.logger.Error("encode new-message event", zap.Error(encodeErr))
	}
	lock.Unlock()

	p.dispatchMessageAdded(ctx, msg)
	return msg, nil
}

// classifySentiment enriches non-empty text; attachment-only messages stay
// neutral without invoking the classifier at all.
func (p *Pipeline) classifySentiment(ctx context.Context, text string) domain.Sentiment {
	if text == "" {
		return domain.SentimentNeutral
	}
	result, err := p.classifier.Classify(ctx, text)
	if err != nil {
		p.logger.Warn("classification unavailable, falling back to neutral", zap.Error(err))
		return domain.SentimentNeutral
	}
	return result.Label
}

func (p *Pipeline) dispatchMessageAdded(ctx context.Context, msg *domain.Message) {
	if p.dispatcher == nil {
		return
	}
	_ = p.dispatcher.Publish(ctx, events.Event{
		ID:             uuid.NewString(),
		Type:           events.EventMessageAdded,
		ConversationID: msg.ConversationID,
		Actor:          events.Actor{UserID: msg.SenderID, Role: msg.SenderRole},
		Timestamp:      time.Now(),
		Payload: events.MessageAddedPayload{
			MessageID:   msg.ID,
			SenderID:    msg.SenderID,
			SenderRole:  msg.SenderRole,
			Sentiment:   msg.Sentiment,
			BodyPreview: preview(msg.Text, 120),
		},
	})
}

// conversationLock returns the mutex serializing persist+publish for one
// conversation. Entries are never reclaimed; the table grows with the set of
// conversations that saw traffic in this process.
func (p *Pipeline) conversationLock(conversationID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.locks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[conversationID] = lock
	}
	return lock
}

func preview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
