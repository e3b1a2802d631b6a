package repository

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-chat/internal/domain"
)

// MessageDraft carries the caller-provided fields of a message; id, seq and
// created_at are assigned at persistence time.
type MessageDraft struct {
	SenderID   string
	SenderRole domain.Role
	Text       string
	Sentiment  domain.Sentiment
	Attachment *domain.Attachment
}

// ThreadStat is the projection the analytics engine reads: one row per message,
// globally ordered by (conversation, created_at, seq).
type ThreadStat struct {
	ConversationID string
	SenderRole     domain.Role
	Sentiment      domain.Sentiment
	CreatedAt      time.Time
}

// MessageRepository manages the message side of the conversation store plus the
// read-only projections consumed by analytics and search.
type MessageRepository interface {
	// Append persists a message and atomically bumps the conversation's
	// updated_at. Returns pgx.ErrNoRows when the conversation does not exist.
	Append(ctx context.Context, conversationID string, draft MessageDraft) (*domain.Message, error)
	ListByConversation(ctx context.Context, conversationID string) ([]domain.Message, error)
	ListThreadStats(ctx context.Context) ([]ThreadStat, error)
	ListRecentTexts(ctx context.Context, limit int) ([]string, error)
	ConversationIDsByText(ctx context.Context, substring string) ([]string, error)
	ConversationIDsBySentiment(ctx context.Context, sentiment domain.Sentiment) ([]string, error)
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository builds repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) Append(ctx context.Context, conversationID string, draft MessageDraft) (*domain.Message, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	cmd, err := tx.Exec(ctx, `UPDATE conversations SET updated_at=NOW() WHERE id=$1`, conversationID)
	if err != nil {
		return nil, err
	}
	if cmd.RowsAffected() == 0 {
		return nil, pgx.ErrNoRows
	}

	var attachmentJSON []byte
	if draft.Attachment != nil {
		attachmentJSON, err = json.Marshal(attachmentRecord{
			URL:        draft.Attachment.URL,
			ExternalID: draft.Attachment.ExternalID,
			FileName:   draft.Attachment.FileName,
			MimeType:   draft.Attachment.MimeType,
			SizeBytes:  draft.Attachment.SizeBytes,
		})
		if err != nil {
			return nil, err
		}
	}

	msg := &domain.Message{
		ConversationID: conversationID,
		SenderID:       draft.SenderID,
		SenderRole:     draft.SenderRole,
		Text:           draft.Text,
		Sentiment:      draft.Sentiment,
		Attachment:     draft.Attachment,
		ReadBy:         []string{draft.SenderID},
	}

	const insert = `
        INSERT INTO messages (conversation_id, sender_id, sender_role, text, sentiment, attachment, read_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, seq, created_at`
	if err := tx.QueryRow(ctx, insert,
		msg.ConversationID,
		msg.SenderID,
		msg.SenderRole,
		msg.Text,
		msg.Sentiment,
		attachmentJSON,
		msg.ReadBy,
	).Scan(&msg.ID, &msg.Seq, &msg.CreatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *messageRepository) ListByConversation(ctx context.Context, conversationID string) ([]domain.Message, error) {
	const query = `
        SELECT id, seq, conversation_id, sender_id, sender_role, text, sentiment, attachment, read_by, created_at
        FROM messages WHERE conversation_id=$1
        ORDER BY created_at ASC, seq ASC`
	rows, err := r.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Message
	for rows.Next() {
		var (
			msg            domain.Message
			attachmentJSON []byte
		)
		if err := rows.Scan(
			&msg.ID,
			&msg.Seq,
			&msg.ConversationID,
			&msg.SenderID,
			&msg.SenderRole,
			&msg.Text,
			&msg.Sentiment,
			&attachmentJSON,
			&msg.ReadBy,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(attachmentJSON) > 0 {
			var record attachmentRecord
			if err := json.Unmarshal(attachmentJSON, &record); err != nil {
				return nil, err
			}
			msg.Attachment = &domain.Attachment{
				URL:        record.URL,
				ExternalID: record.ExternalID,
				FileName:   record.FileName,
				MimeType:   record.MimeType,
				SizeBytes:  record.SizeBytes,
			}
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}

func (r *messageRepository) ListThreadStats(ctx context.Context) ([]ThreadStat, error) {
	const query = `
        SELECT conversation_id, sender_role, sentiment, created_at
        FROM messages
        ORDER BY conversation_id ASC, created_at ASC, seq ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ThreadStat
	for rows.Next() {
		var stat ThreadStat
		if err := rows.Scan(&stat.ConversationID, &stat.SenderRole, &stat.Sentiment, &stat.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, stat)
	}
	return result, rows.Err()
}

func (r *messageRepository) ListRecentTexts(ctx context.Context, limit int) ([]string, error) {
	const query = `
        SELECT text FROM messages WHERE text <> ''
        ORDER BY created_at DESC, seq DESC
        LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		texts = append(texts, text)
	}
	return texts, rows.Err()
}

func (r *messageRepository) ConversationIDsByText(ctx context.Context, substring string) ([]string, error) {
	const query = `
        SELECT DISTINCT conversation_id FROM messages
        WHERE text ILIKE '%' || $1 || '%'`
	return r.scanIDs(ctx, query, escapeLike(substring))
}

// escapeLike neutralizes LIKE metacharacters so the argument matches as a
// plain substring, the same way the in-memory store does.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *messageRepository) ConversationIDsBySentiment(ctx context.Context, sentiment domain.Sentiment) ([]string, error) {
	const query = `SELECT DISTINCT conversation_id FROM messages WHERE sentiment=$1`
	return r.scanIDs(ctx, query, sentiment)
}

func (r *messageRepository) scanIDs(ctx context.Context, query string, arg any) ([]string, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// attachmentRecord is the JSONB layout of a persisted attachment reference.
type attachmentRecord struct {
	URL        string `json:"url"`
	ExternalID string `json:"externalId"`
	FileName   string `json:"filename,omitempty"`
	MimeType   string `json:"mimeType,omitempty"`
	SizeBytes  int64  `json:"sizeBytes,omitempty"`
}
