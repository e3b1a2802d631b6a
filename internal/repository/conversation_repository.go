package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-chat/internal/domain"
)

// ConversationFilter is a conjunction of predicates over conversations.
// Nil/empty members are skipped; IDs narrows to an explicit id set.
type ConversationFilter struct {
	Status      *domain.ConversationStatus
	CustomerID  *string
	CustomerIn  []string
	AgentIn     []string
	IDs         []string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// AgentLoadRow counts conversations per agent member (unwind semantics: a
// conversation with N agents contributes once to each).
type AgentLoadRow struct {
	AgentID string
	Count   int64
}

// ConversationRepository encapsulates conversation persistence.
type ConversationRepository interface {
	// GetOrCreateOpen returns the customer's active conversation or creates a
	// fresh open one. Safe under concurrent calls for the same customer; the
	// second return value reports whether a conversation was created.
	GetOrCreateOpen(ctx context.Context, customerID string) (*domain.Conversation, bool, error)
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)
	ListWithFilter(ctx context.Context, filter ConversationFilter) ([]domain.Conversation, error)
	UpdateStatus(ctx context.Context, id string, status domain.ConversationStatus) (*domain.Conversation, error)
	AssignAgent(ctx context.Context, id, agentID string) (*domain.Conversation, error)
	AgentLoad(ctx context.Context) ([]AgentLoadRow, error)
}

type conversationRepository struct {
	pool *pgxpool.Pool
}

// NewConversationRepository instantiates repository.
func NewConversationRepository(pool *pgxpool.Pool) ConversationRepository {
	return &conversationRepository{pool: pool}
}

const conversationColumns = `id, customer_id, agent_ids, status, created_at, updated_at`

func (r *conversationRepository) GetOrCreateOpen(ctx context.Context, customerID string) (*domain.Conversation, bool, error) {
	selectQuery := fmt.Sprintf(`
        SELECT %s FROM conversations
        WHERE customer_id=$1 AND status IN ('open','pending')
        LIMIT 1`, conversationColumns)
	insertQuery := fmt.Sprintf(`
        INSERT INTO conversations (customer_id, status)
        VALUES ($1, 'open')
        ON CONFLICT (customer_id) WHERE status IN ('open','pending') DO NOTHING
        RETURNING %s`, conversationColumns)

	// Select first, then insert; a concurrent creator loses the insert race on
	// the partial unique index and re-selects the winner's row.
	for {
		conv, err := scanConversationRow(r.pool.QueryRow(ctx, selectQuery, customerID))
		if err == nil {
			return conv, false, nil
		}
		if err != pgx.ErrNoRows {
			return nil, false, err
		}

		conv, err = scanConversationRow(r.pool.QueryRow(ctx, insertQuery, customerID))
		if err == nil {
			return conv, true, nil
		}
		if err != pgx.ErrNoRows {
			return nil, false, err
		}
	}
}

func (r *conversationRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	query := fmt.Sprintf(`SELECT %s FROM conversations WHERE id=$1`, conversationColumns)
	return scanConversationRow(r.pool.QueryRow(ctx, query, id))
}

func (r *conversationRepository) ListWithFilter(ctx context.Context, filter ConversationFilter) ([]domain.Conversation, error) {
	base := fmt.Sprintf(`SELECT %s FROM conversations`, conversationColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		clauses = append(clauses, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	if len(filter.CustomerIn) > 0 {
		args = append(args, filter.CustomerIn)
		clauses = append(clauses, fmt.Sprintf("customer_id = ANY($%d)", len(args)))
	}
	if len(filter.AgentIn) > 0 {
		args = append(args, filter.AgentIn)
		clauses = append(clauses, fmt.Sprintf("agent_ids && $%d", len(args)))
	}
	if len(filter.IDs) > 0 {
		args = append(args, filter.IDs)
		clauses = append(clauses, fmt.Sprintf("id = ANY($%d)", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	query := fmt.Sprintf("%s WHERE %s ORDER BY updated_at DESC", base, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Conversation
	for rows.Next() {
		conv, err := scanConversationRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *conv)
	}
	return result, rows.Err()
}

func (r *conversationRepository) UpdateStatus(ctx context.Context, id string, status domain.ConversationStatus) (*domain.Conversation, error) {
	query := fmt.Sprintf(`
        UPDATE conversations SET status=$1, updated_at=NOW()
        WHERE id=$2
        RETURNING %s`, conversationColumns)
	return scanConversationRow(r.pool.QueryRow(ctx, query, status, id))
}

func (r *conversationRepository) AssignAgent(ctx context.Context, id, agentID string) (*domain.Conversation, error) {
	query := fmt.Sprintf(`
        UPDATE conversations
        SET agent_ids = (CASE WHEN $1::uuid = ANY(agent_ids) THEN agent_ids ELSE array_append(agent_ids, $1::uuid) END),
            updated_at = NOW()
        WHERE id=$2
        RETURNING %s`, conversationColumns)
	return scanConversationRow(r.pool.QueryRow(ctx, query, agentID, id))
}

func (r *conversationRepository) AgentLoad(ctx context.Context) ([]AgentLoadRow, error) {
	const query = `
        SELECT agent_id, COUNT(*) FROM conversations, UNNEST(agent_ids) AS agent_id
        GROUP BY agent_id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AgentLoadRow
	for rows.Next() {
		var row AgentLoadRow
		if err := rows.Scan(&row.AgentID, &row.Count); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversationRow(row rowScanner) (*domain.Conversation, error) {
	var conv domain.Conversation
	if err := row.Scan(
		&conv.ID,
		&conv.CustomerID,
		&conv.AgentIDs,
		&conv.Status,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &conv, nil
}
