package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-chat/internal/api/dto"
	"github.com/spec-kit/support-chat/internal/auth"
	"github.com/spec-kit/support-chat/internal/service"
	apperrors "github.com/spec-kit/support-chat/pkg/util"
)

// SearchHandler exposes the cross-entity conversation search.
type SearchHandler struct {
	search *service.SearchService
}

// NewSearchHandler constructs handler.
func NewSearchHandler(searchService *service.SearchService) *SearchHandler {
	return &SearchHandler{search: searchService}
}

// Search handles GET /api/search/chats. All predicates arrive as query
// parameters; dates accept RFC 3339 or plain YYYY-MM-DD.
func (h *SearchHandler) Search(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	query := service.SearchQuery{
		Text:         c.Query("text"),
		Sentiment:    c.Query("sentiment"),
		Status:       c.Query("status"),
		CustomerName: c.Query("customerName"),
		AgentName:    c.Query("agentName"),
	}

	var err error
	if query.From, err = parseDateParam(c.Query("from")); err != nil {
		return apperrors.NewValidationError("invalid from date", map[string]any{"from": c.Query("from")})
	}
	if query.To, err = parseDateParam(c.Query("to")); err != nil {
		return apperrors.NewValidationError("invalid to date", map[string]any{"to": c.Query("to")})
	}
	if raw := c.Query("limit"); raw != "" {
		if query.Limit, err = strconv.Atoi(raw); err != nil || query.Limit < 0 {
			return apperrors.NewValidationError("invalid limit", nil)
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if query.Offset, err = strconv.Atoi(raw); err != nil || query.Offset < 0 {
			return apperrors.NewValidationError("invalid offset", nil)
		}
	}

	list, err := h.search.Search(c.UserContext(), principal, query)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewConversationResponses(list)})
}

func parseDateParam(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
