package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-chat/internal/api/dto"
	"github.com/spec-kit/support-chat/internal/classify"
	"github.com/spec-kit/support-chat/internal/domain"
	apperrors "github.com/spec-kit/support-chat/pkg/util"
)

// MLHandler exposes the standalone classification helpers used by agent
// tooling: ad-hoc sentiment checks and canned reply suggestions.
type MLHandler struct {
	classifier *classify.Adapter
}

// NewMLHandler constructs handler.
func NewMLHandler(classifier *classify.Adapter) *MLHandler {
	return &MLHandler{classifier: classifier}
}

// Sentiment handles POST /api/ml/sentiment.
func (h *MLHandler) Sentiment(c *fiber.Ctx) error {
	var req dto.SentimentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Text) == "" {
		return apperrors.NewValidationError("text is required", nil)
	}

	result, err := h.classifier.Classify(c.UserContext(), req.Text)
	if err != nil {
		// Ad-hoc checks degrade the same way ingestion does.
		result = classify.Result{Label: domain.SentimentNeutral, Score: 0.5}
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"sentiment": result.Label,
		"score":     result.Score,
	}})
}

// SmartReplies handles POST /api/ml/suggestions.
func (h *MLHandler) SmartReplies(c *fiber.Ctx) error {
	var req dto.SmartRepliesRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Text) == "" {
		return apperrors.NewValidationError("text is required", nil)
	}

	return c.JSON(fiber.Map{"data": fiber.Map{
		"replies": classify.SmartReplies(req.Text),
	}})
}
