package handlers

import (
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-chat/internal/api/dto"
	"github.com/spec-kit/support-chat/internal/auth"
	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/service"
	"github.com/spec-kit/support-chat/internal/storage"
	apperrors "github.com/spec-kit/support-chat/pkg/util"
)

// ChatsHandler exposes conversation and message endpoints.
type ChatsHandler struct {
	chats       *service.ChatService
	attachments storage.AttachmentStore
}

// NewChatsHandler constructs handler.
func NewChatsHandler(chatService *service.ChatService, attachments storage.AttachmentStore) *ChatsHandler {
	return &ChatsHandler{chats: chatService, attachments: attachments}
}

// Open handles POST /api/chats. Returns 201 when a conversation was created
// and 200 when the customer's active conversation already existed; both carry
// the same body shape, so the handler reports 200 uniformly except on create.
func (h *ChatsHandler) Open(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	conv, err := h.chats.OpenConversation(c.UserContext(), principal)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"data": dto.NewConversationResponse(conv)})
}

// List handles GET /api/chats with an optional status filter.
func (h *ChatsHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var status *domain.ConversationStatus
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		st := domain.ConversationStatus(raw)
		status = &st
	}

	list, err := h.chats.ListConversations(c.UserContext(), principal, status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewConversationResponses(list)})
}

// Get handles GET /api/chats/:id.
func (h *ChatsHandler) Get(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	conv, err := h.chats.GetConversation(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewConversationResponse(conv)})
}

// ListMessages handles GET /api/chats/:id/messages.
func (h *ChatsHandler) ListMessages(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	msgs, err := h.chats.ListMessages(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMessageResponses(msgs)})
}

// SendMessage handles POST /api/chats/:id/messages. Accepts either a JSON
// body with text, or a multipart form with a text field and an optional
// attachment file.
func (h *ChatsHandler) SendMessage(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var text string
	var attachment *domain.Attachment

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		text = c.FormValue("text")
		fileHeader, err := c.FormFile("attachment")
		if err == nil && fileHeader != nil {
			attachment, err = h.storeAttachment(c, fileHeader)
			if err != nil {
				return err
			}
		}
	} else {
		var req dto.SendMessageRequest
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
		text = req.Text
	}

	msg, err := h.chats.SendMessage(c.UserContext(), principal, c.Params("id"), text, attachment)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewMessageResponse(msg)})
}

// UpdateStatus handles PATCH /api/chats/:id/status.
func (h *ChatsHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	conv, err := h.chats.UpdateStatus(c.UserContext(), principal, c.Params("id"), domain.ConversationStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewConversationResponse(conv)})
}

// AssignAgent handles POST /api/chats/:id/agents.
func (h *ChatsHandler) AssignAgent(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.AssignAgentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	conv, err := h.chats.AssignAgent(c.UserContext(), principal, c.Params("id"), req.AgentID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewConversationResponse(conv)})
}

func (h *ChatsHandler) storeAttachment(c *fiber.Ctx, fileHeader *multipart.FileHeader) (*domain.Attachment, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, apperrors.NewValidationError("unreadable attachment", nil)
	}
	defer file.Close()

	stored, err := h.attachments.Store(c.UserContext(), file, storage.Metadata{
		FileName:  fileHeader.Filename,
		MimeType:  fileHeader.Header.Get("Content-Type"),
		SizeBytes: fileHeader.Size,
	})
	if err != nil {
		return nil, err
	}
	return &domain.Attachment{
		URL:        stored.URL,
		ExternalID: stored.ExternalID,
		FileName:   fileHeader.Filename,
		MimeType:   fileHeader.Header.Get("Content-Type"),
		SizeBytes:  fileHeader.Size,
	}, nil
}
