package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/complaint-service/internal/api/dto"
	"github.com/spec-kit/complaint-service/internal/service"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

// ChatbotHandler answers help questions. It is public.
type ChatbotHandler struct {
	service *service.ChatbotService
}

// NewChatbotHandler constructs handler.
func NewChatbotHandler(chatbot *service.ChatbotService) *ChatbotHandler {
	return &ChatbotHandler{service: chatbot}
}

// Reply POST /chatbot.
func (h *ChatbotHandler) Reply(c *fiber.Ctx) error {
	var req dto.ChatbotRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	reply, err := h.service.Reply(c.UserContext(), req.Message)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ChatbotResponse{Response: reply.Response, Source: reply.Source}})
}
