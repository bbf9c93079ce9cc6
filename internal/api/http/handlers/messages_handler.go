package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/zapret-labs/tracker/internal/api/dto"
	"github.com/zapret-labs/tracker/internal/auth"
	"github.com/zapret-labs/tracker/internal/domain"
	"github.com/zapret-labs/tracker/internal/service"
)

// MessagesHandler exposes the ticket discussion thread.
type MessagesHandler struct {
	messages *service.MessageService
	typing   *service.TypingService
}

// NewMessagesHandler constructs handler.
func NewMessagesHandler(messages *service.MessageService, typing *service.TypingService) *MessagesHandler {
	return &MessagesHandler{messages: messages, typing: typing}
}

// List handles GET /tickets/:id/messages. With ?after=<id> it returns
// only newer messages, which is what the polling client sends.
func (h *MessagesHandler) List(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	id, err := ticketID(c)
	if err != nil {
		return err
	}

	if after := c.QueryInt("after", -1); after >= 0 {
		messages, err := h.messages.ListSince(c.UserContext(), principal.User, id, int64(after))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": messages})
	}

	messages, err := h.messages.List(c.UserContext(), principal.User, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": messages})
}

// Add handles POST /tickets/:id/messages.
func (h *MessagesHandler) Add(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.AddMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	message, err := h.messages.Add(c.UserContext(), principal.User, id, req.Content)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": message})
}

// Edit handles PATCH /messages/:messageId.
func (h *MessagesHandler) Edit(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	id, err := messageID(c)
	if err != nil {
		return err
	}
	var req dto.EditMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	message, err := h.messages.Edit(c.UserContext(), principal.User, id, req.Content)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": message})
}

// Delete handles DELETE /messages/:messageId.
func (h *MessagesHandler) Delete(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	id, err := messageID(c)
	if err != nil {
		return err
	}
	if err := h.messages.Delete(c.UserContext(), principal.User, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"ok": true}})
}

// ToggleReaction handles POST /messages/:messageId/reactions.
func (h *MessagesHandler) ToggleReaction(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	id, err := messageID(c)
	if err != nil {
		return err
	}
	var req dto.ReactionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	added, err := h.messages.ToggleReaction(c.UserContext(), principal.User, id, req.Emoji)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"added": added}})
}

// Typing handles POST /presence/typing. A missing ticket id is simply
// ignored, so a sloppy client never turns a keystroke into an error.
func (h *MessagesHandler) Typing(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.TypingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.TicketID > 0 {
		h.typing.RecordTyping(req.TicketID, principal.User)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"ok": true}})
}

// TypingList handles GET /presence/typing/:ticketId.
func (h *MessagesHandler) TypingList(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	id, err := strconv.ParseInt(c.Params("ticketId"), 10, 64)
	if err != nil || id <= 0 {
		return fiber.NewError(http.StatusBadRequest, "invalid ticket id")
	}
	typing := h.typing.ListTyping(id, principal.User.ID, principal.IsAdmin())
	if typing == nil {
		typing = []domain.TypingUser{}
	}
	return c.JSON(fiber.Map{"data": typing})
}

func messageID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("messageId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(http.StatusBadRequest, "invalid message id")
	}
	return id, nil
}
