package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/zapret-labs/tracker/internal/api/dto"
	"github.com/zapret-labs/tracker/internal/auth"
	"github.com/zapret-labs/tracker/internal/domain"
	"github.com/zapret-labs/tracker/internal/service"
)

// TicketsHandler exposes ticket CRUD, voting, subscriptions, the
// kanban board and stats.
type TicketsHandler struct {
	tickets *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets}
}

// List handles GET /tickets.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)

	query := service.TicketListQuery{
		Search:          c.Query("search"),
		IncludeArchived: c.QueryBool("archived"),
		Limit:           c.QueryInt("limit", 50),
		Offset:          c.QueryInt("offset", 0),
	}
	for _, raw := range splitQuery(c.Query("status")) {
		query.Statuses = append(query.Statuses, domain.TicketStatus(raw))
	}
	for _, raw := range splitQuery(c.Query("type")) {
		query.Types = append(query.Types, domain.TicketType(raw))
	}
	for _, raw := range splitQuery(c.Query("priority")) {
		query.Priorities = append(query.Priorities, domain.TicketPriority(raw))
	}
	if raw := c.Query("tag"); raw != "" {
		tagID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid tag id")
		}
		query.TagID = &tagID
	}
	if c.QueryBool("mine") {
		query.AuthorID = &principal.User.ID
	}

	tickets, err := h.tickets.List(c.UserContext(), principal.User, query)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": tickets})
}

// Kanban handles GET /tickets/kanban.
func (h *TicketsHandler) Kanban(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	board, err := h.tickets.Kanban(c.UserContext(), principal.User)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": board})
}

// Stats handles GET /tickets/stats.
func (h *TicketsHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.tickets.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

// Get handles GET /tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.Get(c.UserContext(), principal.User, id)
	if err != nil {
		return err
	}
	subscribed, err := h.tickets.IsSubscribed(c.UserContext(), principal.User.ID, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"ticket":     ticket,
		"subscribed": subscribed,
	}})
}

// Create handles POST /tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	ticket, err := h.tickets.Create(c.UserContext(), principal.User, service.CreateTicketInput{
		Title:       req.Title,
		Description: req.Description,
		Type:        domain.TicketType(req.Type),
		Priority:    domain.TicketPriority(req.Priority),
		IsPrivate:   req.IsPrivate,
		TagIDs:      req.TagIDs,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticket})
}

// Update handles PATCH /tickets/:id.
func (h *TicketsHandler) Update(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	input := service.UpdateTicketInput{
		Title:       req.Title,
		Description: req.Description,
		IsPrivate:   req.IsPrivate,
		TagIDs:      req.TagIDs,
	}
	if req.Type != nil {
		ticketType := domain.TicketType(*req.Type)
		input.Type = &ticketType
	}
	if req.Status != nil {
		status := domain.TicketStatus(*req.Status)
		input.Status = &status
	}
	if req.Priority != nil {
		priority := domain.TicketPriority(*req.Priority)
		input.Priority = &priority
	}

	ticket, err := h.tickets.Update(c.UserContext(), principal.User, id, input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticket})
}

// Delete handles DELETE /tickets/:id.
func (h *TicketsHandler) Delete(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	if err := h.tickets.Delete(c.UserContext(), principal.User, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"ok": true}})
}

// ToggleVote handles POST /tickets/:id/vote.
func (h *TicketsHandler) ToggleVote(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	voted, total, err := h.tickets.ToggleVote(c.UserContext(), principal.User, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"voted": voted,
		"votes": total,
	}})
}

// MyVotes handles GET /tickets/votes.
func (h *TicketsHandler) MyVotes(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	votes, err := h.tickets.ListUserVotes(c.UserContext(), principal.User.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": votes})
}

// MySubscriptions handles GET /tickets/subscriptions.
func (h *TicketsHandler) MySubscriptions(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	subscriptions, err := h.tickets.ListUserSubscriptions(c.UserContext(), principal.User.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": subscriptions})
}

// Subscribe handles POST /tickets/:id/subscribe.
func (h *TicketsHandler) Subscribe(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	if err := h.tickets.Subscribe(c.UserContext(), principal.User, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"subscribed": true}})
}

// Unsubscribe handles DELETE /tickets/:id/subscribe.
func (h *TicketsHandler) Unsubscribe(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	if err := h.tickets.Unsubscribe(c.UserContext(), principal.User, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"subscribed": false}})
}

func ticketID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(http.StatusBadRequest, "invalid ticket id")
	}
	return id, nil
}

func splitQuery(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	result := parts[:0]
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
