package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/zapret-labs/tracker/internal/api/dto"
	"github.com/zapret-labs/tracker/internal/domain"
	"github.com/zapret-labs/tracker/internal/repository"
	apperrors "github.com/zapret-labs/tracker/pkg/util"
)

// TagsHandler exposes the shared tag palette. Creation and deletion
// are admin operations, wired through router-level middleware.
type TagsHandler struct {
	tags repository.TagRepository
}

// NewTagsHandler constructs handler.
func NewTagsHandler(tags repository.TagRepository) *TagsHandler {
	return &TagsHandler{tags: tags}
}

// List handles GET /tags.
func (h *TagsHandler) List(c *fiber.Ctx) error {
	tags, err := h.tags.List(c.UserContext())
	if err != nil {
		return apperrors.MapError(err)
	}
	if tags == nil {
		tags = []domain.Tag{}
	}
	return c.JSON(fiber.Map{"data": tags})
}

// Create handles POST /tags.
func (h *TagsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateTagRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return fiber.NewError(http.StatusBadRequest, "name required")
	}
	tag := &domain.Tag{Name: name, Color: req.Color}
	if tag.Color == "" {
		tag.Color = "#6c757d"
	}
	if err := h.tags.Create(c.UserContext(), tag); err != nil {
		return apperrors.MapError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": tag})
}

// Delete handles DELETE /tags/:id.
func (h *TagsHandler) Delete(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return fiber.NewError(http.StatusBadRequest, "invalid tag id")
	}
	if err := h.tags.Delete(c.UserContext(), id); err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"ok": true}})
}
