package handlers

import (
	"errors"

	"linkintel/internal/dto"
	"linkintel/internal/models"
	"linkintel/internal/repository"
	"linkintel/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type LinkHandler struct {
	discovery     *service.DiscoveryService
	linkService   *service.LinkService
	refineDefault bool
	logger        *zap.Logger
}

func NewLinkHandler(discovery *service.DiscoveryService, linkService *service.LinkService, refineDefault bool, logger *zap.Logger) *LinkHandler {
	return &LinkHandler{
		discovery:     discovery,
		linkService:   linkService,
		refineDefault: refineDefault,
		logger:        logger,
	}
}

// Analyze godoc
// @Summary Run link discovery
// @Description Scan customers and subscriptions, score candidate relationships and persist the new ones for review
// @Tags links
// @Produce json
// @Param refine query bool false "Append AI explanations to the first candidates"
// @Success 200 {object} dto.AnalyzeResponse
// @Failure 500 {object} map[string]string
// @Router /api/v1/links/analyze [post]
func (h *LinkHandler) Analyze(c *fiber.Ctx) error {
	refine := c.QueryBool("refine", h.refineDefault)

	result, err := h.discovery.Run(c.Context(), refine)
	if err != nil {
		h.logger.Error("Link discovery failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to analyze links",
		})
	}

	return c.JSON(dto.AnalyzeResponse{
		TotalAnalyzed: result.TotalAnalyzed,
		NewLinks:      dto.NewLinkResponses(result.NewLinks),
	})
}

// List godoc
// @Summary List discovered links
// @Description List persisted links ordered by confidence, optionally filtered by endpoint or pending state
// @Tags links
// @Produce json
// @Param source_type query string false "Filter by source type"
// @Param source_id query string false "Filter by source id"
// @Param target_type query string false "Filter by target type"
// @Param target_id query string false "Filter by target id"
// @Param pending_only query bool false "Only links awaiting a decision"
// @Success 200 {array} dto.LinkResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/links [get]
func (h *LinkHandler) List(c *fiber.Ctx) error {
	filter, err := parseLinkFilter(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	links, err := h.linkService.List(c.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list links", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list links",
		})
	}

	return c.JSON(dto.NewLinkResponses(links))
}

// Decide godoc
// @Summary Accept or reject a link
// @Description Record the human review decision for a link; re-deciding overwrites the previous decision
// @Tags links
// @Accept json
// @Produce json
// @Param id path string true "Link ID"
// @Param request body dto.DecideLinkRequest true "Decision"
// @Success 200 {object} dto.LinkResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/links/{id}/decision [post]
func (h *LinkHandler) Decide(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid link ID",
		})
	}

	var req dto.DecideLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	var decision models.LinkDecision
	switch req.Decision {
	case "accepted":
		decision = models.DecisionAccepted
	case "rejected":
		decision = models.DecisionRejected
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Decision must be accepted or rejected",
		})
	}

	link, err := h.linkService.Decide(c.Context(), id, decision)
	if err != nil {
		if errors.Is(err, service.ErrLinkNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Link not found",
			})
		}
		h.logger.Error("Failed to decide link", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to decide link",
		})
	}

	return c.JSON(dto.NewLinkResponse(link))
}

// Remove godoc
// @Summary Delete a link
// @Description Permanently delete a discovered link
// @Tags links
// @Produce json
// @Param id path string true "Link ID"
// @Success 204
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/links/{id} [delete]
func (h *LinkHandler) Remove(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid link ID",
		})
	}

	if err := h.linkService.Remove(c.Context(), id); err != nil {
		if errors.Is(err, service.ErrLinkNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Link not found",
			})
		}
		h.logger.Error("Failed to remove link", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to remove link",
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func parseLinkFilter(c *fiber.Ctx) (repository.LinkFilter, error) {
	var filter repository.LinkFilter

	if v := c.Query("source_type"); v != "" {
		entityType, err := parseEntityType(v)
		if err != nil {
			return filter, err
		}
		filter.SourceType = &entityType
	}
	if v := c.Query("target_type"); v != "" {
		entityType, err := parseEntityType(v)
		if err != nil {
			return filter, err
		}
		filter.TargetType = &entityType
	}
	if v := c.Query("source_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, errors.New("invalid source_id")
		}
		filter.SourceID = &id
	}
	if v := c.Query("target_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, errors.New("invalid target_id")
		}
		filter.TargetID = &id
	}
	filter.PendingOnly = c.QueryBool("pending_only", false)

	return filter, nil
}

func parseEntityType(v string) (models.EntityType, error) {
	switch models.EntityType(v) {
	case models.EntityCategory, models.EntityGroup, models.EntityCustomer, models.EntitySubscription:
		return models.EntityType(v), nil
	default:
		return "", errors.New("invalid entity type: " + v)
	}
}
