package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-escalation/internal/api/dto"
	"github.com/spec-kit/ticket-escalation/internal/auth"
	"github.com/spec-kit/ticket-escalation/internal/domain"
	"github.com/spec-kit/ticket-escalation/internal/service"
	apperrors "github.com/spec-kit/ticket-escalation/pkg/util"
)

// EscalationsHandler exposes manual escalation and escalation reads.
type EscalationsHandler struct {
	service *service.EscalationService
}

// NewEscalationsHandler constructs handler.
func NewEscalationsHandler(escalationService *service.EscalationService) *EscalationsHandler {
	return &EscalationsHandler{service: escalationService}
}

// Escalate POST /api/v1/tickets/:id/escalations.
func (h *EscalationsHandler) Escalate(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.ManualEscalationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	record, err := h.service.ExecuteManualEscalation(c.UserContext(), user, service.ManualEscalationInput{
		TicketID:      c.Params("id"),
		ToUnitID:      req.ToUnitID,
		ToUserID:      req.ToUserID,
		ToRole:        req.ToRole,
		Reason:        req.Reason,
		TargetUnitIDs: req.TargetUnitIDs,
		CCUnitIDs:     req.CCUnitIDs,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": escalationResponse(record)})
}

// ListForTicket GET /api/v1/tickets/:id/escalations.
func (h *EscalationsHandler) ListForTicket(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	records, err := h.service.ListTicketEscalations(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.EscalationResponse, 0, len(records))
	for i := range records {
		items = append(items, escalationResponse(&records[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetEscalation GET /api/v1/escalations/:id.
func (h *EscalationsHandler) GetEscalation(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	record, err := h.service.GetEscalation(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": escalationResponse(record)})
}

func escalationResponse(record *domain.EscalationRecord) dto.EscalationResponse {
	return dto.EscalationResponse{
		ID:             record.ID,
		TicketID:       record.TicketID,
		FromUnitID:     record.FromUnitID,
		FromUserID:     record.FromUserID,
		ToUnitID:       record.ToUnitID,
		ToUserID:       record.ToUserID,
		ToRole:         record.ToRole,
		Reason:         record.Reason,
		EscalationType: record.EscalationType,
		RuleID:         record.RuleID,
		TargetUnitIDs:  nonNil(record.TargetUnitIDs),
		CCUnitIDs:      nonNil(record.CCUnitIDs),
		CreatedAt:      record.CreatedAt,
	}
}

func nonNil[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}
