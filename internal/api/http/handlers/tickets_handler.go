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

// TicketsHandler manages internal ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /api/v1/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.CreateTicket(c.UserContext(), user, createInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": h.ticketResponse(ticket)})
}

// GetTicket GET /api/v1/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketResponse(ticket)})
}

// TransitionStatus POST /api/v1/tickets/:id/status.
func (h *TicketsHandler) TransitionStatus(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.StatusTransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status required", nil)
	}
	ticket, err := h.service.RequestStatusTransition(c.UserContext(), user, c.Params("id"), req.Status, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketResponse(ticket)})
}

// ListHistory GET /api/v1/tickets/:id/history.
func (h *TicketsHandler) ListHistory(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	entries, err := h.service.ListHistory(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": historyResponses(entries)})
}

// CheckAccess GET /api/v1/tickets/:id/access?action=view.
func (h *TicketsHandler) CheckAccess(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	action := service.Action(c.Query("action", string(service.ActionView)))
	decision, err := h.service.CheckAccess(c.UserContext(), user, c.Params("id"), action)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AccessDecisionResponse{
		Action:  string(action),
		Granted: decision.Granted,
		Reason:  decision.Reason,
	}})
}

func createInput(req dto.CreateTicketRequest) service.TicketCreateInput {
	return service.TicketCreateInput{
		Type:            req.Type,
		Title:           req.Title,
		Description:     req.Description,
		UnitID:          req.UnitID,
		CategoryID:      req.CategoryID,
		Priority:        req.Priority,
		UrgencyLevel:    req.UrgencyLevel,
		ConfidenceScore: req.ConfidenceScore,
		SentimentScore:  req.SentimentScore,
		Source:          req.Source,
	}
}

func (h *TicketsHandler) ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:              ticket.ID,
		TicketNumber:    ticket.TicketNumber,
		Type:            ticket.Type,
		Title:           ticket.Title,
		Description:     ticket.Description,
		UnitID:          ticket.UnitID,
		CategoryID:      ticket.CategoryID,
		Status:          ticket.Status,
		Priority:        ticket.Priority,
		UrgencyLevel:    ticket.UrgencyLevel,
		ConfidenceScore: ticket.ConfidenceScore,
		SentimentScore:  ticket.SentimentScore,
		Source:          ticket.Source,
		AssignedTo:      ticket.AssignedTo,
		SLADeadline:     ticket.SLADeadline,
		IsOverdue:       h.service.IsOverdue(ticket),
		IsEscalated:     ticket.IsEscalated,
		CreatedAt:       ticket.CreatedAt,
		UpdatedAt:       ticket.UpdatedAt,
		FirstResponseAt: ticket.FirstResponseAt,
		ResolvedAt:      ticket.ResolvedAt,
	}
}

func historyResponses(entries []domain.TicketHistory) []dto.TicketHistoryResponse {
	resp := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.TicketHistoryResponse{
			ID:            entry.ID,
			ChangedByType: entry.ChangedByType,
			ChangedByID:   entry.ChangedByID,
			OldStatus:     entry.OldStatus,
			NewStatus:     entry.NewStatus,
			Comment:       entry.Comment,
			CreatedAt:     entry.CreatedAt,
		})
	}
	return resp
}
