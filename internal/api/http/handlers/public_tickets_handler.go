package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-escalation/internal/api/dto"
	"github.com/spec-kit/ticket-escalation/internal/service"
	apperrors "github.com/spec-kit/ticket-escalation/pkg/util"
)

// PublicTicketsHandler accepts anonymous submissions.
type PublicTicketsHandler struct {
	service *service.TicketService
}

// NewPublicTicketsHandler constructs handler.
func NewPublicTicketsHandler(ticketService *service.TicketService) *PublicTicketsHandler {
	return &PublicTicketsHandler{service: ticketService}
}

// CreateTicket POST /public/tickets. The requested priority is ignored.
func (h *PublicTicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.CreateTicket(c.UserContext(), nil, createInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.PublicTicketResponse{
		TicketNumber: ticket.TicketNumber,
		Status:       ticket.Status,
		SLADeadline:  ticket.SLADeadline,
		CreatedAt:    ticket.CreatedAt,
	}})
}
