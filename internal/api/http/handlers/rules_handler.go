package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-escalation/internal/api/dto"
	"github.com/spec-kit/ticket-escalation/internal/auth"
	"github.com/spec-kit/ticket-escalation/internal/domain"
	"github.com/spec-kit/ticket-escalation/internal/service"
	apperrors "github.com/spec-kit/ticket-escalation/pkg/util"
)

// RulesHandler administers escalation rules.
type RulesHandler struct {
	service *service.EscalationService
}

// NewRulesHandler constructs handler.
func NewRulesHandler(escalationService *service.EscalationService) *RulesHandler {
	return &RulesHandler{service: escalationService}
}

// Create POST /api/v1/escalation-rules.
func (h *RulesHandler) Create(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	input, err := parseRuleInput(c)
	if err != nil {
		return err
	}
	rule, err := h.service.CreateRule(c.UserContext(), user, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ruleResponse(rule)})
}

// Update PUT /api/v1/escalation-rules/:id.
func (h *RulesHandler) Update(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	input, err := parseRuleInput(c)
	if err != nil {
		return err
	}
	rule, err := h.service.UpdateRule(c.UserContext(), user, c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ruleResponse(rule)})
}

// Get GET /api/v1/escalation-rules/:id.
func (h *RulesHandler) Get(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	rule, err := h.service.GetRule(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ruleResponse(rule)})
}

// List GET /api/v1/escalation-rules?active=true.
func (h *RulesHandler) List(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	activeOnly, _ := strconv.ParseBool(c.Query("active"))
	rules, err := h.service.ListRules(c.UserContext(), user, activeOnly)
	if err != nil {
		return err
	}
	items := make([]dto.EscalationRuleResponse, 0, len(rules))
	for i := range rules {
		items = append(items, ruleResponse(&rules[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Executions GET /api/v1/escalation-rules/:id/executions?limit=50.
func (h *RulesHandler) Executions(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	logs, err := h.service.ListRuleExecutions(c.UserContext(), user, c.Params("id"), c.QueryInt("limit", 100))
	if err != nil {
		return err
	}
	items := make([]dto.RuleExecutionResponse, 0, len(logs))
	for _, log := range logs {
		items = append(items, dto.RuleExecutionResponse{
			ID:           log.ID,
			TicketID:     log.TicketID,
			Outcome:      log.Outcome,
			ErrorDetail:  log.ErrorDetail,
			EscalationID: log.EscalationID,
			ExecutedAt:   log.ExecutedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// Sweep POST /api/v1/escalation-rules/sweep.
func (h *RulesHandler) Sweep(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	report, err := h.service.TriggerSweep(c.UserContext(), user)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

func parseRuleInput(c *fiber.Ctx) (service.RuleInput, error) {
	var req dto.EscalationRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return service.RuleInput{}, apperrors.NewValidationError("invalid payload", nil)
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return service.RuleInput{
		Name:                req.Name,
		Description:         req.Description,
		ServiceTypes:        req.ServiceTypes,
		CategoryIDs:         req.CategoryIDs,
		PriorityLevels:      req.PriorityLevels,
		UrgencyThreshold:    req.UrgencyThreshold,
		ConfidenceThreshold: req.ConfidenceThreshold,
		SentimentThreshold:  req.SentimentThreshold,
		SLABreachEscalation: req.SLABreachEscalation,
		FromRole:            req.FromRole,
		ToRole:              req.ToRole,
		SkipLevels:          req.SkipLevels,
		IsActive:            active,
	}, nil
}

func ruleResponse(rule *domain.EscalationRule) dto.EscalationRuleResponse {
	return dto.EscalationRuleResponse{
		ID:                  rule.ID,
		Name:                rule.Name,
		Description:         rule.Description,
		ServiceTypes:        nonNil(rule.ServiceTypes),
		CategoryIDs:         nonNil(rule.CategoryIDs),
		PriorityLevels:      nonNil(rule.PriorityLevels),
		UrgencyThreshold:    rule.UrgencyThreshold,
		ConfidenceThreshold: rule.ConfidenceThreshold,
		SentimentThreshold:  rule.SentimentThreshold,
		SLABreachEscalation: rule.SLABreachEscalation,
		FromRole:            rule.FromRole,
		ToRole:              rule.ToRole,
		SkipLevels:          rule.SkipLevels,
		IsActive:            rule.IsActive,
		ExecutionCount:      rule.ExecutionCount,
		SuccessCount:        rule.SuccessCount,
		LastExecutedAt:      rule.LastExecutedAt,
		CreatedAt:           rule.CreatedAt,
		UpdatedAt:           rule.UpdatedAt,
	}
}
