package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-access/internal/api/dto"
	"github.com/spec-kit/crm-access/internal/auth"
	"github.com/spec-kit/crm-access/internal/domain"
	"github.com/spec-kit/crm-access/internal/repository"
	"github.com/spec-kit/crm-access/internal/service"
)

// LeadsHandler exposes lead endpoints. Single-lead routes run behind the
// ownership check, which hands over the loaded lead.
type LeadsHandler struct {
	leads *service.LeadService
	gate  *auth.Gate
}

// NewLeadsHandler constructs handler.
func NewLeadsHandler(leads *service.LeadService, gate *auth.Gate) *LeadsHandler {
	return &LeadsHandler{leads: leads, gate: gate}
}

// List handles GET /api/leads.
func (h *LeadsHandler) List(c *fiber.Ctx) error {
	scope, err := h.gate.ListScope(c)
	if err != nil {
		return err
	}
	params, page, pageSize := parseLeadQuery(c)
	leads, err := h.leads.List(c.UserContext(), scope, params)
	if err != nil {
		return err
	}

	items := make([]dto.LeadResponse, 0, len(leads))
	for i := range leads {
		items = append(items, leadResponse(&leads[i]))
	}
	return c.JSON(fiber.Map{"data": dto.LeadListResponse{Items: items, Page: page, PageSize: pageSize}})
}

// Create handles POST /api/leads.
func (h *LeadsHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return auth.Denial(auth.ErrMissingCredential)
	}
	var req dto.LeadRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	lead, err := h.leads.Create(c.UserContext(), principal, leadInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": leadResponse(lead)})
}

// Get handles GET /api/leads/:id.
func (h *LeadsHandler) Get(c *fiber.Ctx) error {
	lead, err := loadedLead(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": leadResponse(lead)})
}

// Update handles PUT /api/leads/:id.
func (h *LeadsHandler) Update(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return auth.Denial(auth.ErrMissingCredential)
	}
	lead, err := loadedLead(c)
	if err != nil {
		return err
	}
	var req dto.LeadRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	updated, err := h.leads.Update(c.UserContext(), principal, lead, leadInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": leadResponse(updated)})
}

// Delete handles DELETE /api/leads/:id.
func (h *LeadsHandler) Delete(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return auth.Denial(auth.ErrMissingCredential)
	}
	lead, err := loadedLead(c)
	if err != nil {
		return err
	}
	if err := h.leads.Delete(c.UserContext(), principal, lead); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func loadedLead(c *fiber.Ctx) (*domain.Lead, error) {
	lead, ok := auth.ResourceFromContext[*domain.Lead](c)
	if !ok {
		return nil, auth.Denial(auth.ErrResourceNotFound)
	}
	return lead, nil
}

func parseLeadQuery(c *fiber.Ctx) (service.LeadListParams, int, int) {
	params := service.LeadListParams{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			params.Statuses = append(params.Statuses, domain.LeadStatus(strings.ToUpper(strings.TrimSpace(part))))
		}
	}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		params.SearchTerm = &q
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := repository.LeadPageSize(parseInt(c.Query("page_size"), repository.DefaultLeadPageSize))
	params.Offset = (page - 1) * pageSize
	params.Limit = pageSize
	return params, page, pageSize
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func leadInput(req dto.LeadRequest) service.LeadInput {
	return service.LeadInput{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Company:    req.Company,
		Source:     req.Source,
		Status:     req.Status,
		Notes:      req.Notes,
		AssignedTo: req.AssignedTo,
	}
}

func leadResponse(lead *domain.Lead) dto.LeadResponse {
	return dto.LeadResponse{
		ID:             lead.ID,
		OrganizationID: lead.OrganizationID,
		Name:           lead.Name,
		Email:          lead.Email,
		Phone:          lead.Phone,
		Company:        lead.Company,
		Source:         lead.Source,
		Status:         lead.Status,
		Notes:          lead.Notes,
		AssignedTo:     lead.AssignedTo,
		CreatedAt:      lead.CreatedAt,
		UpdatedAt:      lead.UpdatedAt,
	}
}
