package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-access/internal/api/dto"
	"github.com/spec-kit/crm-access/internal/auth"
	"github.com/spec-kit/crm-access/internal/domain"
	"github.com/spec-kit/crm-access/internal/service"
)

// StaffRolesHandler exposes staff role administration.
type StaffRolesHandler struct {
	roles *service.StaffRoleService
}

// NewStaffRolesHandler constructs handler.
func NewStaffRolesHandler(roles *service.StaffRoleService) *StaffRolesHandler {
	return &StaffRolesHandler{roles: roles}
}

// Get handles GET /api/admin/staff-roles/:userId.
func (h *StaffRolesHandler) Get(c *fiber.Ctx) error {
	record, err := h.roles.Get(c.UserContext(), c.Params("userId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": staffRoleResponse(record)})
}

// Set handles PUT /api/admin/staff-roles/:userId.
func (h *StaffRolesHandler) Set(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.StaffRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	record, err := h.roles.Set(c.UserContext(), principal, c.Params("userId"), req.Role)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": staffRoleResponse(record)})
}

// Delete handles DELETE /api/admin/staff-roles/:userId.
func (h *StaffRolesHandler) Delete(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	if err := h.roles.Delete(c.UserContext(), principal, c.Params("userId")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ProvisionUser handles POST /api/admin/users.
func (h *StaffRolesHandler) ProvisionUser(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.ProvisionUserRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	user, err := h.roles.ProvisionUser(c.UserContext(), principal, service.ProvisionInput{
		Name:           req.Name,
		Email:          req.Email,
		Password:       req.Password,
		Role:           req.Role,
		OrganizationID: req.OrganizationID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": userResponse(user)})
}

func staffRoleResponse(record *domain.StaffRoleRecord) dto.StaffRoleResponse {
	return dto.StaffRoleResponse{
		UserID:    record.UserID,
		Role:      record.Role,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}

func userResponse(user *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:             user.ID,
		Name:           user.Name,
		Email:          user.Email,
		Role:           user.Role,
		OrganizationID: user.OrganizationID,
		Status:         user.Status,
	}
}
