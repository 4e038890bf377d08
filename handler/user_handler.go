package handler

import (
	"go-auth-api/common"
	"go-auth-api/model"
	"go-auth-api/service"
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

// UserHandler serves the admin user management routes.
type UserHandler struct {
	service *service.UserService
}

func NewUserHandler(s *service.UserService) *UserHandler {
	return &UserHandler{service: s}
}

func pathUserID(r *http.Request) (uuid.UUID, *common.AppError) {
	id, err := uuid.Parse(r.PathValue("userId"))
	if err != nil {
		return uuid.Nil, common.NewAppError(http.StatusBadRequest, "Invalid user ID in URL path", err)
	}
	return id, nil
}

// queryInt reads a positive integer query parameter, falling back to def.
func queryInt(r *http.Request, name string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n < 1 {
		return def
	}
	return n
}

// ListUsers godoc
// @Summary      List all users
// @Description  Returns one page of users, newest first. Requires admin privileges.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        page  query int false "Page number" default(1)
// @Param        limit query int false "Page size (max 100)" default(10)
// @Success      200  {object}  model.UserPage
// @Failure      401  {object}  common.AppError "Unauthorized"
// @Failure      403  {object}  common.AppError "Forbidden: Admin privileges required"
// @Router       /api/users [get]
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) *common.AppError {
	page, err := h.service.ListUsers(r.Context(), queryInt(r, "page", 1), queryInt(r, "limit", service.DefaultPageSize))
	if err != nil {
		return toAppError(err)
	}

	common.WriteJSON(w, http.StatusOK, "", page)
	return nil
}

// DeleteUser godoc
// @Summary      Delete a user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        userId path string true "User ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  common.AppError "Invalid ID or attempt to delete own account"
// @Failure      403  {object}  common.AppError "Forbidden: Admin privileges required"
// @Failure      404  {object}  common.AppError "User not found"
// @Router       /api/users/{userId} [delete]
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) *common.AppError {
	actor, appErr := currentIdentity(r)
	if appErr != nil {
		return appErr
	}
	targetID, appErr := pathUserID(r)
	if appErr != nil {
		return appErr
	}

	if err := h.service.DeleteUser(r.Context(), actor.UserID, targetID); err != nil {
		return toAppError(err)
	}

	common.WriteJSON(w, http.StatusOK, "User deleted successfully", nil)
	return nil
}

// UpdateUserRole godoc
// @Summary      Update a user's role
// @Description  Updates the role of a specific user. Requires admin privileges.
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        userId path string true "User ID"
// @Param        role body model.UpdateUserRoleRequest true "New role for the user"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  common.AppError "Invalid request body or user ID"
// @Failure      403  {object}  common.AppError "Forbidden: Admin privileges required"
// @Failure      404  {object}  common.AppError "User not found"
// @Router       /api/users/{userId}/role [put]
func (h *UserHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request) *common.AppError {
	targetID, appErr := pathUserID(r)
	if appErr != nil {
		return appErr
	}

	var req model.UpdateUserRoleRequest
	if err := common.ValidateAndDecode(r, &req); err != nil {
		return err
	}

	if err := h.service.UpdateUserRole(r.Context(), targetID, req.Role); err != nil {
		return toAppError(err)
	}

	common.WriteJSON(w, http.StatusOK, "User role updated successfully", nil)
	return nil
}

// UpdateUserStatus godoc
// @Summary      Activate or deactivate a user
// @Description  Deactivation revokes the user's session and blocks further logins.
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        userId path string true "User ID"
// @Param        status body model.UpdateUserStatusRequest true "New status"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  common.AppError "Invalid request body or user ID"
// @Failure      403  {object}  common.AppError "Forbidden: Admin privileges required"
// @Failure      404  {object}  common.AppError "User not found"
// @Router       /api/users/{userId}/status [put]
func (h *UserHandler) UpdateUserStatus(w http.ResponseWriter, r *http.Request) *common.AppError {
	actor, appErr := currentIdentity(r)
	if appErr != nil {
		return appErr
	}
	targetID, appErr := pathUserID(r)
	if appErr != nil {
		return appErr
	}

	var req model.UpdateUserStatusRequest
	if err := common.ValidateAndDecode(r, &req); err != nil {
		return err
	}

	if err := h.service.SetUserActive(r.Context(), actor.UserID, targetID, *req.IsActive); err != nil {
		return toAppError(err)
	}

	common.WriteJSON(w, http.StatusOK, "User status updated successfully", nil)
	return nil
}
