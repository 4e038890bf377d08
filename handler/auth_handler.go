package handler

import (
	"go-auth-api/common"
	"go-auth-api/logger"
	"go-auth-api/model"
	"go-auth-api/service"
	"net/http"

	"github.com/sirupsen/logrus"
)

type AuthHandler struct {
	service *service.AuthService
}

func NewAuthHandler(s *service.AuthService) *AuthHandler {
	return &AuthHandler{service: s}
}

// currentIdentity is set by Authenticator.Authenticate on every protected route.
func currentIdentity(r *http.Request) (Identity, *common.AppError) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		return Identity{}, common.NewAppError(http.StatusUnauthorized, "Access denied. Please login.", nil)
	}
	return identity, nil
}

// Register godoc
// @Summary      Register a new user
// @Description  Creates an account and opens its first session.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        user body model.RegisterRequest true "User registration info"
// @Success      201  {object}  model.AuthResult
// @Failure      400  {object}  common.AppError "Validation failed or email/username already taken"
// @Failure      403  {object}  common.AppError "Role cannot be self-assigned"
// @Failure      429  {object}  common.AppError "Too many authentication attempts"
// @Router       /api/auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.RegisterRequest
	if err := common.ValidateAndDecode(r, &req); err != nil {
		return err
	}

	result, err := h.service.Register(r.Context(), req)
	if err != nil {
		return toAppError(err)
	}

	common.WriteJSON(w, http.StatusCreated, "User registered successfully", result)
	return nil
}

// Login godoc
// @Summary      Log in a user
// @Description  Authenticates by email and password and returns a fresh token pair.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        credentials body model.LoginRequest true "User login credentials"
// @Success      200  {object}  model.AuthResult
// @Failure      400  {object}  common.AppError "Validation failed"
// @Failure      401  {object}  common.AppError "Invalid credentials or deactivated account"
// @Failure      429  {object}  common.AppError "Too many authentication attempts"
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.LoginRequest
	if err := common.ValidateAndDecode(r, &req); err != nil {
		return err
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{
			"remote_addr": r.RemoteAddr,
			"reason":      err.Error(),
		}).Warn("Login failed")
		return toAppError(err)
	}

	common.WriteJSON(w, http.StatusOK, "Login successful", result)
	return nil
}

// RefreshToken godoc
// @Summary      Rotate the token pair
// @Description  Exchanges the current refresh token for a new access/refresh pair. The presented token is retired.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        token body model.RefreshTokenRequest true "Refresh token"
// @Success      200  {object}  model.TokenPair
// @Failure      400  {object}  common.AppError "Refresh token is required"
// @Failure      401  {object}  common.AppError "Invalid or expired refresh token"
// @Router       /api/auth/refresh-token [post]
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.RefreshTokenRequest
	if err := common.ValidateAndDecode(r, &req); err != nil {
		return err
	}

	pair, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		return toAppError(err)
	}

	common.WriteJSON(w, http.StatusOK, "", pair)
	return nil
}

// Profile godoc
// @Summary      Current user profile
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  model.PublicUser
// @Failure      401  {object}  common.AppError "Unauthorized"
// @Failure      404  {object}  common.AppError "User not found"
// @Router       /api/auth/profile [get]
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) *common.AppError {
	identity, appErr := currentIdentity(r)
	if appErr != nil {
		return appErr
	}

	user, err := h.service.Profile(r.Context(), identity.UserID)
	if err != nil {
		return toAppError(err)
	}

	common.WriteJSON(w, http.StatusOK, "", map[string]interface{}{"user": user})
	return nil
}

// UpdateProfile godoc
// @Summary      Update the current user's profile
// @Description  Changes username and/or email. Omitted fields are kept.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        profile body model.UpdateProfileRequest true "Fields to change"
// @Success      200  {object}  model.PublicUser
// @Failure      400  {object}  common.AppError "Validation failed or email/username in use"
// @Failure      401  {object}  common.AppError "Unauthorized"
// @Router       /api/auth/profile [put]
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) *common.AppError {
	identity, appErr := currentIdentity(r)
	if appErr != nil {
		return appErr
	}

	var req model.UpdateProfileRequest
	if err := common.ValidateAndDecode(r, &req); err != nil {
		return err
	}

	user, err := h.service.UpdateProfile(r.Context(), identity.UserID, req)
	if err != nil {
		return toAppError(err)
	}

	common.WriteJSON(w, http.StatusOK, "Profile updated successfully", map[string]interface{}{"user": user})
	return nil
}

// ChangePassword godoc
// @Summary      Change the current user's password
// @Description  Verifies the current password, stores the new one and ends the stored session.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        passwords body model.ChangePasswordRequest true "Current and new password"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  common.AppError "Validation failed or current password incorrect"
// @Failure      401  {object}  common.AppError "Unauthorized"
// @Router       /api/auth/change-password [put]
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) *common.AppError {
	identity, appErr := currentIdentity(r)
	if appErr != nil {
		return appErr
	}

	var req model.ChangePasswordRequest
	if err := common.ValidateAndDecode(r, &req); err != nil {
		return err
	}

	if err := h.service.ChangePassword(r.Context(), identity.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		return toAppError(err)
	}

	common.WriteJSON(w, http.StatusOK, "Password changed successfully", nil)
	return nil
}

// Logout godoc
// @Summary      Log out
// @Description  Revokes the stored refresh token. Issued access tokens stay valid until they expire.
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  common.AppError "Unauthorized"
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) *common.AppError {
	identity, appErr := currentIdentity(r)
	if appErr != nil {
		return appErr
	}

	if err := h.service.Logout(r.Context(), identity.UserID); err != nil {
		return toAppError(err)
	}

	common.WriteJSON(w, http.StatusOK, "Logged out successfully", nil)
	return nil
}
