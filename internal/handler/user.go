package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/karmasystem/auth-service/internal/constants"
	"github.com/karmasystem/auth-service/internal/dto"
	"github.com/karmasystem/auth-service/internal/middleware"
	"github.com/karmasystem/auth-service/internal/service"
	ctxutil "github.com/karmasystem/auth-service/pkg/context"
	"github.com/karmasystem/auth-service/pkg/logger"
	"github.com/karmasystem/auth-service/pkg/validation"
)

type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GetProfile returns the authenticated user's profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), "handler", "GetProfile")

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, constants.BuildErrorResponse(constants.MsgUnauthorized, nil))
		return
	}

	user, err := h.userService.GetProfile(ctx, userID)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewUserResponse(user))
}

// UpdateProfile updates mutable profile fields
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), "handler", "UpdateProfile")

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, constants.BuildErrorResponse(constants.MsgUnauthorized, nil))
		return
	}

	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.WarnWithContext(ctx, "Invalid profile payload").
			Err(err).
			Log()
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse(constants.MsgBadRequest, validation.Translate(err)))
		return
	}

	user, err := h.userService.UpdateProfile(ctx, userID, req.FirstName, req.LastName, req.Username)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewUserResponse(user))
}

// ChangePassword installs a new password after re-verifying the current one
func (h *UserHandler) ChangePassword(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), "handler", "ChangePassword")

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, constants.BuildErrorResponse(constants.MsgUnauthorized, nil))
		return
	}

	var req dto.UpdatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse(constants.MsgBadRequest, validation.Translate(err)))
		return
	}

	if err := h.userService.ChangePassword(ctx, userID, req.CurrentPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		logger.WarnWithContext(ctx, "Password change failed").
			Err(err).
			Log()
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse("password updated"))
}

// ListDevices returns the authenticated user's known devices
func (h *UserHandler) ListDevices(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), "handler", "ListDevices")

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, constants.BuildErrorResponse(constants.MsgUnauthorized, nil))
		return
	}

	devices, err := h.userService.ListDevices(ctx, userID)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": dto.NewDeviceResponseList(devices)})
}

// ListUsers is the admin-only paginated listing
func (h *UserHandler) ListUsers(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), "handler", "ListUsers")

	pagination := constants.ParsePaginationParams(c)

	logger.InfoWithContext(ctx, "List users request").
		Int("page", pagination.Page).
		Int("limit", pagination.Limit).
		String("search", pagination.Search).
		Log()

	users, total, err := h.userService.ListUsers(ctx, pagination.Limit, pagination.Offset, pagination.Search)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	pageTotal := int(total) / pagination.Limit
	if int(total)%pagination.Limit > 0 {
		pageTotal++
	}

	c.JSON(http.StatusOK, constants.BuildListResponse(total, pagination.Page, pageTotal, dto.NewUserResponseList(users)))
}
