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

type TwoFactorHandler struct {
	twoFactorService *service.TwoFactorService
}

func NewTwoFactorHandler(twoFactorService *service.TwoFactorService) *TwoFactorHandler {
	return &TwoFactorHandler{twoFactorService: twoFactorService}
}

// Setup starts two-factor enrollment. The secret and backup codes in the
// response are shown exactly once.
func (h *TwoFactorHandler) Setup(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), "handler", "Setup")

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, constants.BuildErrorResponse(constants.MsgUnauthorized, nil))
		return
	}

	setup, err := h.twoFactorService.Setup(ctx, userID)
	if err != nil {
		logger.WarnWithContext(ctx, "Two-factor setup failed").
			Err(err).
			Log()
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.TwoFactorSetupResponse{
		Secret:      setup.Secret,
		QRCodeURL:   setup.QRCodeURL,
		BackupCodes: setup.BackupCodes,
		Message:     "scan the QR code and confirm with a generated code to enable",
	})
}

// Enable confirms enrollment with a current TOTP code
func (h *TwoFactorHandler) Enable(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), "handler", "Enable")

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, constants.BuildErrorResponse(constants.MsgUnauthorized, nil))
		return
	}

	var req dto.TwoFactorEnableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse(constants.MsgBadRequest, validation.Translate(err)))
		return
	}

	if err := h.twoFactorService.Enable(ctx, userID, req.Code); err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse("two-factor authentication enabled"))
}

// Verify checks a code for an already-authenticated session, without
// changing any state. Lets clients validate a code before a sensitive
// operation.
func (h *TwoFactorHandler) Verify(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), "handler", "Verify")

	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, constants.BuildErrorResponse(constants.MsgUnauthorized, nil))
		return
	}

	var req dto.TwoFactorVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse(constants.MsgBadRequest, validation.Translate(err)))
		return
	}

	if err := h.twoFactorService.VerifyCode(ctx, user, req.Code); err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse("code verified"))
}

// Disable tears down two-factor authentication
func (h *TwoFactorHandler) Disable(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), "handler", "Disable")

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, constants.BuildErrorResponse(constants.MsgUnauthorized, nil))
		return
	}

	var req dto.TwoFactorDisableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse(constants.MsgBadRequest, validation.Translate(err)))
		return
	}

	if err := h.twoFactorService.Disable(ctx, userID, req.Password, req.Code); err != nil {
		logger.WarnWithContext(ctx, "Two-factor disable failed").
			Err(err).
			Log()
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse("two-factor authentication disabled"))
}

// RegenerateBackupCodes replaces the backup code set; all prior codes stop
// working
func (h *TwoFactorHandler) RegenerateBackupCodes(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), "handler", "RegenerateBackupCodes")

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, constants.BuildErrorResponse(constants.MsgUnauthorized, nil))
		return
	}

	codes, err := h.twoFactorService.RegenerateBackupCodes(ctx, userID)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.TwoFactorBackupCodesResponse{
		BackupCodes: codes,
		Message:     "previous backup codes are no longer valid",
	})
}

// Status reports the user's two-factor state
func (h *TwoFactorHandler) Status(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), "handler", "Status")

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, constants.BuildErrorResponse(constants.MsgUnauthorized, nil))
		return
	}

	status, err := h.twoFactorService.Status(ctx, userID)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.TwoFactorStatusResponse{
		Enabled:         status.Enabled,
		PendingSetup:    status.PendingSetup,
		BackupCodesLeft: status.BackupCodesLeft,
	})
}
