package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/karmasystem/auth-service/internal/constants"
	"github.com/karmasystem/auth-service/internal/dto"
	apperrors "github.com/karmasystem/auth-service/internal/errors"
	"github.com/karmasystem/auth-service/internal/middleware"
	"github.com/karmasystem/auth-service/internal/service"
	ctxutil "github.com/karmasystem/auth-service/pkg/context"
	"github.com/karmasystem/auth-service/pkg/logger"
	"github.com/karmasystem/auth-service/pkg/validation"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func requestMeta(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader(constants.HeaderUserAgent),
	}
}

// writeAuthError maps a domain error onto the response, including the
// retry-after and step-up hints when the error carries them
func writeAuthError(c *gin.Context, err error) {
	status := apperrors.ToHTTPStatus(err)
	domainErr := apperrors.GetDomainError(err)

	message := constants.MsgInternalError
	details := any(nil)
	if domainErr != nil {
		message = domainErr.Message
		details = gin.H{"code": domainErr.Code}
		if domainErr.RetryAfter > 0 {
			seconds := int(domainErr.RetryAfter.Seconds()) + 1
			c.Header(constants.HeaderRetryAfter, strconv.Itoa(seconds))
		}
		if domainErr.Code == "TWO_FACTOR_REQUIRED" {
			c.Header(constants.HeaderX2FARequired, "true")
		}
	}

	c.JSON(status, constants.BuildErrorResponse(message, details))
}

func loginResponse(result *service.LoginResult) dto.LoginResponse {
	return dto.LoginResponse{
		AccessToken:   result.AccessToken,
		RefreshToken:  result.RefreshToken,
		TokenType:     constants.TokenTypeBearer,
		ExpiresIn:     int(result.ExpiresIn),
		Requires2FA:   result.Requires2FA,
		Is2FAVerified: result.Is2FAVerified,
		User:          dto.NewUserResponse(result.User),
	}
}

// Register creates a new account
func (h *AuthHandler) Register(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), "handler", "Register")

	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.WarnWithContext(ctx, "Invalid registration payload").
			Err(err).
			Log()
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse(constants.MsgBadRequest, validation.Translate(err)))
		return
	}

	logger.InfoWithContext(ctx, "Registration request").
		String("email", req.Email).
		Log()

	user, err := h.authService.Register(ctx, req.FirstName, req.LastName, req.Username, req.Email, req.Password)
	if err != nil {
		logger.WarnWithContext(ctx, "Registration failed").
			String("email", req.Email).
			Err(err).
			Log()
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewUserResponse(user))
}

// Login authenticates credentials and, depending on the account's 2FA
// state, returns either a full token pair or a step-up token
func (h *AuthHandler) Login(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), "handler", "Login")

	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.WarnWithContext(ctx, "Invalid login payload").
			Err(err).
			Log()
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse(constants.MsgBadRequest, validation.Translate(err)))
		return
	}

	result, err := h.authService.Login(ctx, req.Email, req.Password, req.Code, requestMeta(c))
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse(result))
}

// CompleteTwoFactor finishes a step-up login. Requires the step-up bearer
// token plus a TOTP or backup code.
func (h *AuthHandler) CompleteTwoFactor(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), "handler", "CompleteTwoFactor")

	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, constants.BuildErrorResponse(constants.MsgUnauthorized, nil))
		return
	}

	var req dto.TwoFactorLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse(constants.MsgBadRequest, validation.Translate(err)))
		return
	}

	result, err := h.authService.CompleteTwoFactor(ctx, claims, req.Code, requestMeta(c))
	if err != nil {
		logger.WarnWithContext(ctx, "Step-up completion failed").
			Err(err).
			Log()
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse(result))
}

// Refresh exchanges a refresh token for a fresh access token, rotating the
// refresh token when rotation is enabled
func (h *AuthHandler) Refresh(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), "handler", "Refresh")

	var req dto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse(constants.MsgBadRequest, validation.Translate(err)))
		return
	}

	result, err := h.authService.Refresh(ctx, req.RefreshToken, requestMeta(c))
	if err != nil {
		logger.WarnWithContext(ctx, "Refresh rejected").
			Err(err).
			Log()
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse(result))
}

// Logout revokes the presented access token and, when supplied, the refresh
// token and its family
func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), "handler", "Logout")

	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, constants.BuildErrorResponse(constants.MsgUnauthorized, nil))
		return
	}

	// Body is optional
	var req dto.LogoutRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.authService.Logout(ctx, claims, req.RefreshToken); err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse("logged out"))
}

// RequestPasswordReset issues a reset token. The response never reveals
// whether the address is registered.
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), "handler", "RequestPasswordReset")

	var req dto.PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse(constants.MsgBadRequest, validation.Translate(err)))
		return
	}

	h.authService.RequestPasswordReset(ctx, req.Email)

	c.JSON(http.StatusOK, constants.BuildSuccessResponse("if the address is registered, a reset link has been sent"))
}

// ConfirmPasswordReset redeems a reset token and installs a new password
func (h *AuthHandler) ConfirmPasswordReset(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), "handler", "ConfirmPasswordReset")

	var req dto.PasswordResetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse(constants.MsgBadRequest, validation.Translate(err)))
		return
	}

	if err := h.authService.ConfirmPasswordReset(ctx, req.Token, req.NewPassword, req.ConfirmPassword); err != nil {
		logger.WarnWithContext(ctx, "Password reset confirmation failed").
			Err(err).
			Log()
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse("password has been reset"))
}

// VerifyEmail redeems the email confirmation token from registration
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), "handler", "VerifyEmail")

	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse(constants.MsgBadRequest, gin.H{"token": "token query parameter is required"}))
		return
	}

	if err := h.authService.VerifyEmail(ctx, token); err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse("email verified"))
}
