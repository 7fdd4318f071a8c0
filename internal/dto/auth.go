package dto

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	// Optional TOTP or backup code, allows single-round-trip login for
	// clients that already know 2FA is enabled
	Code string `json:"code" binding:"omitempty,max=20"`
}

// LoginResponse covers both outcomes of a login attempt. When Requires2FA
// is set the access token is a step-up token scoped to the 2FA challenge
// endpoint and RefreshToken is empty.
type LoginResponse struct {
	AccessToken   string       `json:"access_token"`
	RefreshToken  string       `json:"refresh_token,omitempty"`
	TokenType     string       `json:"token_type"`
	ExpiresIn     int          `json:"expires_in"` // access token lifetime in seconds
	Requires2FA   bool         `json:"requires_2fa"`
	Is2FAVerified bool         `json:"is_2fa_verified"`
	User          UserResponse `json:"user"`
}

type TwoFactorLoginRequest struct {
	Code string `json:"code" binding:"required,max=20"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type LogoutRequest struct {
	// Optional: revoke the refresh token alongside the bearer access token
	RefreshToken string `json:"refresh_token" binding:"omitempty"`
}

type PasswordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type PasswordResetConfirmRequest struct {
	Token           string `json:"token" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=100,password_strength"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}
