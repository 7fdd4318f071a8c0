package constants

// HTTP Header Names
const (
	HeaderContentType    = "Content-Type"
	HeaderAuthorization  = "Authorization"
	HeaderUserAgent      = "User-Agent"
	HeaderXRequestID     = "X-Request-ID"
	HeaderXForwardedFor  = "X-Forwarded-For"
	HeaderXRealIP        = "X-Real-IP"
	HeaderRetryAfter     = "Retry-After"
	HeaderWWWAuth        = "WWW-Authenticate"
	HeaderX2FARequired   = "X-2FA-Required"
	HeaderRateLimitLimit = "X-RateLimit-Limit"
	HeaderRateLimitLeft  = "X-RateLimit-Remaining"
	HeaderRateLimitReset = "X-RateLimit-Reset"
)

// Bearer token scheme
const (
	AuthSchemeBearer = "Bearer"
	TokenTypeBearer  = "bearer"
)

// Common HTTP Error Messages
const (
	MsgUnauthorized       = "Unauthorized"
	MsgForbidden          = "Access forbidden"
	MsgNotFound           = "Resource not found"
	MsgBadRequest         = "Invalid request"
	MsgInternalError      = "Internal server error"
	MsgServiceUnavailable = "Service temporarily unavailable"
	MsgConflict           = "Resource already exists"
	MsgTooManyRequests    = "Too many requests"
)

// HTTP Success Messages
const (
	MsgCreated = "Resource created successfully"
	MsgUpdated = "Resource updated successfully"
	MsgDeleted = "Resource deleted successfully"
	MsgSuccess = "Operation completed successfully"
)
