package service

import (
	"context"

	ctxutil "github.com/karmasystem/auth-service/pkg/context"
	"github.com/karmasystem/auth-service/pkg/logger"
)

// LogNotifier writes every notification to the structured log instead of
// delivering it. Deployments wire a real channel behind the Notifier
// interface; the auth flows do not change.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) SendEmailVerification(ctx context.Context, email, token string) {
	ctx = ctxutil.WithScope(ctx, "notifier", "SendEmailVerification")

	logger.InfoWithContext(ctx, "Email verification notification").
		String("email", email).
		Int("token_length", len(token)).
		Log()
}

func (n *LogNotifier) SendPasswordReset(ctx context.Context, email, token string) {
	ctx = ctxutil.WithScope(ctx, "notifier", "SendPasswordReset")

	logger.InfoWithContext(ctx, "Password reset notification").
		String("email", email).
		Int("token_length", len(token)).
		Log()
}

func (n *LogNotifier) SendSecurityAlert(ctx context.Context, email, message string) {
	ctx = ctxutil.WithScope(ctx, "notifier", "SendSecurityAlert")

	logger.WarnWithContext(ctx, "Security alert notification").
		String("email", email).
		String("alert", message).
		Log()
}
