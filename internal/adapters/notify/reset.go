// Package notify delivers password-reset notifications. The log notifier is
// the default delivery channel for deployments without an outbound mail
// relay; operators forward the log stream to their paging or mail pipeline.
package notify

import (
	"context"
	"log/slog"

	"github.com/caregrid/caregrid/internal/ports"
)

// LogResetNotifier writes reset tokens to the structured log.
type LogResetNotifier struct {
	logger *slog.Logger
}

var _ ports.ResetNotifier = (*LogResetNotifier)(nil)

// NewLogResetNotifier constructs a LogResetNotifier.
func NewLogResetNotifier(logger *slog.Logger) *LogResetNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogResetNotifier{logger: logger.With("component", "reset-notifier")}
}

// SendReset records the reset delivery. The token is logged rather than the
// full link so log consumers decide how to present it.
func (n *LogResetNotifier) SendReset(ctx context.Context, email, resetToken string) error {
	n.logger.InfoContext(ctx, "password reset requested", "email", email, "token", resetToken)
	return nil
}
