package notify

import (
	"context"
	"dashboard-auth/logger"

	"github.com/sirupsen/logrus"
)

// LogNotifier writes reset messages to the log instead of delivering them.
// The token itself only appears at debug level.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) SendPasswordReset(_ context.Context, msg ResetMessage) error {
	entry := logger.Log.WithFields(logrus.Fields{
		"user_id":    msg.UserID,
		"expires_at": msg.ExpiresAt,
	})
	entry.Info("Password reset requested")
	entry.WithField("reset_url", msg.ResetURL).Debug("Password reset link")
	return nil
}
