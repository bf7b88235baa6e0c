// file: notify/notifier.go

package notify

import (
	"context"
	"time"
)

// ResetMessage is what the mailer needs to deliver a password reset.
type ResetMessage struct {
	UserID     string    `json:"user_id"`
	Identifier string    `json:"identifier"`
	Token      string    `json:"token"`
	ResetURL   string    `json:"reset_url,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Notifier hands reset tokens to whatever delivers them to the user.
type Notifier interface {
	SendPasswordReset(ctx context.Context, msg ResetMessage) error
}
