// file: notify/redis_notifier.go

package notify

import (
	"context"
	"dashboard-auth/logger"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// IPublisher is the slice of the Redis client the notifier needs.
// Keeping it narrow lets tests swap in a miniredis-backed client.
type IPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotifier publishes reset messages as JSON on a channel read by the mailer.
type RedisNotifier struct {
	client  IPublisher
	channel string
}

func NewRedisNotifier(client IPublisher, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) SendPasswordReset(ctx context.Context, msg ResetMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding reset message: %w", err)
	}

	receivers, err := n.client.Publish(ctx, n.channel, payload).Result()
	if err != nil {
		logger.Log.WithError(err).WithField("channel", n.channel).Error("Failed to publish reset message")
		return fmt.Errorf("publishing reset message: %w", err)
	}
	if receivers == 0 {
		logger.Log.WithField("channel", n.channel).Warn("Reset message published with no subscriber listening")
	}
	return nil
}
