// Package notify queues customer notifications for the out-of-process dispatcher.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/petinel/payments-service/internal/application"
	"github.com/petinel/payments-service/internal/config"
	"github.com/redis/go-redis/v9"
)

const enqueueTimeout = 2 * time.Second

// RedisNotifier pushes notification payloads onto a Redis list. It is
// fire-and-forget: a dead Redis never fails or delays a payment transition,
// it only costs the customer an email.
type RedisNotifier struct {
	client *redis.Client
	queue  string
	logger *slog.Logger
}

func NewRedisNotifier(cfg config.RedisConfig, logger *slog.Logger) *RedisNotifier {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisNotifier{
		client: client,
		queue:  cfg.NotificationQueue,
		logger: logger,
	}
}

func (n *RedisNotifier) Enqueue(ctx context.Context, notification application.Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		n.logger.Error("failed to marshal notification",
			"order_id", notification.OrderID,
			"error", err)
		return err
	}

	// Detach from the request context so a cancelled caller doesn't drop the
	// notification, but still bound the call.
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()

	if err := n.client.LPush(pushCtx, n.queue, payload).Err(); err != nil {
		n.logger.Error("failed to enqueue notification",
			"order_id", notification.OrderID,
			"queue", n.queue,
			"error", err)
		return err
	}

	return nil
}

func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
