package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"cmdgate/internal/admission/models"
)

const (
	actorChannelPrefix = "cmdgate:notify:actor:"
	adminChannel       = "cmdgate:notify:admins"
)

// RedisPublisher delivers notifications over Redis pub/sub so frontends can
// subscribe from any instance. Fire-and-forget: delivery guarantees are out
// of scope.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Notify(ctx context.Context, n models.Notification) error {
	payload, err := json.Marshal(map[string]any{
		"type":    n.Type,
		"payload": n.Payload,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	channel := actorChannelPrefix + n.Target.ActorID.String()
	if n.Target.AllAdmins {
		channel = adminChannel
	}
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}
