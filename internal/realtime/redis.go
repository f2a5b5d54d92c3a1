package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultChannelPrefix = "coursework:project:"

// RedisPublisher fans events out over Redis Pub/Sub, one channel per project,
// so other API instances can push them to their own websocket clients.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// NewRedisPublisher creates a publisher on client. An empty prefix uses the default.
func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = defaultChannelPrefix
	}
	return &RedisPublisher{client: client, prefix: prefix}
}

// Channel returns the channel events of projectID are published on
func (p *RedisPublisher) Channel(projectID string) string {
	return p.prefix + projectID
}

// Publish implements Publisher
func (p *RedisPublisher) Publish(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(envelope{Event: evt, Recipients: evt.Recipients})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.client.Publish(ctx, p.Channel(evt.ProjectID), payload).Err(); err != nil {
		return fmt.Errorf("publish to redis: %w", err)
	}
	return nil
}

// Relay subscribes to every project channel and hands received events to the
// local hub. It blocks until ctx is cancelled.
func (p *RedisPublisher) Relay(ctx context.Context, hub *Hub) error {
	sub := p.client.PSubscribe(ctx, p.prefix+"*")
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			evt, err := decodeEnvelope([]byte(msg.Payload))
			if err != nil {
				continue
			}
			_ = hub.Publish(ctx, evt)
		}
	}
}

// envelope carries recipients across instances
type envelope struct {
	Event
	Recipients []string `json:"recipients"`
}

func decodeEnvelope(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	evt := env.Event
	evt.Recipients = env.Recipients
	return evt, nil
}
