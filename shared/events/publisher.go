package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultMaxLen caps the stream length; older entries are trimmed approximately.
const defaultMaxLen = 100_000

type Publisher struct {
	client *redis.Client
	maxLen int64
}

// NewPublisher returns a Publisher writing to Redis streams. A nil client
// yields a Publisher whose Publish is a no-op.
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client, maxLen: defaultMaxLen}
}

func (p *Publisher) Publish(ctx context.Context, stream, eventType string, data any) error {
	if p == nil || p.client == nil {
		return nil
	}

	event := Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"event": eventJSON,
		},
	}

	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
