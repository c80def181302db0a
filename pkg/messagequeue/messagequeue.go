// Package messagequeue publishes and consumes notification events.
package messagequeue

import (
	"context"
	"encoding/json"
	"fmt"
)

// MessageQueue defines the interface for message queue services.
type MessageQueue interface {
	Publish(ctx context.Context, queueName string, body []byte) error
	// Consume delivers every message of queueName to handler until ctx is done.
	// A handler error rejects the message without requeueing it.
	Consume(ctx context.Context, queueName string, handler func(body []byte) error) error
	Close() error
}

// PublishJSON encodes v and publishes it to queueName.
func PublishJSON(ctx context.Context, mq MessageQueue, queueName string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode message for queue %s: %w", queueName, err)
	}
	return mq.Publish(ctx, queueName, body)
}
