package messagequeue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryQueue struct {
	published map[string][][]byte
}

func (q *memoryQueue) Publish(_ context.Context, queueName string, body []byte) error {
	if q.published == nil {
		q.published = make(map[string][][]byte)
	}
	q.published[queueName] = append(q.published[queueName], body)
	return nil
}

func (q *memoryQueue) Consume(ctx context.Context, queueName string, handler func([]byte) error) error {
	for _, body := range q.published[queueName] {
		if err := handler(body); err != nil {
			return err
		}
	}
	return nil
}

func (q *memoryQueue) Close() error { return nil }

func TestPublishJSON(t *testing.T) {
	q := &memoryQueue{}
	event := map[string]string{"recipientEmail": "ana@example.com", "type": "join"}
	require.NoError(t, PublishJSON(context.Background(), q, "trip-notifications", event))

	require.Len(t, q.published["trip-notifications"], 1)
	var got map[string]string
	require.NoError(t, json.Unmarshal(q.published["trip-notifications"][0], &got))
	assert.Equal(t, event, got)
}

func TestPublishJSON_EncodeError(t *testing.T) {
	q := &memoryQueue{}
	err := PublishJSON(context.Background(), q, "trip-notifications", map[string]interface{}{"bad": make(chan int)})
	assert.ErrorContains(t, err, "trip-notifications")
	assert.Empty(t, q.published)
}
