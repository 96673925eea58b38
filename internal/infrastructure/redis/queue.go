package redis

import (
	"context"
	"encoding/json"
	"time"

	"flowtrack/internal/domain"

	"github.com/redis/go-redis/v9"
)

// CompletionQueue hands finished-instance events to the anomaly worker
// through a redis list, so detection survives process restarts and can be
// drained by any number of workers.
type CompletionQueue struct {
	client    *redis.Client
	queueName string
}

func NewCompletionQueue(client *redis.Client) *CompletionQueue {
	return &CompletionQueue{
		client:    client,
		queueName: "workflow:queue:completed",
	}
}

// Push appends the event to the end of the list.
func (q *CompletionQueue) Push(ctx context.Context, event domain.InstanceCompletedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, q.queueName, payload).Err()
}

// Pop blocks until an event is available or ctx is cancelled.
func (q *CompletionQueue) Pop(ctx context.Context) (domain.InstanceCompletedEvent, error) {
	var event domain.InstanceCompletedEvent

	// 0 means "Wait forever until an item appears"
	result, err := q.client.BLPop(ctx, 0*time.Second, q.queueName).Result()
	if err != nil {
		return event, err
	}

	// BLPop returns a slice: [QueueName, Element]
	if err := json.Unmarshal([]byte(result[1]), &event); err != nil {
		return event, err
	}
	return event, nil
}
