package redis

import (
	"context"
	"encoding/json"

	"flowtrack/internal/domain"

	"github.com/redis/go-redis/v9"
)

// AlertBus broadcasts gap and anomaly alerts over redis Pub/Sub. Delivery
// is fire-and-forget; subscribers that are offline miss the alert.
type AlertBus struct {
	client  *redis.Client
	channel string
}

func NewAlertBus(client *redis.Client) *AlertBus {
	return &AlertBus{
		client:  client,
		channel: "workflow:alerts",
	}
}

// Notify publishes the alert to the network.
func (b *AlertBus) Notify(ctx context.Context, alert domain.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Subscribe opens a continuous alert stream for dashboards and bots.
func (b *AlertBus) Subscribe(ctx context.Context) (<-chan domain.Alert, error) {
	pubsub := b.client.Subscribe(ctx, b.channel)

	msgChan := make(chan domain.Alert)

	// Background goroutine forwards redis messages to our Go channel.
	go func() {
		defer close(msgChan)
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			default:
				msg, err := pubsub.ReceiveMessage(ctx)
				if err == nil {
					var alert domain.Alert
					if err := json.Unmarshal([]byte(msg.Payload), &alert); err == nil {
						msgChan <- alert
					}
				}
			}
		}
	}()

	return msgChan, nil
}
