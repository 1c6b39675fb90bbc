package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"echoflow/internal/utils"
)

const eventsChannel = "echoflow:events"

// Publish implements utils.Relay.
func (r *RedisProvider) Publish(ctx context.Context, event utils.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.Client.Publish(ctx, eventsChannel, data).Err()
}

// RelayEvents subscribes to the shared events channel and feeds every
// event published by any instance into bus until ctx is done. It returns
// once the subscription is confirmed by the server.
func (r *RedisProvider) RelayEvents(ctx context.Context, bus *utils.EventBus) error {
	pubsub := r.Client.Subscribe(ctx, eventsChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", eventsChannel, err)
	}
	r.logger.Infow("Redis event relay started", "channel", eventsChannel)

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event utils.Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					r.logger.Warnw("Dropping malformed relayed event", "error", err)
					continue
				}
				bus.Dispatch(event)
			}
		}
	}()

	return nil
}
