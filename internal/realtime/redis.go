package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "realtime:"

// Redis брокер поверх pub/sub, события видят все экземпляры сервиса
type Redis struct {
	client redis.UniversalClient
	logger *zap.Logger
}

var _ Broker = (*Redis)(nil)

func NewRedis(client redis.UniversalClient, logger *zap.Logger) *Redis {
	return &Redis{client: client, logger: logger}
}

func (r *Redis) Publish(ctx context.Context, room, event string, payload any) error {
	ev, err := encode(event, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, channelPrefix+room, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", room, err)
	}
	return nil
}

func (r *Redis) Subscribe(ctx context.Context, room string) (<-chan Event, func(), error) {
	ps := r.client.Subscribe(ctx, channelPrefix+room)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("subscribe to %s: %w", room, err)
	}

	out := make(chan Event, subscriberBuffer)
	done := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case msg, ok := <-ps.Channel():
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					r.logger.Warn("Malformed realtime message", zap.String("room", room), zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				default:
				}
			}
		}
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			close(done)
			_ = ps.Close()
		})
	}
	return out, unsubscribe, nil
}
