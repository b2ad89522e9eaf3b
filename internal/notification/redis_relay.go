package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const publishTimeout = 2 * time.Second

// envelope is the message exchanged between instances over Redis
type envelope struct {
	Room  string          `json:"room"`
	Frame json.RawMessage `json:"frame"`
}

// RedisRelay is a Sink that fans events out to every instance through a Redis
// channel. Each instance runs the relay's subscriber, which hands frames to
// its local Hub.
type RedisRelay struct {
	client  *redis.Client
	channel string
	hub     *Hub
	log     *zap.Logger
}

func NewRedisRelay(client *redis.Client, channel string, hub *Hub, log *zap.Logger) *RedisRelay {
	return &RedisRelay{client: client, channel: channel, hub: hub, log: log}
}

func (r *RedisRelay) NotifyUser(userID uint, event string, payload any) {
	r.publish(UserRoom(userID), event, payload)
}

func (r *RedisRelay) NotifyTopic(topic string, event string, payload any) {
	r.publish(topic, event, payload)
}

func (r *RedisRelay) publish(room, event string, payload any) {
	frame, err := json.Marshal(Frame{Event: event, Data: payload, Timestamp: time.Now().UTC()})
	if err != nil {
		r.log.Error("Failed to marshal notification", zap.String("event", event), zap.Error(err))
		return
	}
	msg, err := json.Marshal(envelope{Room: room, Frame: frame})
	if err != nil {
		r.log.Error("Failed to marshal relay envelope", zap.Error(err))
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := r.client.Publish(ctx, r.channel, msg).Err(); err != nil {
			r.log.Warn("Redis publish failed, delivering locally",
				zap.String("room", room),
				zap.String("event", event),
				zap.Error(err),
			)
			r.hub.Deliver(room, frame)
		}
	}()
}

// Run forwards relayed frames to the local hub until ctx is cancelled
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	r.log.Info("Notification relay subscribed", zap.String("channel", r.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.forward(msg.Payload)
		}
	}
}

func (r *RedisRelay) forward(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.log.Warn("Discarding malformed relay message", zap.Error(err))
		return
	}
	r.hub.Deliver(env.Room, env.Frame)
}
