package room

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const channelPrefix = "buzzboard:room:"

// Sink receives snapshots relayed from other instances. Manager implements it.
type Sink interface {
	Deliver(room string, data []byte)
}

// RedisFanout relays snapshots between instances over Redis pub/sub so that
// any instance can serve a room's event streams. Messages published by this
// instance are not delivered back to it.
type RedisFanout struct {
	rdb      *redis.Client
	logger   *slog.Logger
	instance string
}

type fanoutMessage struct {
	Origin string          `json:"origin"`
	Data   json.RawMessage `json:"data"`
}

func NewRedisFanout(rdb *redis.Client, logger *slog.Logger) *RedisFanout {
	return &RedisFanout{
		rdb:      rdb,
		logger:   logger,
		instance: uuid.NewString(),
	}
}

// Publish implements Publisher.
func (f *RedisFanout) Publish(ctx context.Context, room string, data []byte) error {
	msg, err := json.Marshal(fanoutMessage{Origin: f.instance, Data: data})
	if err != nil {
		return fmt.Errorf("encoding fan-out message: %w", err)
	}
	if err := f.rdb.Publish(ctx, channelPrefix+room, msg).Err(); err != nil {
		return fmt.Errorf("publishing to redis: %w", err)
	}
	return nil
}

// Run forwards snapshots published by other instances to sink until ctx is
// done.
func (f *RedisFanout) Run(ctx context.Context, sink Sink) error {
	sub := f.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to redis: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			f.forward(m, sink)
		}
	}
}

func (f *RedisFanout) forward(m *redis.Message, sink Sink) {
	var msg fanoutMessage
	if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
		f.logger.Warn("dropping malformed fan-out message", "channel", m.Channel, "error", err)
		return
	}
	if msg.Origin == f.instance {
		return
	}
	sink.Deliver(strings.TrimPrefix(m.Channel, channelPrefix), msg.Data)
}
