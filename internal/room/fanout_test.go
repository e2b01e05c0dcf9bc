package room

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFanoutForward(t *testing.T) {
	broker := NewBroker()
	m := NewManager(nil, broker, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), Options{})
	f := NewRedisFanout(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ch := broker.Subscribe("7-meadow")
	defer broker.Unsubscribe("7-meadow", ch)

	remote, err := json.Marshal(fanoutMessage{Origin: "other", Data: json.RawMessage(`{"seq":3}`)})
	require.NoError(t, err)
	own, err := json.Marshal(fanoutMessage{Origin: f.instance, Data: json.RawMessage(`{"seq":4}`)})
	require.NoError(t, err)

	f.forward(&redis.Message{Channel: channelPrefix + "7-meadow", Payload: string(own)}, m)
	f.forward(&redis.Message{Channel: channelPrefix + "7-meadow", Payload: "garbage"}, m)
	f.forward(&redis.Message{Channel: channelPrefix + "7-meadow", Payload: string(remote)}, m)

	require.Len(t, ch, 1)
	assert.JSONEq(t, `{"seq":3}`, string(<-ch))
}

func TestBrokerDropsForSlowSubscribers(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("r")
	for range 20 {
		b.Publish("r", []byte("x"))
	}
	assert.Len(t, ch, cap(ch))
	assert.Equal(t, 1, b.Subscribers("r"))

	b.Unsubscribe("r", ch)
	assert.Equal(t, 0, b.Subscribers("r"))
}
