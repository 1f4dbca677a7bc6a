package redisc

import (
	"context"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

const chatChannel = "livesync:chat"

// Broker fans chat frames out across server instances. Every instance
// publishes the frames it originates and relays the frames of the others.
type Broker struct {
	client *redis.Client
	origin string
}

// NewBroker returns a broker that tags its frames with origin so the
// publishing instance can skip its own echoes.
func NewBroker(client *redis.Client, origin string) *Broker {
	return &Broker{client: client, origin: origin}
}

func (b *Broker) Publish(ctx context.Context, frame []byte) error {
	return b.client.Publish(ctx, chatChannel, b.origin+"|"+string(frame)).Err()
}

// Subscribe calls fn with every frame published by another instance until ctx
// is cancelled.
func (b *Broker) Subscribe(ctx context.Context, fn func(frame []byte)) error {
	pubsub := b.client.Subscribe(ctx, chatChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			origin, frame, found := cut(msg.Payload)
			if !found || origin == b.origin {
				continue
			}
			slog.Debug("pubsub frame", "origin", origin, "bytes", len(frame))
			fn([]byte(frame))
		}
	}
}

func cut(payload string) (origin, frame string, ok bool) {
	return strings.Cut(payload, "|")
}
