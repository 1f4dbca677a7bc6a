package redisc

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const onlineSet = "livesync:online_users"

// Presence mirrors the hub's connected participants into redis so other
// instances and tools can read them.
type Presence struct {
	client *redis.Client
}

func NewPresence(client *redis.Client) *Presence {
	return &Presence{client: client}
}

func (p *Presence) SetOnline(ctx context.Context, userID string) error {
	pipe := p.client.Pipeline()
	pipe.SAdd(ctx, onlineSet, userID)
	pipe.Set(ctx, presenceKey(userID), time.Now().UTC().Format(time.RFC3339), 0)
	_, err := pipe.Exec(ctx)
	return err
}

func (p *Presence) SetOffline(ctx context.Context, userID string) error {
	pipe := p.client.Pipeline()
	pipe.SRem(ctx, onlineSet, userID)
	pipe.Del(ctx, presenceKey(userID))
	_, err := pipe.Exec(ctx)
	return err
}

func presenceKey(userID string) string { return "livesync:presence:" + userID }
