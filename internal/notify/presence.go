package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const presenceTTL = 2 * time.Hour

// Presence tracks which users hold open sockets, shared across instances
// through redis sets keyed by user.
type Presence struct {
	client *redis.Client
}

func NewPresence(client *redis.Client) *Presence {
	return &Presence{client: client}
}

func presenceKey(userID string) string {
	return fmt.Sprintf("presence:%s", userID)
}

func (p *Presence) Connect(ctx context.Context, userID, socketID string) error {
	key := presenceKey(userID)
	pipe := p.client.Pipeline()
	pipe.SAdd(ctx, key, socketID)
	pipe.Expire(ctx, key, presenceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record presence: %w", err)
	}
	return nil
}

func (p *Presence) Disconnect(ctx context.Context, userID, socketID string) error {
	if err := p.client.SRem(ctx, presenceKey(userID), socketID).Err(); err != nil {
		return fmt.Errorf("failed to clear presence: %w", err)
	}
	return nil
}

// IsConnected reports whether the user has any socket on any instance.
func (p *Presence) IsConnected(ctx context.Context, userID string) (bool, error) {
	n, err := p.client.SCard(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check presence: %w", err)
	}
	return n > 0, nil
}
