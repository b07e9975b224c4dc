package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const (
	CartUpdated = "updated"
	CartCleared = "cleared"
)

func CartChannel(userID string) string {
	return "cart:" + userID
}

// CartNotifier broadcasts cart changes on the per-user Redis channel.
type CartNotifier struct {
	client *redis.Client
}

func NewCartNotifier(client *redis.Client) *CartNotifier {
	return &CartNotifier{client: client}
}

func (n *CartNotifier) Publish(ctx context.Context, userID, event string) error {
	return n.client.Publish(ctx, CartChannel(userID), event).Err()
}

// Subscribe returns a subscription to the user's cart channel. Callers close it.
func (n *CartNotifier) Subscribe(ctx context.Context, userID string) *redis.PubSub {
	return n.client.Subscribe(ctx, CartChannel(userID))
}
