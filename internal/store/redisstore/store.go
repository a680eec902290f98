package redisstore

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const nudgeChannel = "support_hub:feed_nudge"

// Store wraps the redis client used for feed nudges. A nudge tells every
// connected feed loop to poll the message store now instead of waiting out
// its tick; delivery semantics still come from the store's claim calls, so
// lost nudges only cost latency.
type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

// PublishNudge wakes all feed subscribers.
func (s *Store) PublishNudge(ctx context.Context) error {
	return s.rdb.Publish(ctx, nudgeChannel, "1").Err()
}

// SubscribeNudges returns a channel that receives one value per nudge and a
// cancel func releasing the subscription. The channel closes when ctx ends
// or cancel is called.
func (s *Store) SubscribeNudges(ctx context.Context) (<-chan struct{}, func()) {
	sub := s.rdb.Subscribe(ctx, nudgeChannel)
	out := make(chan struct{}, 1)

	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
					// a poll is already pending
				}
			}
		}
	}()

	cancel := func() { _ = sub.Close() }
	return out, cancel
}
