package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	redis "github.com/redis/go-redis/v9"

	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/infrastructure/push/port"
)

// changeChannelPrefix namespaces the pub/sub channels carrying row changes.
// One channel per table keeps subscription teardown independent per table.
const changeChannelPrefix = "changes:"

// RedisChannel implements port.Channel and port.Publisher over Redis pub/sub.
// Each Subscribe call holds its own PubSub so closing one logical channel
// never disturbs another.
type RedisChannel struct {
	client *redis.Client
	log    *slog.Logger
}

// NewRedisChannel wraps an existing go-redis client. The client's lifecycle
// belongs to the caller.
func NewRedisChannel(client *redis.Client, log *slog.Logger) *RedisChannel {
	if log == nil {
		log = slog.Default()
	}
	return &RedisChannel{client: client, log: log}
}

var _ port.Channel = (*RedisChannel)(nil)
var _ port.Publisher = (*RedisChannel)(nil)

// Publish sends the payload to the table's change channel.
func (c *RedisChannel) Publish(ctx context.Context, p port.Payload) error {
	if p.Table == "" {
		return errors.New("push: payload table is required")
	}
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("push: marshal payload: %w", err)
	}
	return c.client.Publish(ctx, changeChannelPrefix+p.Table, b).Err()
}

// Subscribe starts a listener on the table's change channel. The returned
// subscription keeps receiving until Close is called or ctx is canceled.
func (c *RedisChannel) Subscribe(ctx context.Context, name, table string, h port.Handler) (port.Subscription, error) {
	if table == "" {
		return nil, errors.New("push: table is required")
	}
	ps := c.client.Subscribe(ctx, changeChannelPrefix+table)
	// Force the subscribe round-trip so a nil return means we are live.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("push: subscribe %s: %w", table, err)
	}

	sub := &redisSubscription{name: name, ps: ps}
	go c.readLoop(name, ps, h)
	return sub, nil
}

func (c *RedisChannel) readLoop(name string, ps *redis.PubSub, h port.Handler) {
	for msg := range ps.Channel() {
		var p port.Payload
		if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
			c.log.Warn("push: dropping malformed payload", "channel", name, "err", err)
			continue
		}
		h(p)
	}
}

type redisSubscription struct {
	name string
	once sync.Once
	ps   *redis.PubSub
}

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() { err = s.ps.Close() })
	return err
}
