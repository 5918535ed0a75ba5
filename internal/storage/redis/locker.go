// Package redis provides a cart lock shared by every API replica.
package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
)

const (
	keyPrefix     = "cart:lock:"
	retryInterval = 20 * time.Millisecond
	unlockTimeout = time.Second
)

// unlockScript deletes the key only while it still holds our token, so an
// expired lock taken over by another holder is never released by us.
var unlockScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var _ cart.Locker = (*Locker)(nil)

// Locker implements cart.Locker with SET NX PX keys.
type Locker struct {
	client *goredis.Client
	ttl    time.Duration
	lg     *zap.Logger
}

// NewLocker returns a Locker whose keys expire after ttl if never released.
func NewLocker(client *goredis.Client, ttl time.Duration, lg *zap.Logger) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Locker{client: client, ttl: ttl, lg: lg}
}

// Lock blocks until key is acquired or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	rkey := keyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, rkey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("redis setnx %q: %w", rkey, err)
		}
		if ok {
			return sync.OnceFunc(func() { l.unlock(rkey, token) }), nil
		}

		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "wait for %q", rkey)
		case <-ticker.C:
		}
	}
}

func (l *Locker) unlock(rkey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
	defer cancel()

	if err := unlockScript.Run(ctx, l.client, []string{rkey}, token).Err(); err != nil {
		l.lg.Warn("Release cart lock", zap.String("key", rkey), zap.Error(err))
	}
}

// Ping reports whether the redis server is reachable.
func (l *Locker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
