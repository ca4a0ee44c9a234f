package risk

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aussiebroadwan/assetflow/pkg/slogx"
	"github.com/redis/go-redis/v9"
)

const reputationKeyPrefix = "reputation:"

// CachedChecker memoises successful lookups in redis. Cache failures are
// logged and fall through to the wrapped checker; failed lookups are never
// cached.
type CachedChecker struct {
	Next  ReputationChecker
	Redis *redis.Client
	TTL   time.Duration
}

func (c *CachedChecker) key(ip string) string {
	return reputationKeyPrefix + ip
}

func (c *CachedChecker) Check(ctx context.Context, ip string) (Verdict, error) {
	log := slogx.FromContext(ctx)

	data, err := c.Redis.Get(ctx, c.key(ip)).Bytes()
	switch {
	case err == nil:
		var v Verdict
		if jerr := json.Unmarshal(data, &v); jerr == nil {
			return v, nil
		}
		log.Warn("discarding corrupt reputation cache entry", "ip", ip)
	case !errors.Is(err, redis.Nil):
		log.Warn("reputation cache read failed", "ip", ip, "err", err)
	}

	v, err := c.Next.Check(ctx, ip)
	if err != nil {
		return Verdict{}, err
	}

	encoded, err := json.Marshal(v)
	if err == nil {
		err = c.Redis.Set(ctx, c.key(ip), encoded, c.TTL).Err()
	}
	if err != nil {
		log.Warn("reputation cache write failed", "ip", ip, "err", err)
	}
	return v, nil
}
