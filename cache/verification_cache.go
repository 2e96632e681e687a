package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/NewtonMutugi/ict-innovations-africa-backend/providers"
	"github.com/redis/go-redis/v9"
)

// VerificationCache stores terminal gateway verifications by reference.
// Get returns (nil, nil) on a miss.
type VerificationCache interface {
	Get(ctx context.Context, reference string) (*providers.VerifyResult, error)
	Set(ctx context.Context, result *providers.VerifyResult) error
}

// RedisVerificationCache implements VerificationCache on Redis.
type RedisVerificationCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisVerificationCache(client *redis.Client, ttl time.Duration) *RedisVerificationCache {
	return &RedisVerificationCache{client: client, ttl: ttl}
}

// NewRedisClient parses the URL and pings the server.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func key(reference string) string {
	return "paystack:verify:" + reference
}

// cachedVerify carries the raw payload, which VerifyResult does not serialise.
type cachedVerify struct {
	providers.VerifyResult
	Raw json.RawMessage `json:"raw,omitempty"`
}

func encode(r *providers.VerifyResult) ([]byte, error) {
	return json.Marshal(cachedVerify{VerifyResult: *r, Raw: r.Raw})
}

func decode(data []byte) (*providers.VerifyResult, error) {
	var c cachedVerify
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	res := c.VerifyResult
	res.Raw = c.Raw
	return &res, nil
}

func (c *RedisVerificationCache) Get(ctx context.Context, reference string) (*providers.VerifyResult, error) {
	data, err := c.client.Get(ctx, key(reference)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decode(data)
}

func (c *RedisVerificationCache) Set(ctx context.Context, result *providers.VerifyResult) error {
	data, err := encode(result)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(result.Reference), data, c.ttl).Err()
}

// Noop never hits.
type Noop struct{}

func (Noop) Get(context.Context, string) (*providers.VerifyResult, error) { return nil, nil }
func (Noop) Set(context.Context, *providers.VerifyResult) error           { return nil }
