package gojob

import (
	"context"
	"errors"
	"strconv"
	"time"

	jobredis "github.com/goliatone/go-job/queue/adapters/redis"
	goredis "github.com/redis/go-redis/v9"
)

// NewRedisQueue builds a go-job queue on a go-redis client. The returned
// adapter is both the Enqueuer handed to EnqueueRefresh and the Dequeuer
// handed to NewRefreshWorker.
func NewRedisQueue(client goredis.UniversalClient, opts ...jobredis.Option) *jobredis.Adapter {
	return jobredis.NewAdapter(jobredis.NewStorage(&redisClient{client: client}, opts...))
}

// redisClient satisfies the go-job storage client. Missing keys read as zero
// values, matching what the storage expects from a nil reply.
type redisClient struct {
	client goredis.UniversalClient
}

func (c *redisClient) HSet(ctx context.Context, key string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	return c.client.HSet(ctx, key, values).Err()
}

func (c *redisClient) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return c.client.HGetAll(ctx, key).Result()
}

func (c *redisClient) HGet(ctx context.Context, key, field string) (string, error) {
	value, err := c.client.HGet(ctx, key, field).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	return value, err
}

func (c *redisClient) HDel(ctx context.Context, key string, fields ...string) error {
	return c.client.HDel(ctx, key, fields...).Err()
}

func (c *redisClient) LPush(ctx context.Context, key string, values ...string) error {
	args := make([]any, len(values))
	for i, value := range values {
		args[i] = value
	}
	return c.client.LPush(ctx, key, args...).Err()
}

func (c *redisClient) RPop(ctx context.Context, key string) (string, error) {
	value, err := c.client.RPop(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	return value, err
}

func (c *redisClient) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return c.client.ZAdd(ctx, key, goredis.Z{Score: score, Member: member}).Err()
}

func (c *redisClient) ZRem(ctx context.Context, key string, members ...string) error {
	args := make([]any, len(members))
	for i, member := range members {
		args[i] = member
	}
	return c.client.ZRem(ctx, key, args...).Err()
}

func (c *redisClient) ZRangeByScore(ctx context.Context, key string, max float64, limit int64) ([]jobredis.ZItem, error) {
	items, err := c.client.ZRangeByScoreWithScores(ctx, key, &goredis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatFloat(max, 'f', -1, 64),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]jobredis.ZItem, 0, len(items))
	for _, item := range items {
		member, _ := item.Member.(string)
		out = append(out, jobredis.ZItem{Member: member, Score: item.Score})
	}
	return out, nil
}

func (c *redisClient) Eval(ctx context.Context, script string, keys []string, args ...any) (any, error) {
	result, err := c.client.Eval(ctx, script, keys, args...).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	return result, err
}

func (c *redisClient) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Expire(ctx, key, ttl).Err()
}

func (c *redisClient) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

var _ jobredis.Client = (*redisClient)(nil)
