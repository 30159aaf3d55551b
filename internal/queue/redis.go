package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// scanBatch is the number of entries fetched per LRANGE while
// scanning or deduplicating.
const scanBatch = 1024

// RedisQueue is a DocumentQueue backed by a redis list. The list key
// is the queue name, so RENAME gives atomic queue swaps.
type RedisQueue struct {
	client *redis.Client
	name   string
}

var _ DocumentQueue = (*RedisQueue)(nil)

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// ErrEmptyAddress is returned when the redis address is not configured.
var ErrEmptyAddress = errors.New("redis address is required")

const connectionTimeout = 5 * time.Second

// NewRedisClient creates a redis client and verifies the connection.
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

func NewRedisQueue(client *redis.Client, name string) *RedisQueue {
	return &RedisQueue{client: client, name: name}
}

func (q *RedisQueue) Name() string {
	return q.name
}

func (q *RedisQueue) Size(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.name).Result()
}

func (q *RedisQueue) Offer(ctx context.Context, path string) error {
	return q.client.RPush(ctx, q.name, path).Err()
}

func (q *RedisQueue) Poll(ctx context.Context) (string, error) {
	path, err := q.client.LPop(ctx, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return path, err
}

func (q *RedisQueue) Scan(ctx context.Context, fn func(path string) error) error {
	for offset := int64(0); ; offset += scanBatch {
		entries, err := q.client.LRange(ctx, q.name, offset, offset+scanBatch-1).Result()
		if err != nil {
			return fmt.Errorf("scanning queue %s: %w", q.name, err)
		}
		for _, entry := range entries {
			if err := fn(entry); err != nil {
				return err
			}
		}
		if int64(len(entries)) < scanBatch {
			return nil
		}
	}
}

func (q *RedisQueue) RemoveDuplicatePaths(ctx context.Context) (int, error) {
	seen := make(map[string]struct{})
	deduped := make([]any, 0)
	removed := 0

	err := q.Scan(ctx, func(path string) error {
		if _, found := seen[path]; found {
			removed++
			return nil
		}
		seen[path] = struct{}{}
		deduped = append(deduped, path)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if removed == 0 {
		return 0, nil
	}

	// rebuild under a staging key and swap it in, so readers observe
	// either the full or the deduplicated queue, never a partial one
	staging := fmt.Sprintf("%s:dedup:%d", q.name, time.Now().UnixNano())
	pipe := q.client.TxPipeline()
	pipe.Del(ctx, staging)
	pipe.RPush(ctx, staging, deduped...)
	pipe.Rename(ctx, staging, q.name)
	if _, err := pipe.Exec(ctx); err != nil {
		q.client.Del(ctx, staging)
		return 0, fmt.Errorf("deduplicating queue %s: %w", q.name, err)
	}
	return removed, nil
}

func (q *RedisQueue) Delete(ctx context.Context) error {
	return q.client.Del(ctx, q.name).Err()
}

func (q *RedisQueue) Rename(ctx context.Context, name string) error {
	if err := q.client.Rename(ctx, q.name, name).Err(); err != nil {
		return fmt.Errorf("renaming queue %s to %s: %w", q.name, name, err)
	}
	q.name = name
	return nil
}

func (q *RedisQueue) Close() error {
	// the client is shared, nothing to release per queue
	return nil
}
