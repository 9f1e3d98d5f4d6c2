package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/news-similarity/engine/pkg/logger"
)

// Client is an optional shared memo layer in front of the sqlite
// store, so multiple workers comparing overlapping article sets reuse
// each other's expensive encyclopedia work.
type Client struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(host string, port int, password string, db int, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// SetSimilarity caches an article-pair similarity. Ids are expected in
// canonical (id1 <= id2) order.
func (c *Client) SetSimilarity(ctx context.Context, id1, id2 int64, sim float64) error {
	err := c.client.Set(ctx, fmt.Sprintf("sim:%d:%d", id1, id2), sim, c.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set similarity cache: %w", err)
	}
	return nil
}

func (c *Client) GetSimilarity(ctx context.Context, id1, id2 int64) (float64, bool, error) {
	sim, err := c.client.Get(ctx, fmt.Sprintf("sim:%d:%d", id1, id2)).Float64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get similarity cache: %w", err)
	}

	logger.Debug("Similarity cache hit", zap.Int64("id1", id1), zap.Int64("id2", id2))
	return sim, true, nil
}

// SetEntityRefs caches a resolved entity's article id list, empty
// lists included.
func (c *Client) SetEntityRefs(ctx context.Context, name string, ids []int64) error {
	if ids == nil {
		ids = []int64{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal entity refs: %w", err)
	}

	err = c.client.Set(ctx, fmt.Sprintf("ne:%s", name), data, c.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set entity refs cache: %w", err)
	}
	return nil
}

func (c *Client) GetEntityRefs(ctx context.Context, name string) ([]int64, bool, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("ne:%s", name)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get entity refs cache: %w", err)
	}

	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal entity refs: %w", err)
	}

	logger.Debug("Entity refs cache hit", zap.String("name", name))
	return ids, true, nil
}
