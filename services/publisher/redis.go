package publisher

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/dealmungchi/marketcrawler/internal/record"
)

// RedisPublisher publishes records to a Redis stream
type RedisPublisher struct {
	client *redis.Client
	ctx    context.Context
	stream string
	maxLen int64
}

// NewRedisPublisher creates a new Redis publisher. The stream is trimmed
// to roughly maxLen entries on every add.
func NewRedisPublisher(ctx context.Context, addr string, db int, stream string, maxLen int) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	return &RedisPublisher{
		client: client,
		ctx:    ctx,
		stream: stream,
		maxLen: int64(maxLen),
	}
}

// Publish JSON-encodes the record and appends it to the stream
func (p *RedisPublisher) Publish(rec record.CanonicalRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return p.client.XAdd(p.ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"record": string(payload),
		},
	}).Err()
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
