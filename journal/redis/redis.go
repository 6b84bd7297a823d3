package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/SystemSolution21/adk-mcp/journal"
)

// Journal is a Redis Streams-based implementation of journal.Journal. Entries
// are appended with XADD to a stream capped at MaxLen.
type Journal struct {
	client redis.UniversalClient
	key    string
	maxLen int64
}

var _ journal.Journal = (*Journal)(nil)

// Config contains configuration options for the Redis journal.
type Config struct {
	// Client is the Redis client to use. If nil, a default client will be created.
	Client redis.UniversalClient
	// Key is the stream key. Defaults to "adk-mcp:journal".
	Key string
	// MaxLen caps the stream length (approximate trimming). Zero means 10000.
	MaxLen int64
}

// New creates a new Redis-backed journal.
func New(config Config) *Journal {
	client := config.Client
	if client == nil {
		client = redis.NewClient(&redis.Options{
			Addr: "localhost:6379",
		})
	}

	key := config.Key
	if key == "" {
		key = "adk-mcp:journal"
	}

	maxLen := config.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}

	return &Journal{client: client, key: key, maxLen: maxLen}
}

// Close closes the Redis connection.
func (j *Journal) Close() error {
	return j.client.Close()
}

// Record implements journal.Journal.
func (j *Journal) Record(ctx context.Context, e journal.Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}

	err = j.client.XAdd(ctx, &redis.XAddArgs{
		Stream: j.key,
		MaxLen: j.maxLen,
		Approx: true,
		Values: map[string]any{
			"tool": e.Tool,
			"data": data,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append to stream %s: %w", j.key, err)
	}
	return nil
}

// Recent implements journal.Journal.
func (j *Journal) Recent(ctx context.Context, n int) ([]journal.Entry, error) {
	var (
		msgs []redis.XMessage
		err  error
	)
	if n > 0 {
		msgs, err = j.client.XRevRangeN(ctx, j.key, "+", "-", int64(n)).Result()
	} else {
		msgs, err = j.client.XRevRange(ctx, j.key, "+", "-").Result()
	}
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read stream %s: %w", j.key, err)
	}

	out := make([]journal.Entry, 0, len(msgs))
	for _, m := range msgs {
		data, ok := m.Values["data"].(string)
		if !ok {
			continue
		}
		var e journal.Entry
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Reset deletes the stream.
func (j *Journal) Reset(ctx context.Context) error {
	if err := j.client.Del(ctx, j.key).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to delete stream %s: %w", j.key, err)
	}
	return nil
}
