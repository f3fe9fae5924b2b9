package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const streamPrefix = "stream"

// StreamKey returns the namespaced key for an event stream.
func (c *Client) StreamKey(name string) string {
	return buildKey(streamPrefix, name)
}

// AppendStream adds one entry to the named stream, trimming it to roughly maxLen entries.
// It returns the id redis assigned to the entry.
func (c *Client) AppendStream(ctx context.Context, stream string, maxLen int64, values map[string]any) (string, error) {
	if c.store == nil {
		return "", errNotInitialized
	}
	args := &redis.XAddArgs{
		Stream: c.StreamKey(stream),
		Values: values,
	}
	if maxLen > 0 {
		args.MaxLen = maxLen
		args.Approx = true
	}
	return c.store.XAdd(ctx, args).Result()
}
