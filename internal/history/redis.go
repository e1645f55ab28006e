package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 7 * 24 * time.Hour

type RedisRecorder struct {
	client *redis.Client // nil = no-op, used when Redis is not configured
	key    string        // list holding the JSON entries of one session
	ttl    time.Duration
}

// constructor for RedisRecorder; redisURL is either redis://host:port/db or a bare host:port
func NewRedisRecorder(redisURL, sessionID string) (*RedisRecorder, error) {
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	rdb := redis.NewClient(opts)

	// verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisRecorder{
		client: rdb,
		key:    SessionKey(sessionID),
		ttl:    DefaultTTL,
	}, nil
}

// SessionKey is the Redis list key for one session's moves
func SessionKey(sessionID string) string {
	return fmt.Sprintf("game:%s:moves", sessionID)
}

func parseRedisURL(redisURL string) (*redis.Options, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: redisURL}, nil
}

// Record appends the entry and refreshes the TTL of the whole list
func (r *RedisRecorder) Record(ctx context.Context, entry Entry) error {
	if r == nil || r.client == nil {
		return nil
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, r.key, data)
	pipe.Expire(ctx, r.key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record move: %w", err)
	}
	return nil
}

func (r *RedisRecorder) Entries(ctx context.Context) ([]Entry, error) {
	if r == nil || r.client == nil {
		return nil, nil
	}
	raw, err := r.client.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read moves: %w", err)
	}
	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var entry Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("corrupt move entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (r *RedisRecorder) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
