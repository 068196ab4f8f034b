package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyRecent  = "arena:recent"
	recentMax  = 100
	ttlRecords = 24 * time.Hour
)

// Redis keeps a capped list of recent finished games plus one JSON blob
// per game, both expiring after a day.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(redisURL string) (*Redis, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{rdb: rdb}, nil
}

func (r *Redis) Close() error {
	if r == nil || r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}

func (r *Redis) Record(ctx context.Context, rec *Record) error {
	if r == nil || r.rdb == nil || rec == nil {
		return nil
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, keyGame(rec.SessionID), raw, ttlRecords)
	pipe.LPush(ctx, keyRecent, rec.SessionID)
	pipe.LTrim(ctx, keyRecent, 0, recentMax-1)
	pipe.Expire(ctx, keyRecent, ttlRecords)
	_, err = pipe.Exec(ctx)
	return err
}

// Recent returns up to n most recent finished games, newest first.
func (r *Redis) Recent(ctx context.Context, n int) ([]*Record, error) {
	if n <= 0 || n > recentMax {
		n = recentMax
	}
	ids, err := r.rdb.LRange(ctx, keyRecent, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*Record, 0, len(ids))
	for _, id := range ids {
		raw, err := r.rdb.Get(ctx, keyGame(id)).Bytes()
		if err == redis.Nil {
			continue // expired blob, stale index entry
		}
		if err != nil {
			return nil, err
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, nil
}

func keyGame(id string) string { return "arena:game:" + strings.TrimSpace(id) }

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
