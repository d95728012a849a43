package stats

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

type RedisStore struct {
	rdb *redis.Client

	prefix string
	// ttl applies to the per-day buckets only; totals never expire.
	ttl time.Duration
}

type RedisOption func(*RedisStore)

func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithTTL(d time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = d }
}

func NewRedisStore(rdb *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		rdb:    rdb,
		prefix: "waitlist:stats",
		ttl:    7 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) totalKey(eventID int64) string {
	return s.prefix + ":event:" + strconv.FormatInt(eventID, 10)
}

func (s *RedisStore) Record(ctx context.Context, ev Event) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.totalKey(ev.EventID), string(ev.Outcome), 1)

	dayKey := fmt.Sprintf("%s:day:%s", s.totalKey(ev.EventID), at.UTC().Format("20060102"))
	pipe.HIncrBy(ctx, dayKey, string(ev.Outcome), 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, dayKey, s.ttl)
	}

	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Counters(ctx context.Context, eventID int64) (map[Outcome]int64, error) {
	raw, err := s.rdb.HGetAll(ctx, s.totalKey(eventID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read counters: %w", err)
	}

	out := make(map[Outcome]int64, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad counter %s=%q: %w", k, v, err)
		}
		out[Outcome(k)] = n
	}
	return out, nil
}
