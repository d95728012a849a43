package middleware

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wb-go/wbf/ginext"
	"golang.org/x/time/rate"

	"eventWaitlist/internal/dto"
)

// Limiters keeps one token bucket per caller key and forgets keys that stay
// idle longer than idleTTL.
type Limiters struct {
	mu           sync.Mutex
	entries      map[string]*limiterEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type LimiterOption func(*Limiters)

func WithIdleTTL(d time.Duration) LimiterOption {
	return func(l *Limiters) { l.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) LimiterOption {
	return func(l *Limiters) { l.cleanupEvery = d }
}

func NewLimiters(rps float64, burst int, opts ...LimiterOption) *Limiters {
	l := &Limiters{
		entries:      make(map[string]*limiterEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiters) get(key string) *rate.Limiter {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if ent, ok := l.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}
	lim := rate.NewLimiter(l.rps, l.burst)
	l.entries[key] = &limiterEntry{lim: lim, lastSeen: now}
	return lim
}

func (l *Limiters) Cleanup() {
	cutoff := time.Now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()

	for k, ent := range l.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(l.entries, k)
		}
	}
}

func (l *Limiters) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// StartJanitor removes idle keys until ctx is done.
func (l *Limiters) StartJanitor(ctx context.Context) {
	if l.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(l.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				l.Cleanup()
			}
		}
	}()
}

// RateLimit keys on the X-User-ID header and falls back to the client IP.
func RateLimit(l *Limiters) gin.HandlerFunc {
	return func(c *ginext.Context) {
		key := c.GetHeader("X-User-ID")
		if key == "" {
			key = "ip:" + c.ClientIP()
		}

		lim := l.get(key)
		r := lim.Reserve()
		if !r.OK() {
			dto.RateLimitedError(c)
			c.Abort()
			return
		}
		if d := r.Delay(); d > 0 {
			r.Cancel()
			c.Header("Retry-After", strconv.Itoa(int(d.Seconds())+1))
			dto.RateLimitedError(c)
			c.Abort()
			return
		}
		c.Next()
	}
}
