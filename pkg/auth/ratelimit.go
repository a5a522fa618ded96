package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter decides whether a caller may proceed.
type RateLimiter interface {
	Allow(ctx context.Context, id *Identity) error
}

// TierLimit is the allowance of one service tier. Zero disables limiting.
type TierLimit struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// Limiter keeps one token bucket per subject and tier. Buckets refill at
// the tier's per-minute rate and hold up to a minute's worth of requests.
type Limiter struct {
	tiers map[string]TierLimit
	def   TierLimit

	mu      sync.Mutex
	buckets map[string]*bucket
	idle    time.Duration
	now     func() time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewLimiter creates a Limiter. Tiers missing from tiers use def.
func NewLimiter(tiers map[string]TierLimit, def TierLimit) *Limiter {
	return &Limiter{
		tiers:   tiers,
		def:     def,
		buckets: make(map[string]*bucket),
		idle:    10 * time.Minute,
		now:     time.Now,
	}
}

// Allow takes a token from the caller's bucket.
func (l *Limiter) Allow(_ context.Context, id *Identity) error {
	tier := id.ServiceTier
	if tier == "" {
		tier = "default"
	}
	limit := l.def
	if tl, ok := l.tiers[tier]; ok {
		limit = tl
	}
	if limit.RequestsPerMinute <= 0 {
		return nil
	}

	key := tier + "|" + id.SessionKey()
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		perSecond := rate.Limit(float64(limit.RequestsPerMinute) / 60)
		b = &bucket{lim: rate.NewLimiter(perSecond, limit.RequestsPerMinute)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.sweep(now)
	l.mu.Unlock()

	if !b.lim.AllowN(now, 1) {
		return ErrTooManyRequests
	}
	return nil
}

// sweep drops buckets unused for longer than the idle window. Callers hold
// l.mu.
func (l *Limiter) sweep(now time.Time) {
	if len(l.buckets) < 1024 {
		return
	}
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idle {
			delete(l.buckets, k)
		}
	}
}
