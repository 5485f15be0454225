package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ClientLimiter rate-limits per client key (usually the remote IP).
type ClientLimiter struct {
	mu   sync.Mutex
	m    map[string]*clientEntry
	r    rate.Limit
	b    int
	idle time.Duration
	now  func() time.Time
}

type clientEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewClientLimiter allows perMinute attempts per client with a burst of the
// same size. Clients idle for ten minutes are forgotten.
func NewClientLimiter(perMinute int) *ClientLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	return &ClientLimiter{
		m:    make(map[string]*clientEntry),
		r:    rate.Every(time.Minute / time.Duration(perMinute)),
		b:    perMinute,
		idle: 10 * time.Minute,
		now:  time.Now,
	}
}

// Allow reports whether key may make another attempt now.
func (cl *ClientLimiter) Allow(key string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	now := cl.now()
	cl.sweep(now)

	e, ok := cl.m[key]
	if !ok {
		e = &clientEntry{lim: rate.NewLimiter(cl.r, cl.b)}
		cl.m[key] = e
	}
	e.lastSeen = now
	return e.lim.AllowN(now, 1)
}

func (cl *ClientLimiter) sweep(now time.Time) {
	for k, e := range cl.m {
		if now.Sub(e.lastSeen) > cl.idle {
			delete(cl.m, k)
		}
	}
}
