package fetch

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiter hands out a per-host token bucket, guarded by a mutex per
// spec §5 ("do not attempt to push this into the storage layer"). It also
// tracks exponential host-level backoff (starting at 2s, doubling to 60s)
// applied when a host signals 429 or sustained Transient failures.
type HostLimiter struct {
	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
	backoff     map[string]time.Duration
	backoffUntil map[string]time.Time
	perSecond   float64
}

const (
	minHostBackoff = 2 * time.Second
	maxHostBackoff = 60 * time.Second
)

// NewHostLimiter creates a limiter issuing perSecond tokens/sec per host.
func NewHostLimiter(perSecond float64) *HostLimiter {
	return &HostLimiter{
		limiters:     make(map[string]*rate.Limiter),
		backoff:      make(map[string]time.Duration),
		backoffUntil: make(map[string]time.Time),
		perSecond:    perSecond,
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Host
}

func (h *HostLimiter) limiterFor(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()

	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(h.perSecond), 1)
		h.limiters[host] = l
	}
	return l
}

// Wait blocks until a token for url's host is available, and until any
// active backoff window for that host has elapsed.
func (h *HostLimiter) Wait(ctx context.Context, rawURL string) error {
	host := hostOf(rawURL)

	h.mu.Lock()
	until, inBackoff := h.backoffUntil[host]
	h.mu.Unlock()
	if inBackoff {
		if d := time.Until(until); d > 0 {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	return h.limiterFor(host).Wait(ctx)
}

// RecordFailure doubles the host's backoff window (capped at
// maxHostBackoff), starting at minHostBackoff on the first failure.
func (h *HostLimiter) RecordFailure(rawURL string) {
	host := hostOf(rawURL)

	h.mu.Lock()
	defer h.mu.Unlock()

	cur := h.backoff[host]
	if cur == 0 {
		cur = minHostBackoff
	} else {
		cur *= 2
		if cur > maxHostBackoff {
			cur = maxHostBackoff
		}
	}
	h.backoff[host] = cur
	h.backoffUntil[host] = time.Now().Add(cur)
}

// RecordSuccess clears any accumulated backoff for the host.
func (h *HostLimiter) RecordSuccess(rawURL string) {
	host := hostOf(rawURL)

	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.backoff, host)
	delete(h.backoffUntil, host)
}
