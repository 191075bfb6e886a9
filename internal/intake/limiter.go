package intake

import (
	"sync"

	"golang.org/x/time/rate"
)

// TenantLimiter is a per-tenant token bucket for job submissions.
type TenantLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

// NewTenantLimiter allows rps submissions per second per tenant with the
// given burst.
func NewTenantLimiter(rps float64, burst int) *TenantLimiter {
	if burst < 1 {
		burst = 1
	}
	return &TenantLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether tenantID may submit now, consuming one token.
func (l *TenantLimiter) Allow(tenantID string) bool {
	return l.limiter(tenantID).Allow()
}

func (l *TenantLimiter) limiter(tenantID string) *rate.Limiter {
	l.mu.RLock()
	lim, ok := l.limiters[tenantID]
	l.mu.RUnlock()
	if ok {
		return lim
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok = l.limiters[tenantID]; ok {
		return lim
	}
	lim = rate.NewLimiter(l.rate, l.burst)
	l.limiters[tenantID] = lim
	return lim
}
