package api

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"slotbook/internal/config"
	"slotbook/internal/models"

	"golang.org/x/time/rate"
)

// rateLimiter keeps one token bucket per client address. Buckets idle for
// longer than idleTTL are dropped on the next sweep.
type rateLimiter struct {
	limiters sync.Map // map[string]*limiterEntry
	cfg      config.APIRateLimitConfig
	trusted  []netip.Prefix
	idleTTL  time.Duration
	now      func() time.Time

	sweepMu   sync.Mutex
	lastSweep time.Time
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen atomic.Int64
}

func newRateLimiter(cfg config.APIRateLimitConfig) *rateLimiter {
	idle := time.Duration(cfg.IdleTTLSeconds) * time.Second
	if idle <= 0 {
		idle = models.DefaultRateLimitIdleTTL
	}
	return &rateLimiter{
		cfg:     cfg,
		trusted: parseTrustedProxies(cfg.TrustedProxies),
		idleTTL: idle,
		now:     time.Now,
	}
}

func (l *rateLimiter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.cfg.RPS > 0 && !l.getLimiter(l.clientKey(r)).Allow() {
			writeMessage(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *rateLimiter) getLimiter(key string) *rate.Limiter {
	now := l.now()
	l.sweep(now)

	if v, ok := l.limiters.Load(key); ok {
		if e, ok := v.(*limiterEntry); ok {
			e.lastSeen.Store(now.UnixNano())
			return e.lim
		}
	}

	burst := l.cfg.Burst
	if burst <= 0 {
		burst = models.DefaultRateLimitBurst
	}

	e := &limiterEntry{lim: rate.NewLimiter(rate.Limit(l.cfg.RPS), burst)}
	e.lastSeen.Store(now.UnixNano())
	actual, loaded := l.limiters.LoadOrStore(key, e)
	if loaded {
		if actualEntry, ok := actual.(*limiterEntry); ok {
			actualEntry.lastSeen.Store(now.UnixNano())
			return actualEntry.lim
		}
	}
	return e.lim
}

// sweep drops idle buckets at most once per idleTTL.
func (l *rateLimiter) sweep(now time.Time) {
	l.sweepMu.Lock()
	if now.Sub(l.lastSweep) < l.idleTTL {
		l.sweepMu.Unlock()
		return
	}
	l.lastSweep = now
	l.sweepMu.Unlock()

	cutoff := now.Add(-l.idleTTL).UnixNano()
	l.limiters.Range(func(key, v any) bool {
		if e, ok := v.(*limiterEntry); ok && e.lastSeen.Load() < cutoff {
			l.limiters.Delete(key)
		}
		return true
	})
}

// clientKey is the peer address. X-Forwarded-For is honoured only when the
// peer is a trusted proxy, and then the rightmost untrusted hop wins.
func (l *rateLimiter) clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		host = r.RemoteAddr
	}
	if host == "" {
		return "unknown"
	}
	if !l.isTrusted(host) {
		return host
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if _, err := netip.ParseAddr(hop); err != nil {
			// мусор в заголовке: дальше цепочке верить нельзя
			break
		}
		if !l.isTrusted(hop) {
			return hop
		}
	}
	return host
}

func (l *rateLimiter) isTrusted(host string) bool {
	if len(l.trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range l.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// parseTrustedProxies accepts IPs and CIDRs; config validation rejects
// anything else, so bad entries are skipped here.
func parseTrustedProxies(raw []string) []netip.Prefix {
	res := make([]netip.Prefix, 0, len(raw))
	for _, s := range raw {
		if p, err := config.ParseTrustedProxy(s); err == nil {
			res = append(res, p)
		}
	}
	return res
}
