package server

import (
	"sync"
	"time"

	"github.com/jeremymiller99/lumberjacksim-sub000/internal/config"
)

// HandshakeLimiter tracks rejected hellos per IP and enforces lockouts with
// exponential backoff.
type HandshakeLimiter struct {
	mu          sync.Mutex
	attempts    map[string]*attemptInfo
	maxAttempts int
	lockout     time.Duration
	maxLockout  time.Duration
	now         func() time.Time
}

type attemptInfo struct {
	failedAttempts int
	lockedUntil    time.Time
	lockoutCount   int // Number of times locked out (for exponential backoff)
	lastFailure    time.Time
}

// staleAfter is how long an unlocked entry is kept after its last failure.
const staleAfter = 10 * time.Minute

// NewHandshakeLimiter creates a limiter with the given config.
func NewHandshakeLimiter(cfg config.RateLimitConfig) *HandshakeLimiter {
	rl := &HandshakeLimiter{
		attempts:    make(map[string]*attemptInfo),
		maxAttempts: cfg.MaxAttempts,
		lockout:     time.Duration(cfg.LockoutSeconds) * time.Second,
		maxLockout:  time.Duration(cfg.MaxLockoutSeconds) * time.Second,
		now:         time.Now,
	}

	if rl.maxAttempts <= 0 {
		rl.maxAttempts = 5
	}
	if rl.lockout <= 0 {
		rl.lockout = 30 * time.Second
	}
	if rl.maxLockout < rl.lockout {
		rl.maxLockout = rl.lockout
	}
	return rl
}

// IsLocked reports whether ip is locked out and for how much longer.
func (rl *HandshakeLimiter) IsLocked(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	info, exists := rl.attempts[ip]
	if !exists {
		return false, 0
	}
	if now := rl.now(); now.Before(info.lockedUntil) {
		return true, info.lockedUntil.Sub(now)
	}
	return false, 0
}

// RecordFailure records a rejected hello from ip. Returns true if the IP is
// now locked out, along with the lockout duration.
func (rl *HandshakeLimiter) RecordFailure(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	info, exists := rl.attempts[ip]
	if !exists {
		info = &attemptInfo{}
		rl.attempts[ip] = info
	}
	info.lastFailure = now

	if now.Before(info.lockedUntil) {
		return true, info.lockedUntil.Sub(now)
	}

	info.failedAttempts++
	if info.failedAttempts < rl.maxAttempts {
		return false, 0
	}

	info.lockoutCount++
	d := rl.lockout
	for i := 1; i < info.lockoutCount; i++ {
		// Check before multiplication to prevent overflow
		if d >= rl.maxLockout/2 {
			d = rl.maxLockout
			break
		}
		d *= 2
	}
	d = min(d, rl.maxLockout)

	info.lockedUntil = now.Add(d)
	info.failedAttempts = 0
	return true, d
}

// RecordSuccess clears the failure count for ip.
func (rl *HandshakeLimiter) RecordSuccess(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	delete(rl.attempts, ip)
}

// Attempts returns the current failed attempt count for an IP.
func (rl *HandshakeLimiter) Attempts(ip string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if info, exists := rl.attempts[ip]; exists {
		return info.failedAttempts
	}
	return 0
}

// Cleanup removes entries that are unlocked and have been quiet for a while.
// Returns the number removed.
func (rl *HandshakeLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-staleAfter)
	removed := 0
	for ip, info := range rl.attempts {
		if info.lockedUntil.Before(cutoff) && info.lastFailure.Before(cutoff) {
			delete(rl.attempts, ip)
			removed++
		}
	}
	return removed
}
