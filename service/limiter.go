package service

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"
)

// pruneThreshold is the number of tracked addresses above which idle limiters are dropped.
const pruneThreshold = 10_000

// ChallengeLimiter enforces a minimum interval between challenges per address.
// A zero interval disables it.
type ChallengeLimiter struct {
	interval time.Duration

	mu       sync.Mutex
	limiters map[common.Address]*rate.Limiter
}

// NewChallengeLimiter creates a limiter allowing one challenge per interval and address
func NewChallengeLimiter(interval time.Duration) *ChallengeLimiter {
	return &ChallengeLimiter{
		interval: interval,
		limiters: make(map[common.Address]*rate.Limiter),
	}
}

// Allow reports whether address may be issued a challenge at now
func (l *ChallengeLimiter) Allow(address common.Address, now time.Time) bool {
	if l == nil || l.interval <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.limiters[address]
	if !exists {
		if len(l.limiters) >= pruneThreshold {
			l.prune(now)
		}
		limiter = rate.NewLimiter(rate.Every(l.interval), 1)
		l.limiters[address] = limiter
	}

	return limiter.AllowN(now, 1)
}

// prune drops limiters that have fully refilled; they carry no state.
func (l *ChallengeLimiter) prune(now time.Time) {
	for address, limiter := range l.limiters {
		if limiter.TokensAt(now) >= 1 {
			delete(l.limiters, address)
		}
	}
}

// Len returns the number of tracked addresses
func (l *ChallengeLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
