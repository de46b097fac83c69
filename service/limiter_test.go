package service

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestChallengeLimiter(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	other := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	l := NewChallengeLimiter(30 * time.Second)

	assert.True(t, l.Allow(holder, now))
	assert.False(t, l.Allow(holder, now.Add(10*time.Second)))
	assert.True(t, l.Allow(other, now.Add(10*time.Second)))
	assert.True(t, l.Allow(holder, now.Add(30*time.Second)))
	assert.Equal(t, 2, l.Len())
}

func TestChallengeLimiter_Disabled(t *testing.T) {
	now := time.Now()

	var nilLimiter *ChallengeLimiter
	assert.True(t, nilLimiter.Allow(holder, now))

	l := NewChallengeLimiter(0)
	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow(holder, now))
	}
	assert.Zero(t, l.Len())
}

func TestChallengeLimiter_Prune(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	l := NewChallengeLimiter(time.Second)

	for i := 0; i < pruneThreshold; i++ {
		addr := common.BigToAddress(big.NewInt(int64(i + 1)))
		l.Allow(addr, now)
	}
	assert.Equal(t, pruneThreshold, l.Len())

	l.Allow(holder, now.Add(time.Minute))
	assert.Equal(t, 1, l.Len())
}
