package balance

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/singleflight"
)

// DecimalsCache remembers token decimals per contract. Entries never expire:
// decimals are immutable once a contract is deployed. Only successful lookups
// are stored, so a cancelled or failed lookup leaves the cache untouched.
type DecimalsCache struct {
	mu     sync.RWMutex
	values map[common.Address]uint8
	group  singleflight.Group
}

// NewDecimalsCache creates an empty cache
func NewDecimalsCache() *DecimalsCache {
	return &DecimalsCache{
		values: make(map[common.Address]uint8),
	}
}

// Get returns the cached decimals of contract, calling lookup on a miss.
// Concurrent misses for the same contract share one lookup. A shared lookup
// cut short by the context of the caller that started it is not reported to
// the other callers; they look the value up again on their own context.
func (c *DecimalsCache) Get(ctx context.Context, contract common.Address, lookup func(ctx context.Context) (uint8, error)) (uint8, error) {
	if v, ok := c.load(contract); ok {
		return v, nil
	}

	ch := c.group.DoChan(contract.Hex(), func() (interface{}, error) {
		if v, ok := c.load(contract); ok {
			return v, nil
		}
		v, err := lookup(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &abortedLookupError{err: err}
			}
			return nil, err
		}
		c.store(contract, v)
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err == nil {
			return res.Val.(uint8), nil
		}
		var aborted *abortedLookupError
		if errors.As(res.Err, &aborted) {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			return c.lookupDirect(ctx, contract, lookup)
		}
		return 0, res.Err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// abortedLookupError marks a lookup that ended because its own context did.
type abortedLookupError struct {
	err error
}

func (e *abortedLookupError) Error() string { return e.err.Error() }
func (e *abortedLookupError) Unwrap() error { return e.err }

func (c *DecimalsCache) lookupDirect(ctx context.Context, contract common.Address, lookup func(ctx context.Context) (uint8, error)) (uint8, error) {
	v, err := lookup(ctx)
	if err != nil {
		return 0, err
	}
	c.store(contract, v)
	return v, nil
}

// Len returns the number of cached contracts.
func (c *DecimalsCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}

func (c *DecimalsCache) load(contract common.Address) (uint8, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[contract]
	return v, ok
}

func (c *DecimalsCache) store(contract common.Address, v uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[contract] = v
}
