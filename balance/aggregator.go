// Package balance aggregates the native and token balances of an address.
//
// All assets are fetched concurrently. Every ledger call has its own timeout
// and transient failures are retried with exponential backoff. A failing
// token is reported per asset; only a failing native balance fails the whole
// aggregation.
package balance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/internal/eth"
	"github.com/layer-3/walletauth/internal/logger"
	"github.com/layer-3/walletauth/internal/metrics"
	"github.com/layer-3/walletauth/ports"
)

// Ledger method labels used in logs and metrics.
const (
	MethodNativeBalance = "native_balance"
	MethodDecimals      = "decimals"
	MethodBalanceOf     = "balance_of"
)

// Config tunes ledger calls made by the Aggregator.
type Config struct {
	CallTimeout    time.Duration // per attempt
	MaxRetries     int           // retries after the first attempt
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig returns the default call policy.
func DefaultConfig() Config {
	return Config{
		CallTimeout:    5 * time.Second,
		MaxRetries:     2,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
	}
}

// Aggregator fetches every registry asset for an address.
type Aggregator struct {
	ledger   ports.Ledger
	registry *Registry
	decimals *DecimalsCache
	cfg      Config
	log      *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithConfig overrides the call policy.
func WithConfig(cfg Config) Option {
	return func(a *Aggregator) {
		a.cfg = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *Aggregator) {
		a.log = log
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) {
		a.metrics = m
	}
}

// WithDecimalsCache shares a decimals cache between aggregators.
func WithDecimalsCache(cache *DecimalsCache) Option {
	return func(a *Aggregator) {
		a.decimals = cache
	}
}

// NewAggregator creates an Aggregator over ledger for the assets of registry.
func NewAggregator(ledger ports.Ledger, registry *Registry, opts ...Option) *Aggregator {
	a := &Aggregator{
		ledger:   ledger,
		registry: registry,
		decimals: NewDecimalsCache(),
		cfg:      DefaultConfig(),
		log:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type fetchResult struct {
	record core.BalanceRecord
	err    error
}

// FetchAll returns the balance of every registry asset for address.
// The result is ErrAggregationFailed only when the native balance cannot be
// fetched; token failures appear in Balances.Errors wrapping ErrBalanceUnavailable.
func (a *Aggregator) FetchAll(ctx context.Context, address common.Address) (*core.Balances, error) {
	start := time.Now()
	defer func() {
		a.metrics.BalanceFetch(time.Since(start))
	}()

	assets := a.registry.Assets()
	results := make([]fetchResult, len(assets))

	var g errgroup.Group
	for i, asset := range assets {
		g.Go(func() error {
			var (
				record core.BalanceRecord
				err    error
			)
			if asset.Native {
				record, err = a.fetchNative(ctx, asset, address)
			} else {
				record, err = a.fetchToken(ctx, asset, address)
			}
			results[i] = fetchResult{record: record, err: err}
			return nil
		})
	}
	_ = g.Wait()

	balances := &core.Balances{
		Address: address,
		Records: make(map[string]core.BalanceRecord, len(assets)),
		Errors:  make(map[string]error),
	}

	for i, asset := range assets {
		res := results[i]
		if res.err == nil {
			balances.Records[asset.Symbol] = res.record
			continue
		}

		if asset.Native {
			a.log.Error("native balance unavailable", "address", address.Hex(), "error", res.err)
			return nil, fmt.Errorf("%w: %s: %w", core.ErrAggregationFailed, asset.Symbol, res.err)
		}

		a.log.Warn("token balance unavailable", "address", address.Hex(), "symbol", asset.Symbol, "error", res.err)
		balances.Errors[asset.Symbol] = fmt.Errorf("%w: %s: %w", core.ErrBalanceUnavailable, asset.Symbol, res.err)
	}

	return balances, nil
}

func (a *Aggregator) fetchNative(ctx context.Context, asset core.Asset, address common.Address) (core.BalanceRecord, error) {
	var raw *big.Int
	err := a.call(ctx, MethodNativeBalance, func(ctx context.Context) error {
		bal, err := a.ledger.NativeBalance(ctx, address)
		if err != nil {
			return err
		}
		raw = bal
		return nil
	})
	if err != nil {
		return core.BalanceRecord{}, err
	}

	return NewRecord(asset.Symbol, raw, core.NativeDecimals), nil
}

func (a *Aggregator) fetchToken(ctx context.Context, asset core.Asset, address common.Address) (core.BalanceRecord, error) {
	decimals, err := a.decimals.Get(ctx, asset.Contract, func(ctx context.Context) (uint8, error) {
		return a.lookupDecimals(ctx, asset.Contract)
	})
	if err != nil {
		return core.BalanceRecord{}, fmt.Errorf("decimals: %w", err)
	}

	input, err := eth.PackBalanceOf(address)
	if err != nil {
		return core.BalanceRecord{}, err
	}

	var raw *big.Int
	err = a.call(ctx, MethodBalanceOf, func(ctx context.Context) error {
		output, err := a.ledger.CallContract(ctx, asset.Contract, input)
		if err != nil {
			return err
		}
		bal, err := eth.UnpackBalanceOf(output)
		if err != nil {
			return fmt.Errorf("%w: %w", core.ErrLedgerRejected, err)
		}
		raw = bal
		return nil
	})
	if err != nil {
		return core.BalanceRecord{}, fmt.Errorf("balanceOf: %w", err)
	}

	return NewRecord(asset.Symbol, raw, decimals), nil
}

func (a *Aggregator) lookupDecimals(ctx context.Context, contract common.Address) (uint8, error) {
	var decimals uint8
	err := a.call(ctx, MethodDecimals, func(ctx context.Context) error {
		output, err := a.ledger.CallContract(ctx, contract, eth.PackDecimals())
		if err != nil {
			return err
		}
		d, err := eth.UnpackDecimals(output)
		if err != nil {
			return fmt.Errorf("%w: %w", core.ErrLedgerRejected, err)
		}
		decimals = d
		return nil
	})
	return decimals, err
}

// call runs fn with a per-attempt timeout, retrying transient failures.
func (a *Aggregator) call(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = a.cfg.InitialBackoff
	policy.MaxInterval = a.cfg.MaxBackoff
	policy.Multiplier = 2
	policy.MaxElapsedTime = 0

	retries := a.cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(retries)), ctx)

	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, a.cfg.CallTimeout)
		defer cancel()

		err := fn(callCtx)
		switch {
		case err == nil:
			a.metrics.LedgerCall(method, metrics.OutcomeOK)
			return nil
		case ctx.Err() != nil:
			a.metrics.LedgerCall(method, metrics.OutcomeCanceled)
			return backoff.Permanent(ctx.Err())
		case isTransient(err):
			a.metrics.LedgerCall(method, metrics.OutcomeTransient)
			return err
		default:
			a.metrics.LedgerCall(method, metrics.OutcomeRejected)
			return backoff.Permanent(err)
		}
	}

	notify := func(err error, wait time.Duration) {
		a.metrics.LedgerRetry(method)
		a.log.Debug("retrying ledger call", "method", method, "wait", wait, "error", err)
	}

	err := backoff.RetryNotify(operation, b, notify)
	if err != nil && !errors.Is(err, core.ErrUpstreamTimeout) && isTransient(err) && ctx.Err() == nil {
		// per-attempt timeouts surface as a deadline on the call context
		err = fmt.Errorf("%w: %w", core.ErrUpstreamTimeout, err)
	}
	return err
}

func isTransient(err error) bool {
	return errors.Is(err, core.ErrUpstreamTimeout) || errors.Is(err, context.DeadlineExceeded)
}
