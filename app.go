// Package walletauth wires the wallet authentication service together.
//
// New builds every component from a config.Config: stores, event publisher,
// ledger client, balance aggregator, services and the HTTP router. Run serves
// the API until its context is cancelled.
package walletauth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/layer-3/walletauth/adapters/events"
	"github.com/layer-3/walletauth/adapters/ledger"
	"github.com/layer-3/walletauth/adapters/store"
	"github.com/layer-3/walletauth/adapters/tokenizer"
	"github.com/layer-3/walletauth/balance"
	"github.com/layer-3/walletauth/config"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/internal/eth"
	"github.com/layer-3/walletauth/internal/logger"
	"github.com/layer-3/walletauth/internal/metrics"
	"github.com/layer-3/walletauth/ports"
	"github.com/layer-3/walletauth/service"
	transport "github.com/layer-3/walletauth/transport/http"
)

// App is a fully wired service instance
type App struct {
	cfg     *config.Config
	log     *slog.Logger
	metrics *metrics.Metrics
	router  *gin.Engine

	Auth     *service.AuthService
	Balances *service.BalanceService

	redisClients map[string]redis.UniversalClient
	closers      []func() error
}

// Option overrides a component built from configuration.
type Option func(*options)

type options struct {
	log        *slog.Logger
	ledger     ports.Ledger
	signingKey *ecdsa.PrivateKey
	redis      redis.UniversalClient
	publisher  message.Publisher
}

// WithLogger replaces the logger built from cfg.Log.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithLedger replaces the JSON-RPC ledger client.
func WithLedger(l ports.Ledger) Option {
	return func(o *options) {
		o.ledger = l
	}
}

// WithSigningKey sets the credential signing key instead of reading auth.signing_key_file.
func WithSigningKey(key *ecdsa.PrivateKey) Option {
	return func(o *options) {
		o.signingKey = key
	}
}

// WithRedisClient shares an existing Redis client for stores and events.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *options) {
		o.redis = client
	}
}

// WithPublisher replaces the Watermill publisher built from cfg.Events.
func WithPublisher(pub message.Publisher) Option {
	return func(o *options) {
		o.publisher = pub
	}
}

// New builds an App from cfg
func New(ctx context.Context, cfg *config.Config, opts ...Option) (_ *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	log := o.log
	if log == nil {
		log = logger.New(cfg.Log.Level, cfg.Log.Format, nil)
	}

	app := &App{
		cfg:     cfg,
		log:     log,
		metrics: metrics.New(),

		redisClients: make(map[string]redis.UniversalClient),
	}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	signingKey := o.signingKey
	if signingKey == nil {
		signingKey, err = loadSigningKey(cfg.Auth.SigningKeyFile, log)
		if err != nil {
			return nil, err
		}
	}

	nonceStore, revocations, err := app.buildStores(o)
	if err != nil {
		return nil, err
	}

	eventPub, err := app.buildPublisher(o)
	if err != nil {
		return nil, err
	}

	l := o.ledger
	if l == nil {
		ethLedger, err := ledger.Dial(ctx, cfg.Ledger.URL)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() error {
			ethLedger.Close()
			return nil
		})
		l = ethLedger
	}

	registry, err := buildRegistry(cfg.Assets)
	if err != nil {
		return nil, err
	}

	aggregator := balance.NewAggregator(l, registry,
		balance.WithConfig(balance.Config{
			CallTimeout:    cfg.Ledger.Timeout,
			MaxRetries:     cfg.Ledger.Retries,
			InitialBackoff: cfg.Ledger.Backoff,
			MaxBackoff:     cfg.Ledger.MaxBackoff,
		}),
		balance.WithLogger(log.With("component", "balance")),
		balance.WithMetrics(app.metrics),
	)

	tok := tokenizer.NewJWTTokenizer(signingKey, tokenizer.WithIssuer(cfg.Auth.Issuer))
	sessions := service.NewSessionIssuer(tok, revocations, cfg.Auth.SessionTTL, nil)
	nonces := service.NewNonceManager(nonceStore, cfg.Auth.ChallengeTTL, nil)

	domain := eth.ChallengeDomain{
		Domain:  cfg.Auth.Domain,
		URI:     cfg.Auth.URI,
		ChainID: cfg.Auth.ChainID,
	}

	app.Auth = service.NewAuthService(nonces, sessions, eth.PersonalSignVerifier{}, domain,
		service.WithChallengeLimiter(service.NewChallengeLimiter(cfg.Auth.ChallengeInterval)),
		service.WithEventPublisher(eventPub),
		service.WithAuthLogger(log.With("component", "auth")),
		service.WithAuthMetrics(app.metrics),
	)
	app.Balances = service.NewBalanceService(sessions, aggregator)

	app.router = transport.SetupRouter(app.Auth, app.Balances,
		transport.WithLogger(log.With("component", "http")),
		transport.WithMetricsHandler(app.metrics.Handler()),
	)

	log.Info("walletauth initialized",
		"store", cfg.Store.Backend,
		"events", cfg.Events.Enabled,
		"assets", len(registry.Assets()),
		"domain", cfg.Auth.Domain,
	)

	return app, nil
}

// Handler returns the HTTP handler of the API
func (a *App) Handler() http.Handler {
	return a.router
}

// Metrics returns the metrics of the app
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// Run serves the API on cfg.HTTP.Addr until ctx is cancelled, then shuts down gracefully
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("http server listening", "addr", a.cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

// Close releases every connection held by the app, in reverse order of creation
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) buildStores(o *options) (ports.NonceStore, ports.RevocationStore, error) {
	switch a.cfg.Store.Backend {
	case config.BackendRedis:
		client, err := a.redisClient(o, a.cfg.Store.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return store.NewRedisNonceStore(client), store.NewRedisRevocationStore(client), nil
	default:
		return store.NewMemoryNonceStore(), store.NewMemoryRevocationStore(), nil
	}
}

func (a *App) buildPublisher(o *options) (ports.EventPublisher, error) {
	if o.publisher != nil {
		return events.NewWatermillPublisher(o.publisher), nil
	}
	if !a.cfg.Events.Enabled {
		return events.NopPublisher{}, nil
	}

	wmLogger := watermill.NewSlogLogger(a.log.With("component", "events"))

	var pub message.Publisher
	switch a.cfg.Events.Backend {
	case config.BackendRedis:
		client, err := a.redisClient(o, a.cfg.EventsRedisURL())
		if err != nil {
			return nil, err
		}
		pub, err = redisstream.NewPublisher(redisstream.PublisherConfig{Client: client}, wmLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis stream publisher: %w", err)
		}
	default:
		pub = gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
	}

	a.closers = append(a.closers, pub.Close)
	return events.NewWatermillPublisher(pub), nil
}

func (a *App) redisClient(o *options, rawURL string) (redis.UniversalClient, error) {
	if o.redis != nil {
		return o.redis, nil
	}

	if client, ok := a.redisClients[rawURL]; ok {
		return client, nil
	}

	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	a.closers = append(a.closers, client.Close)
	a.redisClients[rawURL] = client
	return client, nil
}

func buildRegistry(cfg config.AssetsConfig) (*balance.Registry, error) {
	tokens := make([]core.Asset, 0, len(cfg.Tokens))
	for _, t := range cfg.Tokens {
		contract, err := eth.ParseAddress(t.Contract)
		if err != nil {
			return nil, fmt.Errorf("token %s: %w", t.Symbol, err)
		}
		tokens = append(tokens, core.Asset{Symbol: t.Symbol, Contract: contract})
	}
	return balance.NewRegistry(cfg.Native, tokens)
}

// loadSigningKey reads a PEM encoded P-256 key, or generates an ephemeral one when path is empty.
func loadSigningKey(path string, log *slog.Logger) (*ecdsa.PrivateKey, error) {
	if path == "" {
		log.Warn("no signing key configured, generating an ephemeral key; sessions will not survive a restart")
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}
	return ParseSigningKey(raw)
}

// ParseSigningKey decodes a PEM encoded P-256 private key
func ParseSigningKey(pemBytes []byte) (*ecdsa.PrivateKey, error) {
	key, err := jwt.ParseECPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}
	if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("signing key must be on P-256, got %s", key.Curve.Params().Name)
	}
	return key, nil
}
