// Package config defines the service configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/layer-3/walletauth/internal/eth"
)

// Backends
const (
	BackendMemory    = "memory"
	BackendRedis     = "redis"
	BackendGoChannel = "gochannel"
)

// Config is the root configuration.
type Config struct {
	HTTP   HTTPConfig   `koanf:"http"`
	Auth   AuthConfig   `koanf:"auth"`
	Store  StoreConfig  `koanf:"store"`
	Events EventsConfig `koanf:"events"`
	Ledger LedgerConfig `koanf:"ledger"`
	Assets AssetsConfig `koanf:"assets"`
	Log    LogConfig    `koanf:"log"`
}

type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// AuthConfig scopes challenges and sets credential lifetimes.
type AuthConfig struct {
	Domain  string `koanf:"domain"`
	URI     string `koanf:"uri"`
	ChainID int64  `koanf:"chain_id"`
	Issuer  string `koanf:"issuer"`

	ChallengeTTL time.Duration `koanf:"challenge_ttl"`
	SessionTTL   time.Duration `koanf:"session_ttl"`
	// ChallengeInterval is the minimum time between two challenges for one address; 0 disables the limit.
	ChallengeInterval time.Duration `koanf:"challenge_interval"`

	// SigningKeyFile holds a PEM encoded P-256 key. An ephemeral key is generated when empty.
	SigningKeyFile string `koanf:"signing_key_file"`
}

type StoreConfig struct {
	Backend  string `koanf:"backend"`
	RedisURL string `koanf:"redis_url"`
}

type EventsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Backend string `koanf:"backend"`
	// RedisURL defaults to store.redis_url.
	RedisURL string `koanf:"redis_url"`
}

type LedgerConfig struct {
	URL        string        `koanf:"url"`
	Timeout    time.Duration `koanf:"timeout"`
	Retries    int           `koanf:"retries"`
	Backoff    time.Duration `koanf:"backoff"`
	MaxBackoff time.Duration `koanf:"max_backoff"`
}

type AssetsConfig struct {
	Native string        `koanf:"native"`
	Tokens []TokenConfig `koanf:"tokens"`
}

type TokenConfig struct {
	Symbol   string `koanf:"symbol"`
	Contract string `koanf:"contract"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			Domain:       "localhost:8080",
			URI:          "http://localhost:8080",
			ChainID:      1,
			Issuer:       "walletauth",
			ChallengeTTL: 5 * time.Minute,
			SessionTTL:   24 * time.Hour,
		},
		Store: StoreConfig{
			Backend:  BackendMemory,
			RedisURL: "redis://localhost:6379/0",
		},
		Events: EventsConfig{
			Enabled: false,
			Backend: BackendGoChannel,
		},
		Ledger: LedgerConfig{
			URL:        "http://localhost:8545",
			Timeout:    5 * time.Second,
			Retries:    2,
			Backoff:    200 * time.Millisecond,
			MaxBackoff: 2 * time.Second,
		},
		Assets: AssetsConfig{
			Native: "ETH",
			Tokens: []TokenConfig{
				{Symbol: "USDT", Contract: "0xdAC17F958D2ee523a2206206994597C13D831ec7"},
				{Symbol: "USDC", Contract: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"},
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// EventsRedisURL returns the Redis URL used by the event publisher.
func (c *Config) EventsRedisURL() string {
	if c.Events.RedisURL != "" {
		return c.Events.RedisURL
	}
	return c.Store.RedisURL
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}

	if c.Auth.Domain == "" {
		errs = append(errs, errors.New("auth.domain is required"))
	}
	if _, err := url.Parse(c.Auth.URI); err != nil || c.Auth.URI == "" {
		errs = append(errs, fmt.Errorf("auth.uri is invalid: %q", c.Auth.URI))
	}
	if c.Auth.ChallengeTTL <= 0 {
		errs = append(errs, errors.New("auth.challenge_ttl must be positive"))
	}
	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, errors.New("auth.session_ttl must be positive"))
	}
	if c.Auth.ChallengeInterval < 0 {
		errs = append(errs, errors.New("auth.challenge_interval must not be negative"))
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Store.RedisURL == "" {
			errs = append(errs, errors.New("store.redis_url is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.backend %q", c.Store.Backend))
	}

	if c.Events.Enabled {
		switch c.Events.Backend {
		case BackendGoChannel:
		case BackendRedis:
			if c.EventsRedisURL() == "" {
				errs = append(errs, errors.New("events.redis_url is required for the redis backend"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown events.backend %q", c.Events.Backend))
		}
	}

	if c.Ledger.URL == "" {
		errs = append(errs, errors.New("ledger.url is required"))
	}
	if c.Ledger.Timeout <= 0 {
		errs = append(errs, errors.New("ledger.timeout must be positive"))
	}
	if c.Ledger.Retries < 0 {
		errs = append(errs, errors.New("ledger.retries must not be negative"))
	}

	errs = append(errs, c.Assets.validate()...)

	return errors.Join(errs...)
}

func (a AssetsConfig) validate() []error {
	var errs []error

	if a.Native == "" {
		errs = append(errs, errors.New("assets.native is required"))
	}

	seen := map[string]bool{strings.ToUpper(a.Native): true}
	for i, token := range a.Tokens {
		if token.Symbol == "" {
			errs = append(errs, fmt.Errorf("assets.tokens[%d].symbol is required", i))
			continue
		}
		if seen[strings.ToUpper(token.Symbol)] {
			errs = append(errs, fmt.Errorf("duplicate asset symbol %q", token.Symbol))
		}
		seen[strings.ToUpper(token.Symbol)] = true

		if _, err := eth.ParseAddress(token.Contract); err != nil {
			errs = append(errs, fmt.Errorf("assets.tokens[%d].contract: %w", i, err))
		}
	}

	return errs
}
