package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides.
// A double underscore separates levels: WALLETAUTH_AUTH__SESSION_TTL=1h sets auth.session_ttl.
const EnvPrefix = "WALLETAUTH_"

// Load reads the configuration with priority env > file > defaults.
// path may be empty. The result is validated.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(mapProvider(defaults()), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// envKey maps WALLETAUTH_LEDGER__MAX_BACKOFF to ledger.max_backoff.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "__", ".")
}

// defaults renders Default() as a nested map so that file values replace
// lists instead of merging into them.
func defaults() map[string]any {
	d := Default()

	tokens := make([]any, 0, len(d.Assets.Tokens))
	for _, t := range d.Assets.Tokens {
		tokens = append(tokens, map[string]any{"symbol": t.Symbol, "contract": t.Contract})
	}

	return map[string]any{
		"http": map[string]any{
			"addr":             d.HTTP.Addr,
			"shutdown_timeout": d.HTTP.ShutdownTimeout.String(),
		},
		"auth": map[string]any{
			"domain":             d.Auth.Domain,
			"uri":                d.Auth.URI,
			"chain_id":           d.Auth.ChainID,
			"issuer":             d.Auth.Issuer,
			"challenge_ttl":      d.Auth.ChallengeTTL.String(),
			"session_ttl":        d.Auth.SessionTTL.String(),
			"challenge_interval": d.Auth.ChallengeInterval.String(),
			"signing_key_file":   d.Auth.SigningKeyFile,
		},
		"store": map[string]any{
			"backend":   d.Store.Backend,
			"redis_url": d.Store.RedisURL,
		},
		"events": map[string]any{
			"enabled":   d.Events.Enabled,
			"backend":   d.Events.Backend,
			"redis_url": d.Events.RedisURL,
		},
		"ledger": map[string]any{
			"url":         d.Ledger.URL,
			"timeout":     d.Ledger.Timeout.String(),
			"retries":     d.Ledger.Retries,
			"backoff":     d.Ledger.Backoff.String(),
			"max_backoff": d.Ledger.MaxBackoff.String(),
		},
		"assets": map[string]any{
			"native": d.Assets.Native,
			"tokens": tokens,
		},
		"log": map[string]any{
			"level":  d.Log.Level,
			"format": d.Log.Format,
		},
	}
}

// mapProvider is a koanf provider over an in-memory map.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("map provider does not support ReadBytes")
}

func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}
