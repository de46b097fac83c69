package balance

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/walletauth/core"
)

// Mainnet token contracts served by default.
var (
	USDTContract = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	USDCContract = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
)

// Registry is the fixed set of assets served for every address.
// It is immutable after construction and safe for concurrent use.
type Registry struct {
	assets   []core.Asset // native first
	bySymbol map[string]core.Asset
}

// NewRegistry builds a registry from the native symbol and token descriptors.
func NewRegistry(nativeSymbol string, tokens []core.Asset) (*Registry, error) {
	if nativeSymbol == "" {
		return nil, fmt.Errorf("native asset symbol is required")
	}

	r := &Registry{
		assets:   make([]core.Asset, 0, len(tokens)+1),
		bySymbol: make(map[string]core.Asset, len(tokens)+1),
	}

	native := core.Asset{Symbol: nativeSymbol, Native: true}
	r.assets = append(r.assets, native)
	r.bySymbol[native.Symbol] = native

	for _, token := range tokens {
		if token.Symbol == "" {
			return nil, fmt.Errorf("token %s has no symbol", token.Contract.Hex())
		}
		if token.Contract == (common.Address{}) {
			return nil, fmt.Errorf("token %s has no contract address", token.Symbol)
		}
		if _, exists := r.bySymbol[token.Symbol]; exists {
			return nil, fmt.Errorf("duplicate asset symbol %s", token.Symbol)
		}
		token.Native = false
		r.assets = append(r.assets, token)
		r.bySymbol[token.Symbol] = token
	}

	return r, nil
}

// DefaultRegistry serves ETH, USDT and USDC on Ethereum mainnet.
func DefaultRegistry() *Registry {
	r, err := NewRegistry("ETH", []core.Asset{
		{Symbol: "USDT", Contract: USDTContract},
		{Symbol: "USDC", Contract: USDCContract},
	})
	if err != nil {
		panic(err)
	}
	return r
}

// native returns the native asset descriptor.
func (r *Registry) native() core.Asset {
	return r.assets[0]
}

// Assets returns all assets, native first.
func (r *Registry) Assets() []core.Asset {
	out := make([]core.Asset, len(r.assets))
	copy(out, r.assets)
	return out
}

// lookup returns the asset registered under symbol.
func (r *Registry) lookup(symbol string) (core.Asset, bool) {
	asset, ok := r.bySymbol[symbol]
	return asset, ok
}
