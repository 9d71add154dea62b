package web3

import (
	"context"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Built-in chain names.
const (
	ChainTaiko      = "taiko"
	ChainTaikoHekla = "taikoHekla"
)

// ChainConfig describes a rollup network the agent can talk to.
type ChainConfig struct {
	Name           string `json:"name" yaml:"name"`
	ID             int64  `json:"id" yaml:"id"`
	DisplayName    string `json:"display_name" yaml:"display_name"`
	NativeSymbol   string `json:"native_symbol" yaml:"native_symbol"`
	NativeDecimals int32  `json:"native_decimals" yaml:"native_decimals"`
	DefaultRPCURL  string `json:"default_rpc_url" yaml:"default_rpc_url"`
	CustomRPCURL   string `json:"custom_rpc_url,omitempty" yaml:"custom_rpc_url,omitempty"`
	ExplorerURL    string `json:"explorer_url" yaml:"explorer_url"`
	IndexerSlug    string `json:"indexer_slug" yaml:"indexer_slug"`
}

// RPCURL returns the endpoint transactions and reads are sent to.
func (c ChainConfig) RPCURL() string {
	if custom := strings.TrimSpace(c.CustomRPCURL); custom != "" {
		return custom
	}
	return c.DefaultRPCURL
}

// TxURL links a transaction hash on the chain explorer.
func (c ChainConfig) TxURL(hash string) string {
	return strings.TrimRight(c.ExplorerURL, "/") + "/tx/" + hash
}

// BuiltinChains returns fresh copies of the chain templates shipped with the
// agent.
func BuiltinChains() map[string]ChainConfig {
	return map[string]ChainConfig{
		ChainTaiko: {
			Name:           ChainTaiko,
			ID:             167000,
			DisplayName:    "Taiko",
			NativeSymbol:   "ETH",
			NativeDecimals: 18,
			DefaultRPCURL:  "https://rpc.mainnet.taiko.xyz",
			ExplorerURL:    "https://taikoscan.io",
			IndexerSlug:    "taiko-mainnet",
		},
		ChainTaikoHekla: {
			Name:           ChainTaikoHekla,
			ID:             167009,
			DisplayName:    "Taiko Hekla",
			NativeSymbol:   "ETH",
			NativeDecimals: 18,
			DefaultRPCURL:  "https://rpc.hekla.taiko.xyz",
			ExplorerURL:    "https://hekla.taikoscan.network",
			IndexerSlug:    "taiko-hekla-testnet",
		},
	}
}

var hexAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// IsHexAddress reports whether s has the canonical 0x-prefixed 20-byte shape.
// Checksums are not verified.
func IsHexAddress(s string) bool {
	return hexAddressPattern.MatchString(s)
}

// IsPlaceholderHash reports whether a transaction hash is empty or a
// sentinel value that must never be surfaced as a successful result.
func IsPlaceholderHash(hash string) bool {
	h := strings.TrimSpace(hash)
	if h == "" || strings.EqualFold(h, "0x") {
		return true
	}
	return common.HexToHash(h) == (common.Hash{})
}

// ChainClient is the RPC surface the wallet services need from a chain.
// Write operations sign with the client's configured sender key.
type ChainClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	Sender() (common.Address, error)
	NativeBalance(ctx context.Context, account common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, token, holder common.Address) (*big.Int, error)
	TokenDecimals(ctx context.Context, token common.Address) (uint8, error)
	SendValue(ctx context.Context, to common.Address, value *big.Int, data []byte) (common.Hash, error)
	TransferToken(ctx context.Context, token, to common.Address, amount *big.Int) (common.Hash, error)
	Close()
}
