package wallet

import (
	"context"
	"strings"

	xerrors "TaikoMCP-Chain/internal/errors"
	"TaikoMCP-Chain/internal/web3"
	"TaikoMCP-Chain/internal/web3/tokens"
)

// AssetKind 区分原生币与 ERC20 代币。
type AssetKind int

const (
	AssetNative AssetKind = iota
	AssetToken
)

// String 实现 fmt.Stringer。
func (k AssetKind) String() string {
	if k == AssetToken {
		return "token"
	}
	return "native"
}

// Asset 是解析后的资产。代币精度不在此缓存，每次调用时读取。
type Asset struct {
	Kind    AssetKind
	Symbol  string
	Address ResolvedAddress
}

// IsNative 判断是否为原生币。
func (a Asset) IsNative() bool {
	return a.Kind == AssetNative
}

// nullToken 是参数提取器在未识别到代币时输出的字面量。
const nullToken = "null"

// AssetResolver 将代币标识解析为资产。
type AssetResolver struct {
	tokens tokens.Lookup
}

// NewAssetResolver 构造资产解析器。
func NewAssetResolver(lookup tokens.Lookup) *AssetResolver {
	return &AssetResolver{tokens: lookup}
}

// Resolve 按以下顺序判定：空值、"null" 或原生币符号视为原生币；十六进制地址视为代币合约；
// 其余作为符号交给代币查询服务。
func (r *AssetResolver) Resolve(ctx context.Context, chain web3.ChainConfig, identifier string) (Asset, error) {
	id := strings.TrimSpace(identifier)
	if id == "" || id == nullToken || strings.EqualFold(id, chain.NativeSymbol) {
		return Asset{Kind: AssetNative, Symbol: chain.NativeSymbol}, nil
	}
	if web3.IsHexAddress(id) {
		return Asset{Kind: AssetToken, Symbol: id, Address: ResolvedAddress{hex: id}}, nil
	}
	if r == nil || r.tokens == nil {
		return Asset{}, xerrors.New(xerrors.CodeTokenNotFound, "", xerrors.WithMetadata("token", id))
	}

	token, err := r.tokens.FindToken(ctx, chain.ID, id)
	if err != nil {
		return Asset{}, xerrors.Wrap(xerrors.CodeTokenNotFound, err, "", xerrors.WithMetadata("token", id))
	}
	if token == nil || !web3.IsHexAddress(strings.TrimSpace(token.Address)) {
		return Asset{}, xerrors.New(xerrors.CodeTokenNotFound, "", xerrors.WithMetadata("token", id))
	}
	return Asset{Kind: AssetToken, Symbol: id, Address: ResolvedAddress{hex: strings.TrimSpace(token.Address)}}, nil
}
