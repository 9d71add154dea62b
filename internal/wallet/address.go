package wallet

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	xerrors "TaikoMCP-Chain/internal/errors"
	"TaikoMCP-Chain/internal/web3"
	"TaikoMCP-Chain/internal/web3/names"
)

// ResolvedAddress 是经过校验的 0x 地址，保留原始大小写。
type ResolvedAddress struct {
	hex string
}

// String 返回地址文本。
func (a ResolvedAddress) String() string {
	return a.hex
}

// Common 转换为 go-ethereum 地址类型。
func (a ResolvedAddress) Common() common.Address {
	return common.HexToAddress(a.hex)
}

// IsZero 判断是否为未初始化的地址。
func (a ResolvedAddress) IsZero() bool {
	return a.hex == ""
}

// AddressResolver 将地址或可读名称解析为规范地址。
type AddressResolver struct {
	names names.Resolver
}

// NewAddressResolver 构造地址解析器，names 为空时仅接受十六进制地址。
func NewAddressResolver(resolver names.Resolver) *AddressResolver {
	return &AddressResolver{names: resolver}
}

// Resolve 解析 identifier。十六进制地址原样返回，其余交给名称服务，每次调用都重新查询。
func (r *AddressResolver) Resolve(ctx context.Context, identifier string) (ResolvedAddress, error) {
	id := strings.TrimSpace(identifier)
	if id == "" {
		return ResolvedAddress{}, xerrors.New(xerrors.CodeEmptyIdentifier, "")
	}
	if web3.IsHexAddress(id) {
		return ResolvedAddress{hex: id}, nil
	}
	if r == nil || r.names == nil {
		return ResolvedAddress{}, xerrors.New(xerrors.CodeUnresolvedName, "", xerrors.WithMetadata("name", id))
	}

	addr, err := r.names.Lookup(ctx, id)
	if err != nil {
		return ResolvedAddress{}, xerrors.Wrap(xerrors.CodeUnresolvedName, err, "", xerrors.WithMetadata("name", id))
	}
	addr = strings.TrimSpace(addr)
	if addr == "" || !web3.IsHexAddress(addr) {
		return ResolvedAddress{}, xerrors.New(xerrors.CodeUnresolvedName, "", xerrors.WithMetadata("name", id))
	}
	return ResolvedAddress{hex: addr}, nil
}
