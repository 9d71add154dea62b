package wallet

import (
	"context"
	"log/slog"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	xerrors "TaikoMCP-Chain/internal/errors"
	"TaikoMCP-Chain/internal/web3/provider"
	"TaikoMCP-Chain/pkg/logger"
)

// BalanceRequest 描述一次余额查询。
type BalanceRequest struct {
	Chain   string `json:"chain"`
	Address string `json:"address"`
	Token   string `json:"token,omitempty"`
}

// Balance 是格式化后的余额。
type Balance struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

// BalanceResult 是余额查询结果。
type BalanceResult struct {
	Chain   string  `json:"chain"`
	Address string  `json:"address"`
	Balance Balance `json:"balance"`
}

// BalanceService 查询原生币或 ERC20 余额，结果不做缓存。
type BalanceService struct {
	registry  *provider.Registry
	addresses *AddressResolver
	assets    *AssetResolver
}

// NewBalanceService 构造余额查询服务，registry 应为当前会话独占。
func NewBalanceService(registry *provider.Registry, addresses *AddressResolver, assets *AssetResolver) *BalanceService {
	return &BalanceService{registry: registry, addresses: addresses, assets: assets}
}

// Query 查询余额。地址为空返回 MISSING_ADDRESS，其余失败统一包装为 BALANCE_QUERY_FAILED。
func (s *BalanceService) Query(ctx context.Context, req BalanceRequest) (*BalanceResult, error) {
	if strings.TrimSpace(req.Address) == "" {
		return nil, xerrors.New(xerrors.CodeMissingAddress, "")
	}

	requestID := uuid.NewString()
	result, err := s.query(ctx, req)
	if err != nil {
		wrapped := xerrors.Wrap(xerrors.CodeBalanceQueryFailed, err, "")
		logger.Audit().Warn("余额查询失败",
			slog.String("request_id", requestID),
			slog.String("chain", req.Chain),
			slog.String("address", req.Address),
			slog.String("token", req.Token),
			logger.Err(wrapped),
		)
		return nil, wrapped
	}
	logger.Audit().Info("余额查询完成",
		slog.String("request_id", requestID),
		slog.String("chain", result.Chain),
		slog.String("address", result.Address),
		slog.String("token", result.Balance.Token),
		slog.String("amount", result.Balance.Amount),
	)
	return result, nil
}

func (s *BalanceService) query(ctx context.Context, req BalanceRequest) (*BalanceResult, error) {
	target, err := s.addresses.Resolve(ctx, req.Address)
	if err != nil {
		return nil, err
	}
	chainName := strings.TrimSpace(req.Chain)
	if chainName == "" {
		return nil, xerrors.New(xerrors.CodeMissingChain, "")
	}
	chain, err := s.registry.Switch(chainName, "")
	if err != nil {
		return nil, err
	}
	asset, err := s.assets.Resolve(ctx, chain, req.Token)
	if err != nil {
		return nil, err
	}
	client, err := s.registry.Client(ctx, chain.Name)
	if err != nil {
		return nil, err
	}

	result := &BalanceResult{Chain: chain.Name, Address: target.String()}
	if asset.IsNative() {
		wei, err := client.NativeBalance(ctx, target.Common())
		if err != nil {
			return nil, err
		}
		result.Balance = Balance{Token: asset.Symbol, Amount: FormatUnits(wei, chain.NativeDecimals)}
		return result, nil
	}

	var (
		raw      *big.Int
		decimals uint8
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		raw, err = client.TokenBalance(gctx, asset.Address.Common(), target.Common())
		return err
	})
	g.Go(func() error {
		var err error
		decimals, err = client.TokenDecimals(gctx, asset.Address.Common())
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	result.Balance = Balance{Token: asset.Symbol, Amount: FormatUnits(raw, int32(decimals))}
	return result, nil
}
