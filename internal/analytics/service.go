package analytics

import (
	"context"
	"log/slog"
	"strings"
	"time"

	xerrors "TaikoMCP-Chain/internal/errors"
	"TaikoMCP-Chain/internal/web3"
	"TaikoMCP-Chain/pkg/logger"
)

// HistoryFetcher 加载合约的索引交易历史，获取失败时必须返回错误而非空列表。
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, chain web3.ChainConfig, contract string) ([]TransactionRecord, error)
}

// Service 获取合约历史并进行汇总。
type Service struct {
	fetcher HistoryFetcher
	clock   func() time.Time
	logger  *slog.Logger
}

// Option 定义可选配置。
type Option func(*Service)

// WithClock 覆盖参考时间来源。
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService 构造分析服务。
func NewService(fetcher HistoryFetcher, opts ...Option) *Service {
	s := &Service{
		fetcher: fetcher,
		clock:   time.Now,
		logger:  logger.Named("analytics"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Analyze 汇总合约在指定链上最近 1、7、30 天的活跃度。
func (s *Service) Analyze(ctx context.Context, chain web3.ChainConfig, contract string) (Summary, error) {
	contract = strings.TrimSpace(contract)
	if !web3.IsHexAddress(contract) {
		return Summary{}, xerrors.New(xerrors.CodeInvalidArgument, "contract address must be a 0x-prefixed address",
			xerrors.WithMetadata("contract", contract))
	}
	if s.fetcher == nil {
		return Summary{}, xerrors.New(xerrors.CodeInitializationFailure, "history fetcher is not configured")
	}

	records, err := s.fetcher.FetchHistory(ctx, chain, contract)
	if err != nil {
		s.logger.Error("fetch transaction history failed",
			slog.String("chain", chain.Name),
			slog.String("contract", contract),
			logger.Err(err),
		)
		return Summary{}, xerrors.Wrap(xerrors.CodeHistoryFetchFailed, err, "")
	}

	ref := s.clock()
	summary := Aggregate(records, ref)
	s.logger.Debug("history aggregated",
		slog.String("chain", chain.Name),
		slog.String("contract", contract),
		slog.Int("records", len(records)),
		slog.Int("tx_30d", summary.TxCount.ThirtyDays),
	)
	return summary, nil
}
