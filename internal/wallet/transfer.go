package wallet

import (
	"context"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"

	xerrors "TaikoMCP-Chain/internal/errors"
	"TaikoMCP-Chain/internal/web3"
	"TaikoMCP-Chain/internal/web3/provider"
	"TaikoMCP-Chain/pkg/logger"
)

// TransferRequest 描述一次转账请求。Token 为空或 "null" 表示原生币；
// 代币转账时 Amount 为空表示转出发送方全部余额。
type TransferRequest struct {
	Chain     string `json:"chain"`
	Token     string `json:"token,omitempty"`
	Amount    string `json:"amount,omitempty"`
	ToAddress string `json:"to_address"`
	Data      string `json:"data,omitempty"`
}

// TransferResult 是已广播交易的摘要，TxHash 一定是有效哈希。
type TransferResult struct {
	Chain     string `json:"chain"`
	TxHash    string `json:"tx_hash"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Token     string `json:"token"`
	Data      string `json:"data,omitempty"`
}

// Transferer 负责校验、解析并派发转账。
type Transferer struct {
	registry  *provider.Registry
	addresses *AddressResolver
	assets    *AssetResolver
	logger    *slog.Logger
}

// NewTransferer 构造转账编排器，registry 应为当前会话独占。
func NewTransferer(registry *provider.Registry, addresses *AddressResolver, assets *AssetResolver) *Transferer {
	return &Transferer{
		registry:  registry,
		addresses: addresses,
		assets:    assets,
		logger:    logger.Named("wallet.transfer"),
	}
}

// Execute 执行转账。参数校验全部在网络调用之前完成；已带领域错误码的错误原样返回，
// 其余下游错误统一包装为 TRANSFER_FAILED。
func (t *Transferer) Execute(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	requestID := uuid.NewString()
	result, err := t.execute(ctx, req)
	if err != nil {
		err = transferError(err)
		logger.Audit().Warn("转账失败",
			slog.String("request_id", requestID),
			slog.String("chain", req.Chain),
			slog.String("to", req.ToAddress),
			slog.String("token", req.Token),
			slog.String("amount", req.Amount),
			slog.String("error_code", string(xerrors.CodeOf(err))),
			logger.Err(err),
		)
		return nil, err
	}
	logger.Audit().Info("转账已广播",
		slog.String("request_id", requestID),
		slog.String("chain", result.Chain),
		slog.String("to", result.Recipient),
		slog.String("token", result.Token),
		slog.String("amount", result.Amount),
		slog.String("tx_hash", result.TxHash),
	)
	return result, nil
}

func (t *Transferer) execute(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if strings.TrimSpace(req.ToAddress) == "" {
		return nil, xerrors.New(xerrors.CodeMissingRecipient, "")
	}
	chainName := strings.TrimSpace(req.Chain)
	if chainName == "" {
		return nil, xerrors.New(xerrors.CodeMissingChain, "")
	}
	amount := strings.TrimSpace(req.Amount)
	if amount != "" {
		if _, err := ParseAmount(amount); err != nil {
			return nil, err
		}
	}
	data, err := decodeCalldata(req.Data)
	if err != nil {
		return nil, err
	}

	recipient, err := t.addresses.Resolve(ctx, req.ToAddress)
	if err != nil {
		return nil, err
	}
	chain, err := t.registry.Switch(chainName, "")
	if err != nil {
		return nil, err
	}
	asset, err := t.assets.Resolve(ctx, chain, req.Token)
	if err != nil {
		return nil, err
	}
	if asset.IsNative() && amount == "" {
		return nil, xerrors.New(xerrors.CodeMissingAmount, "")
	}
	if !asset.IsNative() && len(data) > 0 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "calldata is only supported for native transfers",
			xerrors.WithMetadata("token", asset.Symbol))
	}

	client, err := t.registry.Client(ctx, chain.Name)
	if err != nil {
		return nil, err
	}

	result := &TransferResult{
		Chain:     chain.Name,
		Recipient: recipient.String(),
		Token:     asset.Symbol,
	}
	if len(data) > 0 {
		result.Data = hexutil.Encode(data)
	}

	var hash common.Hash
	if asset.IsNative() {
		hash, result.Amount, err = t.sendNative(ctx, client, chain, recipient, amount, data)
	} else {
		hash, result.Amount, err = t.sendToken(ctx, client, asset, recipient, amount)
	}
	if err != nil {
		return nil, err
	}

	if web3.IsPlaceholderHash(hash.Hex()) {
		return nil, xerrors.New(xerrors.CodeTransferNotConfirmed, "", xerrors.WithMetadata("tx_hash", hash.Hex()))
	}
	result.TxHash = hash.Hex()
	t.logger.Debug("transfer dispatched",
		slog.String("chain", result.Chain),
		slog.String("kind", asset.Kind.String()),
		slog.String("tx_hash", result.TxHash),
	)
	return result, nil
}

func (t *Transferer) sendNative(ctx context.Context, client web3.ChainClient, chain web3.ChainConfig, to ResolvedAddress, amount string, data []byte) (common.Hash, string, error) {
	value, err := ParseUnits(amount, chain.NativeDecimals)
	if err != nil {
		return common.Hash{}, "", err
	}
	hash, err := client.SendValue(ctx, to.Common(), value, data)
	if err != nil {
		return common.Hash{}, "", err
	}
	return hash, FormatUnits(value, chain.NativeDecimals), nil
}

func (t *Transferer) sendToken(ctx context.Context, client web3.ChainClient, asset Asset, to ResolvedAddress, amount string) (common.Hash, string, error) {
	token := asset.Address.Common()
	decimals, err := client.TokenDecimals(ctx, token)
	if err != nil {
		return common.Hash{}, "", err
	}

	var value *big.Int
	if amount != "" {
		value, err = ParseUnits(amount, int32(decimals))
		if err != nil {
			return common.Hash{}, "", err
		}
	} else {
		// 未指定金额时转出全部余额；读取与广播之间余额可能变化。
		sender, err := client.Sender()
		if err != nil {
			return common.Hash{}, "", err
		}
		value, err = client.TokenBalance(ctx, token, sender)
		if err != nil {
			return common.Hash{}, "", err
		}
	}

	hash, err := client.TransferToken(ctx, token, to.Common(), value)
	if err != nil {
		return common.Hash{}, "", err
	}
	return hash, FormatUnits(value, int32(decimals)), nil
}

func decodeCalldata(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "0x" {
		return nil, nil
	}
	data, err := hexutil.Decode(raw)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "invalid calldata")
	}
	return data, nil
}

func transferError(err error) error {
	if err == nil {
		return nil
	}
	if xerrors.CodeOf(err) != xerrors.CodeUnknown {
		return err
	}
	return xerrors.Wrap(xerrors.CodeTransferFailed, err, "")
}
