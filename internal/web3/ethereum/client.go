package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"TaikoMCP-Chain/internal/web3"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// ErrNoSigner 表示客户端未配置私钥，无法执行写操作。
var ErrNoSigner = errors.New("no signing key configured")

// Config 描述了构建 EVM 兼容客户端所需的信息。
type Config struct {
	Name       string
	RPCURL     string
	PrivateKey string
}

// Backend 是适配器依赖的 go-ethereum 客户端能力子集，
// *ethclient.Client 与模拟链客户端均满足该接口。
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg gethcore.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*coretypes.Header, error)
	EstimateGas(ctx context.Context, msg gethcore.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *coretypes.Transaction) error
}

// Client 为 EVM 兼容链实现 web3.ChainClient 接口。
type Client struct {
	name      string
	rpcClient *gethrpc.Client
	backend   Backend
	key       *ecdsa.PrivateKey
	from      common.Address

	mu      sync.Mutex
	chainID *big.Int
}

var _ web3.ChainClient = (*Client)(nil)

// NewClient 连接配置的 RPC 节点并返回可用的客户端。
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("rpc url is not configured")
	}
	key, err := parsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}

	c := newClient(cfg.Name, ethclient.NewClient(rpcClient), key)
	c.rpcClient = rpcClient
	return c, nil
}

// NewBackendClient 包装一个已连接的后端（例如测试中的模拟链），key 为空时返回只读客户端。
func NewBackendClient(name string, backend Backend, key *ecdsa.PrivateKey) *Client {
	return newClient(name, backend, key)
}

func newClient(name string, backend Backend, key *ecdsa.PrivateKey) *Client {
	c := &Client{name: name, backend: backend, key: key}
	if key != nil {
		c.from = crypto.PubkeyToAddress(key.PublicKey)
	}
	return c
}

func parsePrivateKey(raw string) (*ecdsa.PrivateKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimPrefix(raw, "0x"), "0X"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// Name 返回客户端对应的链名称。
func (c *Client) Name() string {
	return c.name
}

// Close 释放客户端持有的网络连接。
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rpcClient != nil {
		c.rpcClient.Close()
		c.rpcClient = nil
	}
}

// Sender 返回用于签名交易的地址。
func (c *Client) Sender() (common.Address, error) {
	if c.key == nil {
		return common.Address{}, ErrNoSigner
	}
	return c.from, nil
}

// ChainID 返回节点报告的链 ID，首次成功后缓存。
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	cached := c.chainID
	c.mu.Unlock()
	if cached != nil {
		return new(big.Int).Set(cached), nil
	}

	id, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}
	c.mu.Lock()
	c.chainID = new(big.Int).Set(id)
	c.mu.Unlock()
	return id, nil
}

// NativeBalance 返回账户最新的原生币余额（最小单位）。
func (c *Client) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	balance, err := c.backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, fmt.Errorf("get balance of %s: %w", account.Hex(), err)
	}
	return balance, nil
}

// TokenBalance 调用 ERC20 合约的 balanceOf(holder)。
func (c *Client) TokenBalance(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	out, err := c.call(ctx, token, "balanceOf", holder)
	if err != nil {
		return nil, err
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf returned %T", out[0])
	}
	return balance, nil
}

// TokenDecimals 调用 ERC20 合约的 decimals()。
func (c *Client) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	out, err := c.call(ctx, token, "decimals")
	if err != nil {
		return 0, err
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals returned %T", out[0])
	}
	return decimals, nil
}

// SendValue 签名并广播原生币转账，可附带 calldata。
func (c *Client) SendValue(ctx context.Context, to common.Address, value *big.Int, data []byte) (common.Hash, error) {
	if c.key == nil {
		return common.Hash{}, ErrNoSigner
	}
	msg := gethcore.CallMsg{From: c.from, To: &to, Value: value, Data: data}
	return c.send(ctx, msg)
}

// TransferToken 先基于最新状态模拟 ERC20 转账，模拟成功后再签名并广播。
func (c *Client) TransferToken(ctx context.Context, token, to common.Address, amount *big.Int) (common.Hash, error) {
	if c.key == nil {
		return common.Hash{}, ErrNoSigner
	}
	input, err := erc20ABI.Pack("transfer", to, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack transfer: %w", err)
	}
	msg := gethcore.CallMsg{From: c.from, To: &token, Data: input}

	out, err := c.backend.CallContract(ctx, msg, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("simulate transfer: %w", err)
	}
	// 非标准代币可能没有返回值，只有明确返回 false 才视为失败。
	if len(out) > 0 {
		res, err := erc20ABI.Unpack("transfer", out)
		if err != nil {
			return common.Hash{}, fmt.Errorf("decode transfer result: %w", err)
		}
		if ok, _ := res[0].(bool); !ok {
			return common.Hash{}, errors.New("simulate transfer: token returned false")
		}
	}
	return c.send(ctx, msg)
}

func (c *Client) call(ctx context.Context, contract common.Address, method string, args ...any) ([]any, error) {
	input, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := c.backend.CallContract(ctx, gethcore.CallMsg{To: &contract, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, contract.Hex(), err)
	}
	out, err := erc20ABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s from %s: %w", method, contract.Hex(), err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s on %s returned no data", method, contract.Hex())
	}
	return out, nil
}

func (c *Client) send(ctx context.Context, msg gethcore.CallMsg) (common.Hash, error) {
	chainID, err := c.ChainID(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	nonce, err := c.backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("get pending nonce: %w", err)
	}
	tip, err := c.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("suggest gas tip: %w", err)
	}
	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("get latest header: %w", err)
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}
	gas, err := c.backend.EstimateGas(ctx, msg)
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}

	tx := coretypes.NewTx(&coretypes.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        msg.To,
		Value:     msg.Value,
		Data:      msg.Data,
	})
	signed, err := coretypes.SignTx(tx, coretypes.LatestSignerForChainID(chainID), c.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}
	return signed.Hash(), nil
}
