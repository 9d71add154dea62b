package ethereum

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
)

func TestClientSendValueOnSimulatedChain(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	from := crypto.PubkeyToAddress(key.PublicKey)
	funds, _ := new(big.Int).SetString("10000000000000000000", 10)

	backend := simulated.NewBackend(coretypes.GenesisAlloc{
		from: {Balance: funds},
	}, simulated.WithBlockGasLimit(8_000_000))
	t.Cleanup(func() { _ = backend.Close() })

	client := NewBackendClient("simulated", backend.Client(), key)
	t.Cleanup(client.Close)

	sender, err := client.Sender()
	if err != nil || sender != from {
		t.Fatalf("unexpected sender %s (%v)", sender.Hex(), err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		t.Fatalf("chain id: %v", err)
	}
	if chainID.Int64() != 1337 {
		t.Fatalf("unexpected chain id %s", chainID)
	}

	recipient := common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc454e4438f44e")
	value := big.NewInt(100_000_000_000_000_000) // 0.1 ETH
	hash, err := client.SendValue(ctx, recipient, value, nil)
	if err != nil {
		t.Fatalf("send value: %v", err)
	}
	if hash == (common.Hash{}) {
		t.Fatal("expected non-zero transaction hash")
	}
	backend.Commit()

	balance, err := client.NativeBalance(ctx, recipient)
	if err != nil {
		t.Fatalf("native balance: %v", err)
	}
	if balance.Cmp(value) != 0 {
		t.Fatalf("expected recipient balance %s, got %s", value, balance)
	}

	receipt, err := backend.Client().TransactionReceipt(ctx, hash)
	if err != nil {
		t.Fatalf("receipt: %v", err)
	}
	if receipt.Status != coretypes.ReceiptStatusSuccessful {
		t.Fatalf("unexpected receipt status %d", receipt.Status)
	}
}

func TestClientWithoutKeyIsReadOnly(t *testing.T) {
	t.Parallel()

	client := NewBackendClient("readonly", &fakeBackend{}, nil)
	if _, err := client.Sender(); !errors.Is(err, ErrNoSigner) {
		t.Fatalf("expected ErrNoSigner, got %v", err)
	}
	if _, err := client.SendValue(context.Background(), common.Address{}, big.NewInt(1), nil); !errors.Is(err, ErrNoSigner) {
		t.Fatalf("expected ErrNoSigner, got %v", err)
	}
	if _, err := client.TransferToken(context.Background(), common.Address{}, common.Address{}, big.NewInt(1)); !errors.Is(err, ErrNoSigner) {
		t.Fatalf("expected ErrNoSigner, got %v", err)
	}
}

func TestClientTokenReads(t *testing.T) {
	t.Parallel()

	token := common.HexToAddress("0x07d83526730c7438048D55A4fc0b850e2aaB6f0b")
	holder := common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc454e4438f44e")
	backend := &fakeBackend{decimals: 6, balance: big.NewInt(2_500_000)}
	client := NewBackendClient("fake", backend, nil)

	decimals, err := client.TokenDecimals(context.Background(), token)
	if err != nil {
		t.Fatalf("decimals: %v", err)
	}
	if decimals != 6 {
		t.Fatalf("expected 6 decimals, got %d", decimals)
	}

	balance, err := client.TokenBalance(context.Background(), token, holder)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(2_500_000)) != 0 {
		t.Fatalf("unexpected balance %s", balance)
	}
	if backend.lastHolder != holder {
		t.Fatalf("balanceOf called with %s", backend.lastHolder.Hex())
	}
}

func TestClientTransferTokenSimulatesThenSends(t *testing.T) {
	t.Parallel()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	token := common.HexToAddress("0x07d83526730c7438048D55A4fc0b850e2aaB6f0b")
	to := common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc454e4438f44e")
	backend := &fakeBackend{transferOK: true}
	client := NewBackendClient("fake", backend, key)

	hash, err := client.TransferToken(context.Background(), token, to, big.NewInt(42))
	if err != nil {
		t.Fatalf("transfer token: %v", err)
	}
	if backend.sent == nil {
		t.Fatal("expected a transaction to be broadcast")
	}
	if backend.sent.Hash() != hash {
		t.Fatalf("returned hash %s differs from sent %s", hash.Hex(), backend.sent.Hash().Hex())
	}
	if backend.sent.To() == nil || *backend.sent.To() != token {
		t.Fatalf("transaction must target the token contract, got %v", backend.sent.To())
	}
	if backend.sent.Type() != coretypes.DynamicFeeTxType {
		t.Fatalf("expected dynamic fee tx, got type %d", backend.sent.Type())
	}
	want, _ := erc20ABI.Pack("transfer", to, big.NewInt(42))
	if !bytes.Equal(backend.sent.Data(), want) {
		t.Fatalf("unexpected calldata %x", backend.sent.Data())
	}
	signer := coretypes.LatestSignerForChainID(big.NewInt(167009))
	from, err := coretypes.Sender(signer, backend.sent)
	if err != nil || from != crypto.PubkeyToAddress(key.PublicKey) {
		t.Fatalf("unexpected signer %s (%v)", from.Hex(), err)
	}
	if backend.simulatedFrom != from {
		t.Fatalf("simulation must run from the sender, got %s", backend.simulatedFrom.Hex())
	}
}

func TestClientTransferTokenStopsOnFailedSimulation(t *testing.T) {
	t.Parallel()

	key, _ := crypto.GenerateKey()
	token := common.HexToAddress("0x07d83526730c7438048D55A4fc0b850e2aaB6f0b")
	to := common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc454e4438f44e")

	reverting := &fakeBackend{callErr: errors.New("execution reverted: insufficient balance")}
	if _, err := NewBackendClient("fake", reverting, key).TransferToken(context.Background(), token, to, big.NewInt(1)); err == nil {
		t.Fatal("expected simulation error")
	}
	if reverting.sent != nil {
		t.Fatal("no transaction may be sent after a reverted simulation")
	}

	refusing := &fakeBackend{transferOK: false}
	if _, err := NewBackendClient("fake", refusing, key).TransferToken(context.Background(), token, to, big.NewInt(1)); err == nil {
		t.Fatal("expected error when token returns false")
	}
	if refusing.sent != nil {
		t.Fatal("no transaction may be sent when the token refuses the transfer")
	}
}

func TestNewClientRequiresRPCURL(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(context.Background(), Config{Name: "taiko"}); err == nil {
		t.Fatal("expected missing rpc url error")
	}
	if _, err := NewClient(context.Background(), Config{Name: "taiko", RPCURL: "http://127.0.0.1:1", PrivateKey: "zz"}); err == nil {
		t.Fatal("expected invalid key error")
	}
}

type fakeBackend struct {
	decimals   uint8
	balance    *big.Int
	transferOK bool
	callErr    error

	lastHolder    common.Address
	simulatedFrom common.Address
	sent          *coretypes.Transaction
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(167009), nil
}

func (f *fakeBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (f *fakeBackend) CallContract(_ context.Context, msg gethcore.CallMsg, _ *big.Int) ([]byte, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	if len(msg.Data) < 4 {
		return nil, errors.New("short calldata")
	}
	method, err := erc20ABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "decimals":
		return method.Outputs.Pack(f.decimals)
	case "balanceOf":
		args, err := method.Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}
		f.lastHolder = args[0].(common.Address)
		return method.Outputs.Pack(f.balance)
	case "transfer":
		f.simulatedFrom = msg.From
		return method.Outputs.Pack(f.transferOK)
	}
	return nil, errors.New("unexpected method " + method.Name)
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 7, nil
}

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000), nil
}

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*coretypes.Header, error) {
	return &coretypes.Header{Number: big.NewInt(100), BaseFee: big.NewInt(10_000_000)}, nil
}

func (f *fakeBackend) EstimateGas(context.Context, gethcore.CallMsg) (uint64, error) {
	return 60_000, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *coretypes.Transaction) error {
	f.sent = tx
	return nil
}
