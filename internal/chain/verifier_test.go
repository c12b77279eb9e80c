package chain

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"santapot/internal/config"
)

const receiver = "0x1111111111111111111111111111111111111111"

type fakeReader struct {
	receipts map[common.Hash]*types.Receipt
	txs      map[common.Hash]*types.Transaction
	pending  bool
}

func (f *fakeReader) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	r, ok := f.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (f *fakeReader) TransactionByHash(_ context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	tx, ok := f.txs[hash]
	if !ok {
		return nil, false, ethereum.NotFound
	}
	return tx, f.pending, nil
}

func hashOf(b byte) string {
	return common.BytesToHash([]byte{b}).Hex()
}

var oneEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

func newFake(status uint64, to string, value *big.Int) (*fakeReader, string) {
	h := hashOf(1)
	addr := common.HexToAddress(to)
	return &fakeReader{
		receipts: map[common.Hash]*types.Receipt{common.HexToHash(h): {Status: status}},
		txs: map[common.Hash]*types.Transaction{
			common.HexToHash(h): types.NewTx(&types.LegacyTx{To: &addr, Value: value, Gas: 21000, GasPrice: big.NewInt(1)}),
		},
	}, h
}

// newTokenFake returns a successful token transfer of units from a donor
// to recipient, emitted by contract.
func newTokenFake(contract, recipient string, units *big.Int) (*fakeReader, string) {
	h := hashOf(2)
	donor := common.HexToAddress("0x3333333333333333333333333333333333333333")
	log := &types.Log{
		Address: common.HexToAddress(contract),
		Topics: []common.Hash{
			transferTopic,
			common.BytesToHash(donor.Bytes()),
			common.BytesToHash(common.HexToAddress(recipient).Bytes()),
		},
		Data: common.LeftPadBytes(units.Bytes(), 32),
	}
	to := common.HexToAddress(contract)
	return &fakeReader{
		receipts: map[common.Hash]*types.Receipt{common.HexToHash(h): {Status: types.ReceiptStatusSuccessful, Logs: []*types.Log{log}}},
		txs: map[common.Hash]*types.Transaction{
			common.HexToHash(h): types.NewTx(&types.LegacyTx{To: &to, Value: big.NewInt(0), Gas: 60000, GasPrice: big.NewInt(1)}),
		},
	}, h
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	one := decimal.NewFromInt(1)

	t.Run("confirmed", func(t *testing.T) {
		fake, h := newFake(types.ReceiptStatusSuccessful, receiver, oneEther)
		v := (&Verifier{networks: map[string]*network{}}).WithReader("base", receiver, fake)
		checked, err := v.Verify(ctx, "base", h, "eth", one)
		require.NoError(t, err)
		assert.True(t, checked)
	})

	t.Run("value below claimed amount", func(t *testing.T) {
		fake, h := newFake(types.ReceiptStatusSuccessful, receiver, big.NewInt(1))
		v := (&Verifier{networks: map[string]*network{}}).WithReader("base", receiver, fake)
		_, err := v.Verify(ctx, "base", h, "ETH", decimal.NewFromInt(5))
		assert.ErrorIs(t, err, ErrAmountMismatch)
	})

	t.Run("failed receipt", func(t *testing.T) {
		fake, h := newFake(types.ReceiptStatusFailed, receiver, oneEther)
		v := (&Verifier{networks: map[string]*network{}}).WithReader("base", receiver, fake)
		_, err := v.Verify(ctx, "base", h, "ETH", one)
		assert.ErrorIs(t, err, ErrNotConfirmed)
	})

	t.Run("unknown hash", func(t *testing.T) {
		fake, _ := newFake(types.ReceiptStatusSuccessful, receiver, oneEther)
		v := (&Verifier{networks: map[string]*network{}}).WithReader("base", receiver, fake)
		_, err := v.Verify(ctx, "base", hashOf(9), "ETH", one)
		assert.ErrorIs(t, err, ErrNotConfirmed)
	})

	t.Run("wrong receiver", func(t *testing.T) {
		fake, h := newFake(types.ReceiptStatusSuccessful, "0x2222222222222222222222222222222222222222", oneEther)
		v := (&Verifier{networks: map[string]*network{}}).WithReader("Base", receiver, fake)
		_, err := v.Verify(ctx, "base", h, "ETH", one)
		assert.ErrorIs(t, err, ErrWrongReceiver)
	})

	t.Run("pending", func(t *testing.T) {
		fake, h := newFake(types.ReceiptStatusSuccessful, receiver, oneEther)
		fake.pending = true
		v := (&Verifier{networks: map[string]*network{}}).WithReader("base", receiver, fake)
		_, err := v.Verify(ctx, "base", h, "ETH", one)
		assert.ErrorIs(t, err, ErrNotConfirmed)
	})

	t.Run("usdc transfer", func(t *testing.T) {
		usdc := registry["base"].tokens["USDC"].Address.Hex()
		fake, h := newTokenFake(usdc, receiver, big.NewInt(5_000_000))
		v := (&Verifier{networks: map[string]*network{}}).WithReader("base", receiver, fake)

		checked, err := v.Verify(ctx, "base", h, "usdc", decimal.NewFromInt(5))
		require.NoError(t, err)
		assert.True(t, checked)

		_, err = v.Verify(ctx, "base", h, "USDC", decimal.RequireFromString("5.01"))
		assert.ErrorIs(t, err, ErrAmountMismatch)
	})

	t.Run("token sent elsewhere", func(t *testing.T) {
		usdc := registry["base"].tokens["USDC"].Address.Hex()
		fake, h := newTokenFake(usdc, "0x2222222222222222222222222222222222222222", big.NewInt(5_000_000))
		v := (&Verifier{networks: map[string]*network{}}).WithReader("base", receiver, fake)
		_, err := v.Verify(ctx, "base", h, "USDC", one)
		assert.ErrorIs(t, err, ErrWrongReceiver)
	})

	t.Run("transfer from another contract", func(t *testing.T) {
		fake, h := newTokenFake("0x4444444444444444444444444444444444444444", receiver, big.NewInt(5_000_000))
		v := (&Verifier{networks: map[string]*network{}}).WithReader("base", receiver, fake)
		_, err := v.Verify(ctx, "base", h, "USDC", one)
		assert.ErrorIs(t, err, ErrWrongReceiver)
	})

	t.Run("configured token", func(t *testing.T) {
		contract := "0x5555555555555555555555555555555555555555"
		fake, h := newTokenFake(contract, receiver, new(big.Int).Mul(big.NewInt(3), oneEther))
		v := (&Verifier{networks: map[string]*network{}}).WithReader("base", receiver, fake).
			WithToken("base", "dai", Token{Address: common.HexToAddress(contract), Decimals: 18})
		checked, err := v.Verify(ctx, "base", h, "DAI", decimal.NewFromInt(3))
		require.NoError(t, err)
		assert.True(t, checked)
	})

	t.Run("unsupported currency", func(t *testing.T) {
		fake, h := newFake(types.ReceiptStatusSuccessful, receiver, oneEther)
		v := (&Verifier{networks: map[string]*network{}}).WithReader("base", receiver, fake)
		_, err := v.Verify(ctx, "base", h, "DOGE", one)
		assert.ErrorIs(t, err, ErrUnsupportedCurrency)
	})
}

func TestVerifyWithoutRPC(t *testing.T) {
	v, err := NewVerifier(context.Background(), map[string]config.NetworkConfig{
		"polygon": {ChainID: 137, Receiver: receiver},
	})
	require.NoError(t, err)

	one := decimal.NewFromInt(1)
	checked, err := v.Verify(context.Background(), "polygon", hashOf(1), "USDT", one)
	require.NoError(t, err)
	assert.False(t, checked)

	_, err = v.Verify(context.Background(), "polygon", "0xnothex", "MATIC", one)
	assert.ErrorIs(t, err, ErrInvalidTxHash)

	_, err = v.Verify(context.Background(), "solana", hashOf(1), "SOL", one)
	assert.ErrorIs(t, err, ErrUnsupportedNetwork)

	assert.Equal(t, []string{"polygon"}, v.Networks())
	assert.Equal(t, common.HexToAddress(receiver).Hex(), v.Receiver("polygon"))
	assert.Equal(t, []string{"MATIC", "DAI", "USDC", "USDT"}, v.Currencies("polygon"))
}

func TestNewVerifierRejectsBadConfig(t *testing.T) {
	tests := map[string]config.NetworkConfig{
		"bad receiver":     {Receiver: "not-an-address"},
		"bad token":        {Receiver: receiver, Tokens: map[string]config.TokenConfig{"usdc": {Address: "nope", Decimals: 6}}},
		"rpc without dest": {RPCURL: "http://127.0.0.1:1"},
	}
	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewVerifier(context.Background(), map[string]config.NetworkConfig{"base": cfg})
			assert.Error(t, err)
		})
	}
}

func TestNewVerifierMergesConfiguredTokens(t *testing.T) {
	v, err := NewVerifier(context.Background(), map[string]config.NetworkConfig{
		"sepolia": {Receiver: receiver, NativeSymbol: "eth", Tokens: map[string]config.TokenConfig{
			"usdc": {Address: "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238", Decimals: 6},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ETH", "USDC"}, v.Currencies("sepolia"))
	assert.Nil(t, v.Currencies("mainnet"))
}
