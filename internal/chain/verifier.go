// Package chain confirms on-chain donation transactions against the
// configured receiver address of each EVM network.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"santapot/internal/config"
)

// Verification errors.
var (
	ErrUnsupportedNetwork  = errors.New("unsupported network")
	ErrUnsupportedCurrency = errors.New("unsupported currency on network")
	ErrInvalidTxHash       = errors.New("invalid transaction hash")
	ErrNotConfirmed        = errors.New("transaction not confirmed")
	ErrWrongReceiver       = errors.New("transaction not sent to the donation address")
	ErrAmountMismatch      = errors.New("transaction value is below the donation amount")
)

var txHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// transferTopic is the ERC-20 Transfer(address,address,uint256) event id.
var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

const nativeDecimals = 18

// Reader is the subset of ethclient.Client the verifier needs.
type Reader interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
}

// Token is an ERC-20 contract accepted on a network.
type Token struct {
	Address  common.Address
	Decimals int32
}

type network struct {
	reader   Reader
	receiver common.Address
	chainID  int64
	native   string
	tokens   map[string]Token
}

// Verifier checks donation transactions per network.
type Verifier struct {
	networks map[string]*network
}

// NewVerifier dials every network that has an RPC url. Networks without one
// are accepted without on-chain confirmation. A network with an RPC url
// must have a receiver.
func NewVerifier(ctx context.Context, networks map[string]config.NetworkConfig) (*Verifier, error) {
	v := &Verifier{networks: make(map[string]*network, len(networks))}
	for name, cfg := range networks {
		name = strings.ToLower(name)
		n := newNetwork(name, cfg.NativeSymbol)
		n.chainID = cfg.ChainID
		if cfg.Receiver != "" {
			if !common.IsHexAddress(cfg.Receiver) {
				return nil, fmt.Errorf("invalid receiver address for %s", name)
			}
			n.receiver = common.HexToAddress(cfg.Receiver)
		}
		for symbol, t := range cfg.Tokens {
			if !common.IsHexAddress(t.Address) {
				return nil, fmt.Errorf("invalid %s token address for %s", symbol, name)
			}
			n.tokens[strings.ToUpper(symbol)] = Token{Address: common.HexToAddress(t.Address), Decimals: t.Decimals}
		}
		if cfg.RPCURL != "" {
			if n.receiver == (common.Address{}) {
				return nil, fmt.Errorf("network %s has an RPC url but no receiver", name)
			}
			client, err := ethclient.DialContext(ctx, cfg.RPCURL)
			if err != nil {
				return nil, fmt.Errorf("failed to dial %s RPC: %w", name, err)
			}
			n.reader = client
		}
		v.networks[name] = n
		log.Info().
			Str("network", name).
			Bool("rpc", n.reader != nil).
			Str("native", n.native).
			Strs("tokens", n.tokenSymbols()).
			Msg("Donation network configured")
	}
	return v, nil
}

func newNetwork(name, native string) *network {
	n := &network{native: strings.ToUpper(native), tokens: make(map[string]Token)}
	if known, ok := registry[name]; ok {
		if n.native == "" {
			n.native = known.native
		}
		for symbol, t := range known.tokens {
			n.tokens[symbol] = t
		}
	}
	if n.native == "" {
		n.native = "ETH"
	}
	return n
}

func (n *network) tokenSymbols() []string {
	out := make([]string, 0, len(n.tokens))
	for symbol := range n.tokens {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// WithReader installs r for name. Used to plug in a client other than ethclient.
func (v *Verifier) WithReader(name string, receiver string, r Reader) *Verifier {
	name = strings.ToLower(name)
	n := newNetwork(name, "")
	n.reader = r
	n.receiver = common.HexToAddress(receiver)
	v.networks[name] = n
	return v
}

// WithToken adds or replaces an accepted token on a configured network.
func (v *Verifier) WithToken(name, symbol string, t Token) *Verifier {
	if n, ok := v.networks[strings.ToLower(name)]; ok {
		n.tokens[strings.ToUpper(symbol)] = t
	}
	return v
}

// Networks returns the configured network names, sorted.
func (v *Verifier) Networks() []string {
	names := make([]string, 0, len(v.networks))
	for name := range v.networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Receiver returns the donation address for network, or "" if none is set.
func (v *Verifier) Receiver(name string) string {
	n, ok := v.networks[strings.ToLower(name)]
	if !ok || n.receiver == (common.Address{}) {
		return ""
	}
	return n.receiver.Hex()
}

// Currencies returns the symbols accepted on network: the native coin
// followed by its tokens.
func (v *Verifier) Currencies(name string) []string {
	n, ok := v.networks[strings.ToLower(name)]
	if !ok {
		return nil
	}
	return append([]string{n.native}, n.tokenSymbols()...)
}

// Verify confirms that txHash on network succeeded and paid at least amount
// of currency to the receiver. Native coins are checked against the
// transaction value, tokens against the receipt's Transfer logs. It returns
// true when the transaction was checked on chain and false when the network
// has no RPC endpoint to check against.
func (v *Verifier) Verify(ctx context.Context, name, txHash, currency string, amount decimal.Decimal) (bool, error) {
	n, ok := v.networks[strings.ToLower(name)]
	if !ok {
		return false, ErrUnsupportedNetwork
	}
	if !txHashPattern.MatchString(txHash) {
		return false, ErrInvalidTxHash
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	token, isToken := n.tokens[currency]
	if !isToken && currency != "" && currency != n.native {
		return false, ErrUnsupportedCurrency
	}
	if n.reader == nil {
		return false, nil
	}

	hash := common.HexToHash(txHash)
	receipt, err := n.reader.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return false, ErrNotConfirmed
		}
		return false, fmt.Errorf("failed to get receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return false, ErrNotConfirmed
	}

	var paid decimal.Decimal
	if isToken {
		value := tokenTransferred(receipt.Logs, token.Address, n.receiver)
		if value.Sign() == 0 {
			return false, ErrWrongReceiver
		}
		paid = decimal.NewFromBigInt(value, -token.Decimals)
	} else {
		tx, pending, err := n.reader.TransactionByHash(ctx, hash)
		if err != nil {
			return false, fmt.Errorf("failed to get transaction: %w", err)
		}
		if pending {
			return false, ErrNotConfirmed
		}
		if tx.To() == nil || *tx.To() != n.receiver {
			return false, ErrWrongReceiver
		}
		paid = decimal.NewFromBigInt(tx.Value(), -nativeDecimals)
	}

	if paid.LessThan(amount) {
		return false, fmt.Errorf("%w: paid %s, claimed %s", ErrAmountMismatch, paid.String(), amount.String())
	}
	return true, nil
}

// tokenTransferred sums the Transfer events emitted by token that credit to.
func tokenTransferred(logs []*types.Log, token, to common.Address) *big.Int {
	total := new(big.Int)
	for _, l := range logs {
		if l == nil || l.Address != token || len(l.Topics) != 3 || l.Topics[0] != transferTopic {
			continue
		}
		if common.BytesToAddress(l.Topics[2].Bytes()) != to {
			continue
		}
		total.Add(total, new(big.Int).SetBytes(l.Data))
	}
	return total
}
