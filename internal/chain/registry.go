package chain

import "github.com/ethereum/go-ethereum/common"

type knownNetwork struct {
	native string
	tokens map[string]Token
}

func erc20(addr string, decimals int32) Token {
	return Token{Address: common.HexToAddress(addr), Decimals: decimals}
}

// registry holds the stablecoins accepted on well-known networks.
var registry = map[string]knownNetwork{
	"ethereum": {native: "ETH", tokens: map[string]Token{
		"USDC": erc20("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", 6),
		"USDT": erc20("0xdAC17F958D2ee523a2206206994597C13D831ec7", 6),
		"DAI":  erc20("0x6B175474E89094C44Da98b954EedeAC495271d0F", 18),
	}},
	"polygon": {native: "MATIC", tokens: map[string]Token{
		"USDC": erc20("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174", 6),
		"USDT": erc20("0xc2132D05D31c914a87C6611C10748AEb04B58e8F", 6),
		"DAI":  erc20("0x8f3Cf7ad23Cd3CaDbD9735AFf958023239c6A063", 18),
	}},
	"base": {native: "ETH", tokens: map[string]Token{
		"USDC": erc20("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", 6),
	}},
	"bnb": {native: "BNB", tokens: map[string]Token{
		"USDC": erc20("0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d", 18),
		"USDT": erc20("0x55d398326f99059fF775485246999027B3197955", 18),
	}},
}
