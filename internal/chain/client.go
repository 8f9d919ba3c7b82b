package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Client reads chain state needed by the gateway: currently just gas
// prices for the fee engine's live estimate.
type Client struct {
	rpc         *rpcClient
	ethPriceUSD float64
}

// NewClient creates a read-only chain client. ethPriceUSD is the rough
// conversion rate used to express gas in USD (precision does not matter
// here; the fee engine buffers and the fallback path absorbs drift).
func NewClient(rpcURL string, ethPriceUSD float64, timeout time.Duration) *Client {
	if ethPriceUSD <= 0 {
		ethPriceUSD = 3000
	}
	return &Client{
		rpc:         newRPCClient(rpcURL, timeout),
		ethPriceUSD: ethPriceUSD,
	}
}

// GasPrice returns the current gas price in wei.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	var hexPrice string
	if err := c.rpc.call(ctx, "eth_gasPrice", &hexPrice); err != nil {
		return nil, err
	}
	return parseHexBig(hexPrice)
}

// EstimateGasCostUSD estimates the USD cost of gasUnits at the current
// gas price. Satisfies billing.GasEstimator.
func (c *Client) EstimateGasCostUSD(ctx context.Context, gasUnits int64) (float64, error) {
	price, err := c.GasPrice(ctx)
	if err != nil {
		return 0, err
	}

	costWei := new(big.Int).Mul(price, big.NewInt(gasUnits))
	costEth, _ := new(big.Float).Quo(
		new(big.Float).SetInt(costWei),
		big.NewFloat(1e18),
	).Float64()

	return costEth * c.ethPriceUSD, nil
}

// BlockNumber returns the latest block number, used by the health
// endpoint to report chain connectivity.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var hexNum string
	if err := c.rpc.call(ctx, "eth_blockNumber", &hexNum); err != nil {
		return 0, err
	}
	n, err := parseHexBig(hexNum)
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}

func parseHexBig(s string) (*big.Int, error) {
	trimmed := strings.TrimPrefix(s, "0x")
	n, ok := new(big.Int).SetString(trimmed, 16)
	if !ok {
		return nil, fmt.Errorf("malformed hex quantity %q", s)
	}
	return n, nil
}
