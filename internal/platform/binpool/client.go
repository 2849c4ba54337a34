package binpool

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	rkcrypto "github.com/lpwatch/rangekeeper/internal/crypto"
)

// ClientConfig holds the addresses and timeouts for the pool client.
type ClientConfig struct {
	// PairAddress is the bin pool (pair) contract.
	PairAddress string
	// ManagerAddress is the position manager contract.
	ManagerAddress string
	// TokenX is the ERC-20 address of asset X.
	TokenX string
	// TokenY is the asset Y address, or "native" when Y is the chain's
	// native asset.
	TokenY string

	// CallTimeout bounds every read-only RPC call.
	CallTimeout time.Duration
	// ConfirmTimeout bounds the receipt wait after a transaction is sent.
	ConfirmTimeout time.Duration
}

// Client talks to the pair and manager contracts over an ethclient
// connection. It implements domain.PoolClient, domain.BalanceReader, and
// domain.LiquidityManager. The signer may be nil for read-only (monitor
// mode) operation; transaction methods then fail.
type Client struct {
	eth     *ethclient.Client
	signer  *rkcrypto.Signer // nil in read-only mode
	pair    common.Address
	manager common.Address
	tokenX  common.Address
	tokenY  common.Address
	nativeY bool
	cfg     ClientConfig
	logger  *slog.Logger

	decOnce   sync.Once
	decErr    error
	decimalsX uint8
	decimalsY uint8
}

// NewClient dials the RPC endpoint and returns a Client. signer may be nil.
func NewClient(ctx context.Context, rpcURL string, cfg ClientConfig, signer *rkcrypto.Signer, logger *slog.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("binpool: dial %s: %w", rpcURL, err)
	}

	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 15 * time.Second
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 90 * time.Second
	}

	c := &Client{
		eth:     eth,
		signer:  signer,
		pair:    common.HexToAddress(cfg.PairAddress),
		manager: common.HexToAddress(cfg.ManagerAddress),
		tokenX:  common.HexToAddress(cfg.TokenX),
		nativeY: cfg.TokenY == "" || cfg.TokenY == "native",
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "binpool")),
	}
	if !c.nativeY {
		c.tokenY = common.HexToAddress(cfg.TokenY)
	}
	return c, nil
}

// Close releases the RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// call performs a read-only contract call with the configured timeout and
// unpacks the results.
func (c *Client) call(ctx context.Context, to common.Address, contractABI abi.ABI, method string, args ...any) ([]any, error) {
	packed, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("binpool: pack %s: %w", method, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	raw, err := c.eth.CallContract(callCtx, ethereum.CallMsg{To: &to, Data: packed}, nil)
	if err != nil {
		return nil, fmt.Errorf("binpool: call %s: %w", method, err)
	}

	out, err := contractABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("binpool: unpack %s: %w", method, err)
	}
	return out, nil
}

// loadDecimals reads and caches the decimal scales of both assets. The
// native asset uses the chain's standard 18.
func (c *Client) loadDecimals(ctx context.Context) (uint8, uint8, error) {
	c.decOnce.Do(func() {
		out, err := c.call(ctx, c.tokenX, erc20ABI, "decimals")
		if err != nil {
			c.decErr = err
			return
		}
		c.decimalsX = out[0].(uint8)

		if c.nativeY {
			c.decimalsY = 18
			return
		}
		out, err = c.call(ctx, c.tokenY, erc20ABI, "decimals")
		if err != nil {
			c.decErr = err
			return
		}
		c.decimalsY = out[0].(uint8)
	})
	return c.decimalsX, c.decimalsY, c.decErr
}

// binFromABI narrows an ABI int24 (delivered as *big.Int) to int32.
func binFromABI(v any) int32 {
	return int32(v.(*big.Int).Int64())
}
