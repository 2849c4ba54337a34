package binpool

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lpwatch/rangekeeper/internal/domain"
)

// priceWad is the fixed-point scale of getPriceFromId: the pair reports the
// base-unit price of Y in X multiplied by 1e18.
var priceWad = new(big.Float).SetFloat64(1e18)

// ActiveBin returns the pool's current active bin index.
func (c *Client) ActiveBin(ctx context.Context) (int32, error) {
	out, err := c.call(ctx, c.pair, pairABI, "getActiveId")
	if err != nil {
		return 0, err
	}
	return int32(out[0].(*big.Int).Int64()), nil
}

// ReferencePrice returns the base-unit price of asset Y denominated in asset
// X at the current active bin, as reported by the pair contract.
func (c *Client) ReferencePrice(ctx context.Context) (float64, error) {
	out, err := c.call(ctx, c.pair, pairABI, "getActiveId")
	if err != nil {
		return 0, err
	}
	activeID := out[0].(*big.Int)

	out, err = c.call(ctx, c.pair, pairABI, "getPriceFromId", activeID)
	if err != nil {
		return 0, err
	}

	price := new(big.Float).SetInt(out[0].(*big.Int))
	price.Quo(price, priceWad)
	f, _ := price.Float64()
	return f, nil
}

// ListPositions returns all positions owned by the given address, with
// range bounds and held amounts.
func (c *Client) ListPositions(ctx context.Context, owner string) ([]domain.Position, error) {
	out, err := c.call(ctx, c.manager, managerABI, "positionsOf", common.HexToAddress(owner))
	if err != nil {
		return nil, err
	}
	ids := out[0].([][32]byte)

	positions := make([]domain.Position, 0, len(ids))
	for _, id := range ids {
		info, err := c.call(ctx, c.manager, managerABI, "positionInfo", id)
		if err != nil {
			return nil, fmt.Errorf("position %s: %w", common.Hash(id).Hex(), err)
		}
		positions = append(positions, domain.Position{
			ID:       common.Hash(id).Hex(),
			LowerBin: binFromABI(info[0]),
			UpperBin: binFromABI(info[1]),
			AmountX:  info[2].(*big.Int),
			AmountY:  info[3].(*big.Int),
		})
	}
	return positions, nil
}

// Balances reads the wallet's spendable balances of both pool assets.
func (c *Client) Balances(ctx context.Context, owner string) (domain.Balances, error) {
	decX, decY, err := c.loadDecimals(ctx)
	if err != nil {
		return domain.Balances{}, fmt.Errorf("binpool: decimals: %w", err)
	}

	addr := common.HexToAddress(owner)

	out, err := c.call(ctx, c.tokenX, erc20ABI, "balanceOf", addr)
	if err != nil {
		return domain.Balances{}, fmt.Errorf("binpool: balance x: %w", err)
	}
	amountX := out[0].(*big.Int)

	var amountY *big.Int
	if c.nativeY {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()
		amountY, err = c.eth.BalanceAt(callCtx, addr, nil)
		if err != nil {
			return domain.Balances{}, fmt.Errorf("binpool: native balance: %w", err)
		}
	} else {
		out, err = c.call(ctx, c.tokenY, erc20ABI, "balanceOf", addr)
		if err != nil {
			return domain.Balances{}, fmt.Errorf("binpool: balance y: %w", err)
		}
		amountY = out[0].(*big.Int)
	}

	return domain.Balances{
		AmountX:   amountX,
		AmountY:   amountY,
		DecimalsX: decX,
		DecimalsY: decY,
	}, nil
}

// Compile-time interface checks.
var (
	_ domain.PoolClient    = (*Client)(nil)
	_ domain.BalanceReader = (*Client)(nil)
)
