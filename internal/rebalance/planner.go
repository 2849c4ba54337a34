// Package rebalance implements the rebalance decision logic and the
// withdraw-swap-settle-deposit pipeline.
package rebalance

import (
	"math/big"

	"github.com/lpwatch/rangekeeper/internal/domain"
)

// priceScale is the fixed-point scale applied to the reference price before
// it enters integer amount arithmetic.
const priceScale = 1_000_000

var (
	bigPriceScale = big.NewInt(priceScale)
	two           = big.NewInt(2)
	hundred       = big.NewInt(100)
)

// Plan decides whether a swap is needed to restore a 50/50 value split and,
// if so, which side to sell and how much. amountX and amountY are wallet
// balances in base units; price is the value of one unit of Y denominated in
// X. A nil result means no swap: either balances are already within the 1%
// churn threshold or the computed sell amount is zero.
//
// Plan is pure: same inputs always yield the same plan. All amount
// arithmetic stays in the integer domain; the price is scaled to six decimal
// places before multiplication so no balance ever passes through a float.
func Plan(amountX, amountY *big.Int, price float64, rangeHalfWidth int32) *domain.RebalancePlan {
	if amountX == nil || amountY == nil || price <= 0 {
		return nil
	}

	scaledPrice := big.NewInt(int64(price * priceScale))

	// X is the value numeraire: xValue = amountX, yValue = amountY*price.
	xValue := new(big.Int).Set(amountX)
	yValue := new(big.Int).Mul(amountY, scaledPrice)
	yValue.Quo(yValue, bigPriceScale)

	totalValue := new(big.Int).Add(xValue, yValue)
	if totalValue.Sign() == 0 {
		return nil
	}

	// 1% of total value: rebalances smaller than this churn fees for
	// nothing.
	minSwapThreshold := new(big.Int).Quo(totalValue, hundred)

	var sellSide domain.Side
	var sellAmount, sellValue *big.Int

	if xValue.Cmp(yValue) > 0 {
		sellSide = domain.SideX
		sellAmount = new(big.Int).Quo(amountX, two)
		sellValue = xValue
	} else {
		sellSide = domain.SideY
		sellAmount = new(big.Int).Quo(amountY, two)
		sellValue = yValue
	}

	if sellAmount.Sign() == 0 || sellValue.Cmp(minSwapThreshold) < 0 {
		return nil
	}

	return &domain.RebalancePlan{
		SellSide:       sellSide,
		SellAmount:     sellAmount,
		RangeHalfWidth: rangeHalfWidth,
	}
}
