package rebalance

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpwatch/rangekeeper/internal/domain"
)

func TestPlanSellsHalfOfLargerSide(t *testing.T) {
	tests := []struct {
		name       string
		amountX    int64
		amountY    int64
		price      float64
		wantSide   domain.Side
		wantAmount int64
	}{
		{
			name:       "x heavy sells half of x",
			amountX:    1000,
			amountY:    400,
			price:      1.0,
			wantSide:   domain.SideX,
			wantAmount: 500,
		},
		{
			name:       "y heavy sells half of y",
			amountX:    400,
			amountY:    1000,
			price:      1.0,
			wantSide:   domain.SideY,
			wantAmount: 500,
		},
		{
			name:       "price tips the comparison",
			amountX:    1000,
			amountY:    600,
			price:      2.0, // yValue = 1200 > xValue = 1000
			wantSide:   domain.SideY,
			wantAmount: 300,
		},
		{
			name:       "fractional price scales y value down",
			amountX:    1000,
			amountY:    1500,
			price:      0.5, // yValue = 750 < xValue = 1000
			wantSide:   domain.SideX,
			wantAmount: 500,
		},
		{
			name:       "equal values sell y",
			amountX:    10,
			amountY:    10,
			price:      1.0,
			wantSide:   domain.SideY,
			wantAmount: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Plan(big.NewInt(tt.amountX), big.NewInt(tt.amountY), tt.price, 5)
			require.NotNil(t, plan)
			assert.Equal(t, tt.wantSide, plan.SellSide)
			assert.Equal(t, tt.wantAmount, plan.SellAmount.Int64())
			assert.Equal(t, int32(5), plan.RangeHalfWidth)
		})
	}
}

func TestPlanNoAction(t *testing.T) {
	tests := []struct {
		name    string
		amountX *big.Int
		amountY *big.Int
		price   float64
	}{
		{"both zero", big.NewInt(0), big.NewInt(0), 1.0},
		{"sell amount rounds to zero", big.NewInt(1), big.NewInt(0), 1.0},
		{"nil x", nil, big.NewInt(100), 1.0},
		{"nil y", big.NewInt(100), nil, 1.0},
		{"zero price", big.NewInt(100), big.NewInt(100), 0},
		{"negative price", big.NewInt(100), big.NewInt(100), -1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, Plan(tt.amountX, tt.amountY, tt.price, 5))
		})
	}
}

func TestPlanThresholdIsRelativeNotAbsolute(t *testing.T) {
	// Tiny totals still rebalance: the guard is 1% of total value, not an
	// absolute floor.
	plan := Plan(big.NewInt(10), big.NewInt(10), 1.0, 5)
	require.NotNil(t, plan)
	assert.Equal(t, int64(5), plan.SellAmount.Int64())

	plan = Plan(big.NewInt(1), big.NewInt(1), 1.0, 5)
	assert.Nil(t, plan, "sell amount 1/2 rounds to zero")
}

func TestPlanIsPure(t *testing.T) {
	x := big.NewInt(1000)
	y := big.NewInt(400)

	first := Plan(x, y, 1.25, 5)
	second := Plan(x, y, 1.25, 5)

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first.SellSide, second.SellSide)
	assert.Zero(t, first.SellAmount.Cmp(second.SellAmount))

	// Inputs are never mutated.
	assert.Equal(t, int64(1000), x.Int64())
	assert.Equal(t, int64(400), y.Int64())
	// The plan does not alias its inputs.
	first.SellAmount.SetInt64(999)
	assert.Equal(t, int64(1000), x.Int64())
	assert.Equal(t, int64(400), y.Int64())
}
