package domain

import (
	"math/big"
	"time"
)

// Side identifies one of the two pool assets.
type Side string

const (
	SideX Side = "x"
	SideY Side = "y"
)

// RebalancePlan is the planner's decision: which asset to sell and how much,
// plus the half-width of the new range to open. A nil plan means no swap is
// needed (the deposit still proceeds with whatever the wallet holds).
type RebalancePlan struct {
	SellSide   Side
	SellAmount *big.Int

	// RangeHalfWidth is the number of bins on each side of the active bin
	// for the redeposited position.
	RangeHalfWidth int32
}

// RebalanceStage names one step of the executor pipeline. The pipeline is
// strictly linear: Idle → Withdrawing → Swapping → Settling → Depositing →
// Completed, with Failed reachable from any stage.
type RebalanceStage string

const (
	StageIdle        RebalanceStage = "idle"
	StageWithdrawing RebalanceStage = "withdrawing"
	StageSwapping    RebalanceStage = "swapping"
	StageSettling    RebalanceStage = "settling"
	StageDepositing  RebalanceStage = "depositing"
	StageCompleted   RebalanceStage = "completed"
	StageFailed      RebalanceStage = "failed"
)

// Rebalance records one executor pipeline run for persistence and the API.
type Rebalance struct {
	ID            string         `json:"id"`
	PositionID    string         `json:"position_id"`
	Stage         RebalanceStage `json:"stage"`
	ActiveBin     int32          `json:"active_bin"`
	SellSide      string         `json:"sell_side,omitempty"`
	SellAmount    string         `json:"sell_amount,omitempty"`
	SwapTxRef     string         `json:"swap_tx_ref,omitempty"`
	NewPositionID string         `json:"new_position_id,omitempty"`
	DepositTxRef  string         `json:"deposit_tx_ref,omitempty"`
	NewLowerBin   int32          `json:"new_lower_bin"`
	NewUpperBin   int32          `json:"new_upper_bin"`
	Error         string         `json:"error,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}

// RouteRequest asks the swap collaborator for candidate execution paths.
type RouteRequest struct {
	FromAsset   string
	ToAsset     string
	Amount      *big.Int
	FromAddress string
	SlippageBps int
}

// Route is one candidate execution path returned by the swap collaborator.
type Route struct {
	ID        string
	FromAsset string
	ToAsset   string
	// AmountIn and AmountOut are the quoted input and output in base units.
	AmountIn  *big.Int
	AmountOut *big.Int
}

// ExecutedRoute reports the realized fill of a route.
type ExecutedRoute struct {
	RealizedIn  *big.Int
	RealizedOut *big.Int
	// TxRef is the transaction reference of the fill.
	TxRef string
}

// TxResult is the outcome of one constituent transaction of a multi-tx
// liquidity operation. Err is nil on success.
type TxResult struct {
	Ref string
	Err error
}

// DepositRequest opens a new position centered on the current active bin.
type DepositRequest struct {
	Owner       string
	AmountX     *big.Int
	AmountY     *big.Int
	LowerBin    int32
	UpperBin    int32
	SlippageBps int
}

// DepositResult reports the freshly opened position.
type DepositResult struct {
	PositionID string
	TxRef      string
	LowerBin   int32
	UpperBin   int32
}
