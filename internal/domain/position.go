// Package domain defines the core types and interfaces shared across the
// rangekeeper application: liquidity positions, range tracking state,
// rebalance plans and executions, and the contracts of every external
// collaborator (pool, swap router, liquidity manager, stores, caches).
package domain

import "math/big"

// Position is one liquidity position on the bin pool as reported by the
// chain. Positions are re-fetched on every monitoring cycle; there is no
// persistent identity beyond the ID string returned by the pool.
type Position struct {
	// ID is the opaque position key (hex-encoded on EVM chains).
	ID string

	// LowerBin and UpperBin bound the covered price range, inclusive.
	LowerBin int32
	UpperBin int32

	// AmountX and AmountY are the held quantities of the two pool assets in
	// integer base units.
	AmountX *big.Int
	AmountY *big.Int
}

// Contains reports whether the given active bin falls inside the position's
// [LowerBin, UpperBin] range, inclusive on both ends.
func (p Position) Contains(activeBin int32) bool {
	return activeBin >= p.LowerBin && activeBin <= p.UpperBin
}

// BinDistance returns the signed distance of activeBin from the position's
// range: negative when below LowerBin, positive when above UpperBin, zero
// when in range.
func (p Position) BinDistance(activeBin int32) int32 {
	switch {
	case activeBin < p.LowerBin:
		return activeBin - p.LowerBin
	case activeBin > p.UpperBin:
		return activeBin - p.UpperBin
	default:
		return 0
	}
}

// RangeStatus is the tracker's per-position state. It lives in memory for
// the process lifetime and is never persisted.
type RangeStatus struct {
	// InRange is the last observed containment of the active bin.
	InRange bool

	// Notified is true iff an out-of-range alert has been sent and no
	// back-in-range alert has been sent since.
	Notified bool
}

// Transition is the result of one tracker evaluation.
type Transition int

const (
	// TransitionUnchanged means no alert-worthy edge was observed.
	TransitionUnchanged Transition = iota

	// TransitionExited means the position left its range and an out-of-range
	// alert was dispatched.
	TransitionExited

	// TransitionEntered means the position returned into its range after a
	// notified exit and a back-in-range alert was dispatched.
	TransitionEntered
)

// String returns the transition name for logging.
func (t Transition) String() string {
	switch t {
	case TransitionExited:
		return "exited"
	case TransitionEntered:
		return "entered"
	default:
		return "unchanged"
	}
}

// Balances holds the wallet's spendable quantities of the two pool assets in
// integer base units, together with their decimal scales.
type Balances struct {
	AmountX   *big.Int
	AmountY   *big.Int
	DecimalsX uint8
	DecimalsY uint8
}

// PositionRangeView is the read-only classification returned by the status
// query. It is computed against a freshly fetched active bin and does not
// reflect the tracker's stored state.
type PositionRangeView struct {
	ID        string `json:"id"`
	LowerBin  int32  `json:"lower_bin"`
	UpperBin  int32  `json:"upper_bin"`
	ActiveBin int32  `json:"active_bin"`
	InRange   bool   `json:"in_range"`
	// Distance is the signed bin distance from the range; zero when in range.
	Distance int32 `json:"distance"`
	AmountX  string `json:"amount_x"`
	AmountY  string `json:"amount_y"`
}
