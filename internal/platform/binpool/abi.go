// Package binpool implements the pool-side collaborators against an EVM
// bin-liquidity pair and its position manager contract: position and active
// bin queries, wallet balances, and the withdraw/deposit transactions of the
// rebalance pipeline.
package binpool

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// Minimal ABI fragments for the contracts this client talks to. Only the
// methods actually called are declared.

const pairABIJSON = `[
  {"name":"getActiveId","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"activeId","type":"uint24"}]},
  {"name":"getPriceFromId","type":"function","stateMutability":"view","inputs":[{"name":"id","type":"uint24"}],"outputs":[{"name":"price","type":"uint256"}]}
]`

const managerABIJSON = `[
  {"name":"positionsOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"ids","type":"bytes32[]"}]},
  {"name":"positionInfo","type":"function","stateMutability":"view","inputs":[{"name":"id","type":"bytes32"}],"outputs":[{"name":"lowerBin","type":"int24"},{"name":"upperBin","type":"int24"},{"name":"amountX","type":"uint256"},{"name":"amountY","type":"uint256"}]},
  {"name":"removeLiquidity","type":"function","stateMutability":"nonpayable","inputs":[{"name":"id","type":"bytes32"},{"name":"fromBin","type":"int24"},{"name":"toBin","type":"int24"},{"name":"bps","type":"uint16"}],"outputs":[]},
  {"name":"claimFees","type":"function","stateMutability":"nonpayable","inputs":[{"name":"id","type":"bytes32"}],"outputs":[]},
  {"name":"closePosition","type":"function","stateMutability":"nonpayable","inputs":[{"name":"id","type":"bytes32"}],"outputs":[]},
  {"name":"openPosition","type":"function","stateMutability":"payable","inputs":[{"name":"lowerBin","type":"int24"},{"name":"upperBin","type":"int24"},{"name":"amountX","type":"uint256"},{"name":"minAmountX","type":"uint256"},{"name":"amountY","type":"uint256"},{"name":"minAmountY","type":"uint256"}],"outputs":[]}
]`

const erc20ABIJSON = `[
  {"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"balance","type":"uint256"}]},
  {"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"decimals","type":"uint8"}]}
]`

var (
	pairABI    abi.ABI
	managerABI abi.ABI
	erc20ABI   abi.ABI

	// positionOpenedTopic identifies the PositionOpened event the manager
	// emits when openPosition succeeds; topic[1] carries the new position ID.
	positionOpenedTopic = crypto.Keccak256Hash(
		[]byte("PositionOpened(bytes32,address,int24,int24)"),
	)
)

func init() {
	var err error
	if pairABI, err = abi.JSON(strings.NewReader(pairABIJSON)); err != nil {
		panic("binpool: parse pair ABI: " + err.Error())
	}
	if managerABI, err = abi.JSON(strings.NewReader(managerABIJSON)); err != nil {
		panic("binpool: parse manager ABI: " + err.Error())
	}
	if erc20ABI, err = abi.JSON(strings.NewReader(erc20ABIJSON)); err != nil {
		panic("binpool: parse erc20 ABI: " + err.Error())
	}
}
