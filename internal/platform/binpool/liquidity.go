package binpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/lpwatch/rangekeeper/internal/domain"
)

// maxBinsPerTx caps how many bins one removeLiquidity transaction may touch,
// keeping each submission under the block gas limit.
const maxBinsPerTx = 60

// receiptPollInterval is how often the receipt is polled while waiting for
// confirmation.
const receiptPollInterval = 2 * time.Second

var errReadOnly = errors.New("binpool: client is read-only (no signer)")

// Withdraw removes bpsToRemove basis points of liquidity across the
// position's full bin range in chunked transactions and, when claimAndClose
// is set, claims accrued fees and closes the position. Each constituent
// transaction may fail independently; failures are recorded in the returned
// TxResults and do not abort the remaining transactions.
func (c *Client) Withdraw(ctx context.Context, pos domain.Position, bpsToRemove int, claimAndClose bool) ([]domain.TxResult, error) {
	if c.signer == nil {
		return nil, errReadOnly
	}

	id, err := positionID(pos.ID)
	if err != nil {
		return nil, err
	}

	var results []domain.TxResult

	for from := pos.LowerBin; from <= pos.UpperBin; from += maxBinsPerTx {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		to := from + maxBinsPerTx - 1
		if to > pos.UpperBin {
			to = pos.UpperBin
		}

		ref, err := c.submitAndConfirm(ctx, c.manager, nil, managerABI, "removeLiquidity",
			id, big.NewInt(int64(from)), big.NewInt(int64(to)), uint16(bpsToRemove))
		results = append(results, domain.TxResult{Ref: ref, Err: err})
		if err != nil {
			c.logger.WarnContext(ctx, "remove liquidity chunk failed",
				slog.String("position", pos.ID),
				slog.Int("from_bin", int(from)),
				slog.Int("to_bin", int(to)),
				slog.String("error", err.Error()),
			)
		}
	}

	if claimAndClose {
		ref, err := c.submitAndConfirm(ctx, c.manager, nil, managerABI, "claimFees", id)
		results = append(results, domain.TxResult{Ref: ref, Err: err})

		ref, err = c.submitAndConfirm(ctx, c.manager, nil, managerABI, "closePosition", id)
		results = append(results, domain.TxResult{Ref: ref, Err: err})
	}

	return results, nil
}

// Deposit opens a new position with the given amounts and range. When asset
// Y is native, its amount rides along as transaction value.
func (c *Client) Deposit(ctx context.Context, req domain.DepositRequest) (domain.DepositResult, error) {
	if c.signer == nil {
		return domain.DepositResult{}, errReadOnly
	}

	minX := applySlippage(req.AmountX, req.SlippageBps)
	minY := applySlippage(req.AmountY, req.SlippageBps)

	var value *big.Int
	amountY := req.AmountY
	if c.nativeY {
		value = req.AmountY
	}

	txHash, receipt, err := c.submit(ctx, c.manager, value, managerABI, "openPosition",
		big.NewInt(int64(req.LowerBin)), big.NewInt(int64(req.UpperBin)),
		req.AmountX, minX, amountY, minY)
	if err != nil {
		return domain.DepositResult{}, err
	}

	result := domain.DepositResult{
		PositionID: txHash, // fallback when the event is missing
		TxRef:      txHash,
		LowerBin:   req.LowerBin,
		UpperBin:   req.UpperBin,
	}

	for _, lg := range receipt.Logs {
		if len(lg.Topics) >= 2 && lg.Topics[0] == positionOpenedTopic {
			result.PositionID = lg.Topics[1].Hex()
			break
		}
	}
	return result, nil
}

// submitAndConfirm is submit without the receipt.
func (c *Client) submitAndConfirm(ctx context.Context, to common.Address, value *big.Int, contractABI abi.ABI, method string, args ...any) (string, error) {
	hash, _, err := c.submit(ctx, to, value, contractABI, method, args...)
	return hash, err
}

// submit packs, signs, sends, and confirms one transaction. It returns the
// transaction hash even on confirmation failure so callers can reference it
// in alerts.
func (c *Client) submit(ctx context.Context, to common.Address, value *big.Int, contractABI abi.ABI, method string, args ...any) (string, *types.Receipt, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return "", nil, fmt.Errorf("binpool: pack %s: %w", method, err)
	}
	if value == nil {
		value = new(big.Int)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	from := c.signer.Address()

	nonce, err := c.eth.PendingNonceAt(callCtx, from)
	if err != nil {
		return "", nil, fmt.Errorf("binpool: nonce: %w", err)
	}

	tipCap, err := c.eth.SuggestGasTipCap(callCtx)
	if err != nil {
		return "", nil, fmt.Errorf("binpool: gas tip: %w", err)
	}

	head, err := c.eth.HeaderByNumber(callCtx, nil)
	if err != nil {
		return "", nil, fmt.Errorf("binpool: head: %w", err)
	}
	// feeCap = tip + 2*baseFee tolerates two consecutive full blocks.
	feeCap := new(big.Int).Add(tipCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	gas, err := c.eth.EstimateGas(callCtx, ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return "", nil, fmt.Errorf("binpool: estimate gas for %s: %w", method, err)
	}
	gas += gas / 5 // 20% headroom

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.signer.ChainID(),
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      data,
	})

	signed, err := c.signer.SignTx(tx)
	if err != nil {
		return "", nil, fmt.Errorf("binpool: sign %s: %w", method, err)
	}

	if err := c.eth.SendTransaction(callCtx, signed); err != nil {
		return "", nil, fmt.Errorf("binpool: send %s: %w", method, err)
	}

	hash := signed.Hash()
	receipt, err := c.waitMined(ctx, hash)
	if err != nil {
		return hash.Hex(), nil, err
	}
	return hash.Hex(), receipt, nil
}

// waitMined polls for the transaction receipt until it appears or the
// confirmation timeout elapses.
func (c *Client) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %s", domain.ErrConfirmTimeout, hash.Hex())
		case <-ticker.C:
			receipt, err := c.eth.TransactionReceipt(waitCtx, hash)
			if err != nil {
				continue // not mined yet
			}
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("%w: %s", domain.ErrTxReverted, hash.Hex())
			}
			return receipt, nil
		}
	}
}

// positionID parses a hex position key back into the bytes32 the contracts
// expect.
func positionID(id string) ([32]byte, error) {
	var out [32]byte
	h := common.HexToHash(id)
	if h == (common.Hash{}) && id != h.Hex() {
		return out, fmt.Errorf("binpool: invalid position id %q", id)
	}
	copy(out[:], h[:])
	return out, nil
}

// applySlippage returns amount reduced by bps basis points.
func applySlippage(amount *big.Int, bps int) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	keep := big.NewInt(int64(10_000 - bps))
	out := new(big.Int).Mul(amount, keep)
	return out.Quo(out, big.NewInt(10_000))
}

// Compile-time interface check.
var _ domain.LiquidityManager = (*Client)(nil)
