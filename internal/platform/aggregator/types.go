package aggregator

import (
	"fmt"
	"math/big"

	"github.com/lpwatch/rangekeeper/internal/domain"
)

// apiRoute is the wire representation of a quoted route. Amounts are decimal
// strings to preserve precision across the JSON boundary.
type apiRoute struct {
	ID        string `json:"id"`
	FromToken string `json:"fromToken"`
	ToToken   string `json:"toToken"`
	AmountIn  string `json:"amountIn"`
	AmountOut string `json:"amountOut"`
}

func (r *apiRoute) toDomain() (domain.Route, error) {
	amountIn, err := parseAmount(r.AmountIn)
	if err != nil {
		return domain.Route{}, fmt.Errorf("amountIn: %w", err)
	}
	amountOut, err := parseAmount(r.AmountOut)
	if err != nil {
		return domain.Route{}, fmt.Errorf("amountOut: %w", err)
	}
	return domain.Route{
		ID:        r.ID,
		FromAsset: r.FromToken,
		ToAsset:   r.ToToken,
		AmountIn:  amountIn,
		AmountOut: amountOut,
	}, nil
}

// apiExecution is the wire representation of an executed route.
type apiExecution struct {
	TxHash      string `json:"txHash"`
	RealizedIn  string `json:"realizedIn"`
	RealizedOut string `json:"realizedOut"`
}

func (e *apiExecution) toDomain() (domain.ExecutedRoute, error) {
	in, err := parseAmount(e.RealizedIn)
	if err != nil {
		return domain.ExecutedRoute{}, fmt.Errorf("aggregator: realizedIn: %w", err)
	}
	out, err := parseAmount(e.RealizedOut)
	if err != nil {
		return domain.ExecutedRoute{}, fmt.Errorf("aggregator: realizedOut: %w", err)
	}
	return domain.ExecutedRoute{
		RealizedIn:  in,
		RealizedOut: out,
		TxRef:       e.TxHash,
	}, nil
}

func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return n, nil
}
