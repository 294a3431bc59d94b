package morpho

import (
	"fmt"
	"math/big"

	"github.com/flare-signals/signal-engine/internal/fetcher"
)

var marketFieldIndex = map[string]int{
	"total_supply_assets": 0,
	"total_supply_shares": 1,
	"total_borrow_assets": 2,
	"total_borrow_shares": 3,
	"last_update":         4,
	"fee":                 5,
}

var positionFieldIndex = map[string]int{
	"supply_shares": 0,
	"borrow_shares": 1,
	"collateral":    2,
}

// eventFieldIndex maps each event's non-indexed ABI inputs (in declaration
// order) to the registry field they surface. The id/onBehalf/borrower
// inputs are marked indexed in the ABI and are not part of this slice.
var eventFieldIndex = map[string]map[string]int{
	"Supply":             {"assets": 1, "shares": 2},
	"Withdraw":           {"assets": 2, "shares": 3},
	"Borrow":             {"assets": 2, "shares": 3},
	"Repay":              {"assets": 1, "shares": 2},
	"SupplyCollateral":   {"assets": 1},
	"WithdrawCollateral": {"assets": 2},
	"Liquidate": {
		"repaid_assets": 1,
		"repaid_shares": 2,
		"seized_assets": 3,
	},
}

func marketField(values []interface{}, field string) (*big.Int, error) {
	idx, ok := marketFieldIndex[field]
	if !ok {
		return nil, &fetcher.ErrSchema{Type: "market", Field: field}
	}
	return toBigInt(values[idx])
}

func positionField(values []interface{}, field string) (*big.Int, error) {
	idx, ok := positionFieldIndex[field]
	if !ok {
		return nil, &fetcher.ErrSchema{Type: "position", Field: field}
	}
	return toBigInt(values[idx])
}

func eventField(values []interface{}, eventType, field string) (*big.Int, error) {
	idx, ok := eventFieldIndex[eventType][field]
	if !ok {
		return nil, &fetcher.ErrSchema{Type: eventType, Field: field}
	}
	return toBigInt(values[idx])
}

func toBigInt(v interface{}) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		return n, nil
	default:
		return nil, fmt.Errorf("unexpected ABI decode type %T", v)
	}
}

// computeUtilization derives the market's borrow/supply ratio as a plain
// fraction (0.25 for 25%) directly from the unpacked market() outputs, since
// it has no independent on-chain getter. It is registered as a market state
// field, and no decimals are divided out of the result.
func computeUtilization(values []interface{}) (float64, error) {
	supply, err := toBigInt(values[0])
	if err != nil {
		return 0, err
	}
	borrow, err := toBigInt(values[2])
	if err != nil {
		return 0, err
	}
	if supply.Sign() == 0 {
		return 0, nil // division-by-zero policy (spec.md §7): resolves to 0, not an error
	}
	ratio := new(big.Float).Quo(new(big.Float).SetInt(borrow), new(big.Float).SetInt(supply))
	v, _ := ratio.Float64()
	return v, nil
}
