package morpho

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

// resolveBlock approximates the block number nearest-not-after atTime, per
// spec.md §4.5: `estimatedBlock = latest - Δ/avgBlockTime`. It is an
// approximation, not an exact timestamp index (spec.md §9 Open Question
// "Block-time approximation").
func resolveBlock(ctx context.Context, client *ethclient.Client, cfg *ChainConfig, now, atTime time.Time) (*big.Int, error) {
	if !atTime.Before(now) {
		return nil, nil // current: nil block number means "latest" to go-ethereum
	}

	delta := now.Sub(atTime)
	if cfg.AvgBlockTime <= 0 {
		return nil, fmt.Errorf("chain %d: average block time must be positive", cfg.ChainID)
	}
	blocksBack := int64(delta / cfg.AvgBlockTime)
	if blocksBack == 0 {
		return nil, nil // less than one block back: still the latest block
	}

	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching latest header: %w", err)
	}

	latest := header.Number.Int64()
	estimated := latest - blocksBack
	if estimated < 0 {
		estimated = 0
	}
	return big.NewInt(estimated), nil
}

// blockRangeForWindow resolves the [from, to] block bounds for an event
// window, used by FetchEvents' FilterLogs query.
func blockRangeForWindow(ctx context.Context, client *ethclient.Client, cfg *ChainConfig, now, windowStart, windowEnd time.Time) (*big.Int, *big.Int, error) {
	from, err := resolveBlock(ctx, client, cfg, now, windowStart)
	if err != nil {
		return nil, nil, err
	}
	to, err := resolveBlock(ctx, client, cfg, now, windowEnd)
	if err != nil {
		return nil, nil, err
	}
	return from, to, nil
}
