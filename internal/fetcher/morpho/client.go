package morpho

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/flare-signals/signal-engine/internal/fetcher"
	"github.com/flare-signals/signal-engine/internal/registry"
	"github.com/flare-signals/signal-engine/internal/signaldsl"
)

// Client is the Morpho Blue reference fetcher binding. It implements
// fetcher.Fetcher over one ethclient connection per configured chain.
type Client struct {
	abi     abi.ABI
	chains  map[int64]*ChainConfig
	clients map[int64]*ethclient.Client
}

// Dial connects an ethclient.Client for every configured chain and returns
// a ready-to-use Client. Connection failures are fatal: a fetcher that
// cannot reach its configured chains cannot serve any signal scoped to
// them.
func Dial(ctx context.Context, chains map[int64]*ChainConfig) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(marketBlueABI))
	if err != nil {
		return nil, fmt.Errorf("parsing morpho blue abi: %w", err)
	}

	clients := make(map[int64]*ethclient.Client, len(chains))
	for chainID, cfg := range chains {
		c, err := ethclient.DialContext(ctx, cfg.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("dialing chain %d: %w", chainID, err)
		}
		clients[chainID] = c
	}

	return &Client{abi: parsed, chains: chains, clients: clients}, nil
}

// Close releases every underlying RPC connection.
func (c *Client) Close() {
	for _, cl := range c.clients {
		cl.Close()
	}
}

func (c *Client) resolve(chainID int64) (*ethclient.Client, *ChainConfig, error) {
	cl, ok := c.clients[chainID]
	if !ok {
		return nil, nil, &fetcher.Error{Retryable: false, Cause: fmt.Errorf("no fetcher configured for chain %d", chainID)}
	}
	return cl, c.chains[chainID], nil
}

// FetchState implements fetcher.Fetcher. entityType must be "market" or
// "position"; filters must supply "market_id" (and, for position,
// "user").
func (c *Client) FetchState(ctx context.Context, chainID int64, entityType string, filters []signaldsl.Filter, field string, atTime time.Time) (float64, error) {
	cl, cfg, err := c.resolve(chainID)
	if err != nil {
		return 0, err
	}

	marketID, ok := filterValue(filters, "market_id")
	if !ok {
		return 0, &fetcher.ErrNotFound{EntityType: entityType}
	}
	idHash := common.HexToHash(marketID)

	block, err := resolveBlock(ctx, cl, cfg, time.Now(), atTime)
	if err != nil {
		return 0, &fetcher.Error{Retryable: true, Cause: err}
	}

	switch entityType {
	case "market":
		return c.callMarket(ctx, cl, cfg, idHash, field, block)
	case "position":
		user, ok := filterValue(filters, "user")
		if !ok {
			return 0, &fetcher.ErrNotFound{EntityType: entityType}
		}
		return c.callPosition(ctx, cl, cfg, idHash, common.HexToAddress(user), field, block)
	default:
		return 0, &fetcher.ErrNotFound{EntityType: entityType}
	}
}

func (c *Client) callMarket(ctx context.Context, cl *ethclient.Client, cfg *ChainConfig, marketID common.Hash, field string, block *big.Int) (float64, error) {
	data, err := c.abi.Pack("market", marketID)
	if err != nil {
		return 0, fmt.Errorf("packing market call: %w", err)
	}

	out, err := cl.CallContract(ctx, ethereum.CallMsg{To: &cfg.ContractAddress, Data: data}, block)
	if err != nil {
		return 0, &fetcher.Error{Retryable: true, Cause: err}
	}

	values, err := c.abi.Unpack("market", out)
	if err != nil {
		return 0, fmt.Errorf("unpacking market result: %w", err)
	}

	if field == "utilization" {
		return computeUtilization(values)
	}

	raw, err := marketField(values, field)
	if err != nil {
		return 0, err
	}
	return scaleDecimals(raw, field), nil
}

func (c *Client) callPosition(ctx context.Context, cl *ethclient.Client, cfg *ChainConfig, marketID common.Hash, user common.Address, field string, block *big.Int) (float64, error) {
	data, err := c.abi.Pack("position", marketID, user)
	if err != nil {
		return 0, fmt.Errorf("packing position call: %w", err)
	}

	out, err := cl.CallContract(ctx, ethereum.CallMsg{To: &cfg.ContractAddress, Data: data}, block)
	if err != nil {
		return 0, &fetcher.Error{Retryable: true, Cause: err}
	}

	values, err := c.abi.Unpack("position", out)
	if err != nil {
		return 0, fmt.Errorf("unpacking position result: %w", err)
	}

	raw, err := positionField(values, field)
	if err != nil {
		return 0, err
	}
	return scaleDecimals(raw, field), nil
}

// FetchEvents implements fetcher.Fetcher by filtering Morpho Blue logs in
// [windowStart, windowEnd] and applying the aggregation in-process.
func (c *Client) FetchEvents(ctx context.Context, chainID int64, eventType string, filters []signaldsl.Filter, field string, aggregation signaldsl.Aggregation, windowStart, windowEnd time.Time) (float64, error) {
	cl, cfg, err := c.resolve(chainID)
	if err != nil {
		return 0, err
	}

	event, ok := c.abi.Events[eventType]
	if !ok {
		return 0, &fetcher.ErrSchema{Type: eventType, Field: field}
	}

	from, to, err := blockRangeForWindow(ctx, cl, cfg, time.Now(), windowStart, windowEnd)
	if err != nil {
		return 0, &fetcher.Error{Retryable: true, Cause: err}
	}

	query := ethereum.FilterQuery{
		FromBlock: from,
		ToBlock:   to,
		Addresses: []common.Address{cfg.ContractAddress},
		Topics:    [][]common.Hash{{event.ID}},
	}
	if marketID, ok := filterValue(filters, "market_id"); ok {
		query.Topics = append(query.Topics, []common.Hash{common.HexToHash(marketID)})
	}

	logs, err := cl.FilterLogs(ctx, query)
	if err != nil {
		return 0, &fetcher.Error{Retryable: true, Cause: err}
	}

	readings := make([]float64, 0, len(logs))
	for _, l := range logs {
		values, err := c.abi.Unpack(eventType, l.Data)
		if err != nil {
			continue
		}
		raw, err := eventField(values, eventType, field)
		if err != nil {
			continue
		}
		readings = append(readings, scaleDecimals(raw, field))
	}

	return aggregate(readings, aggregation), nil
}

func filterValue(filters []signaldsl.Filter, field string) (string, bool) {
	for _, f := range filters {
		if f.Field != field {
			continue
		}
		s, ok := f.Value.(string)
		return s, ok
	}
	return "", false
}

// aggregate mirrors spec.md §7's empty-set zero-default policy: every
// aggregation over an empty reading set returns 0, not an error.
func aggregate(readings []float64, agg signaldsl.Aggregation) float64 {
	if len(readings) == 0 {
		return 0
	}
	switch agg {
	case signaldsl.AggCount:
		return float64(len(readings))
	case signaldsl.AggSum:
		sum := 0.0
		for _, r := range readings {
			sum += r
		}
		return sum
	case signaldsl.AggAvg:
		sum := 0.0
		for _, r := range readings {
			sum += r
		}
		return sum / float64(len(readings))
	case signaldsl.AggMin:
		min := readings[0]
		for _, r := range readings[1:] {
			if r < min {
				min = r
			}
		}
		return min
	case signaldsl.AggMax:
		max := readings[0]
		for _, r := range readings[1:] {
			if r > max {
				max = r
			}
		}
		return max
	default:
		return 0
	}
}

// registryDecimals maps a (field) to its NumericSemantics.Decimals, used to
// scale a raw on-chain integer into the evaluator's float64 space. Kept
// alongside the Morpho metric catalog so the two never drift apart.
var registryDecimals = func() map[string]int {
	reg := registry.NewMorphoRegistry()
	out := make(map[string]int)
	for _, m := range reg.ByProtocol(registry.MorphoBlue) {
		out[m.Field] = m.Semantics.Decimals
	}
	return out
}()

func scaleDecimals(raw *big.Int, field string) float64 {
	decimals, ok := registryDecimals[field]
	if !ok || decimals == 0 {
		f := new(big.Float).SetInt(raw)
		v, _ := f.Float64()
		return v
	}
	scale := new(big.Float).SetFloat64(pow10(decimals))
	f := new(big.Float).SetInt(raw)
	f.Quo(f, scale)
	v, _ := f.Float64()
	return v
}

func pow10(n int) float64 {
	v := 1.0
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}
