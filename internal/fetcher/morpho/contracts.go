// Package morpho is the reference fetcher binding for Morpho Blue
// (spec.md §4.5): it maps (entity_type, field) and (event_type, field) to
// calls against the Morpho Blue singleton contract over an EVM RPC.
package morpho

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// marketBlueABI is the slice of the Morpho Blue singleton ABI this fetcher
// needs: the two accounting view functions and the seven position-changing
// events (spec.md §6).
const marketBlueABI = `[
  {"type":"function","name":"market","inputs":[{"name":"id","type":"bytes32"}],
   "outputs":[
     {"name":"totalSupplyAssets","type":"uint128"},
     {"name":"totalSupplyShares","type":"uint128"},
     {"name":"totalBorrowAssets","type":"uint128"},
     {"name":"totalBorrowShares","type":"uint128"},
     {"name":"lastUpdate","type":"uint128"},
     {"name":"fee","type":"uint128"}
   ],"stateMutability":"view"},
  {"type":"function","name":"position","inputs":[{"name":"id","type":"bytes32"},{"name":"user","type":"address"}],
   "outputs":[
     {"name":"supplyShares","type":"uint256"},
     {"name":"borrowShares","type":"uint128"},
     {"name":"collateral","type":"uint128"}
   ],"stateMutability":"view"},
  {"type":"event","name":"Supply","inputs":[
     {"name":"id","type":"bytes32","indexed":true},
     {"name":"caller","type":"address","indexed":false},
     {"name":"onBehalf","type":"address","indexed":true},
     {"name":"assets","type":"uint256","indexed":false},
     {"name":"shares","type":"uint256","indexed":false}]},
  {"type":"event","name":"Withdraw","inputs":[
     {"name":"id","type":"bytes32","indexed":true},
     {"name":"caller","type":"address","indexed":false},
     {"name":"onBehalf","type":"address","indexed":true},
     {"name":"receiver","type":"address","indexed":false},
     {"name":"assets","type":"uint256","indexed":false},
     {"name":"shares","type":"uint256","indexed":false}]},
  {"type":"event","name":"Borrow","inputs":[
     {"name":"id","type":"bytes32","indexed":true},
     {"name":"caller","type":"address","indexed":false},
     {"name":"onBehalf","type":"address","indexed":true},
     {"name":"receiver","type":"address","indexed":false},
     {"name":"assets","type":"uint256","indexed":false},
     {"name":"shares","type":"uint256","indexed":false}]},
  {"type":"event","name":"Repay","inputs":[
     {"name":"id","type":"bytes32","indexed":true},
     {"name":"caller","type":"address","indexed":false},
     {"name":"onBehalf","type":"address","indexed":true},
     {"name":"assets","type":"uint256","indexed":false},
     {"name":"shares","type":"uint256","indexed":false}]},
  {"type":"event","name":"SupplyCollateral","inputs":[
     {"name":"id","type":"bytes32","indexed":true},
     {"name":"caller","type":"address","indexed":false},
     {"name":"onBehalf","type":"address","indexed":true},
     {"name":"assets","type":"uint256","indexed":false}]},
  {"type":"event","name":"WithdrawCollateral","inputs":[
     {"name":"id","type":"bytes32","indexed":true},
     {"name":"caller","type":"address","indexed":false},
     {"name":"onBehalf","type":"address","indexed":true},
     {"name":"receiver","type":"address","indexed":false},
     {"name":"assets","type":"uint256","indexed":false}]},
  {"type":"event","name":"Liquidate","inputs":[
     {"name":"id","type":"bytes32","indexed":true},
     {"name":"caller","type":"address","indexed":false},
     {"name":"borrower","type":"address","indexed":true},
     {"name":"repaidAssets","type":"uint256","indexed":false},
     {"name":"repaidShares","type":"uint256","indexed":false},
     {"name":"seizedAssets","type":"uint256","indexed":false},
     {"name":"badDebtAssets","type":"uint256","indexed":false},
     {"name":"badDebtShares","type":"uint256","indexed":false}]}
]`

// ChainConfig is the per-chain wiring the fetcher needs: the RPC endpoint,
// the Morpho Blue singleton address on that chain, and the average block
// time used for block-by-timestamp approximation (spec.md §4.5).
type ChainConfig struct {
	ChainID         int64
	RPCURL          string
	ContractAddress common.Address
	AvgBlockTime    time.Duration
}

// DefaultChainConfigs seeds the seven chains spec.md §6 names as in scope
// for the Morpho Blue reference binding. RPCURL is intentionally left
// blank: operators inject it via config (spec.md ambient config layer),
// since a public default endpoint is not something a library should bake
// in or rate-limit against in production.
func DefaultChainConfigs() map[int64]*ChainConfig {
	return map[int64]*ChainConfig{
		1: {ChainID: 1, ContractAddress: common.HexToAddress("0xBBBBBbbBBb9cC5e90e3b3Af64bdAF62C37EEFFCb"), AvgBlockTime: 12 * time.Second},
		8453: {ChainID: 8453, ContractAddress: common.HexToAddress("0xBBBBBbbBBb9cC5e90e3b3Af64bdAF62C37EEFFCb"), AvgBlockTime: 2 * time.Second},
		130: {ChainID: 130, ContractAddress: common.HexToAddress("0xBBBBBbbBBb9cC5e90e3b3Af64bdAF62C37EEFFCb"), AvgBlockTime: 1 * time.Second},
		747474: {ChainID: 747474, ContractAddress: common.HexToAddress("0xBBBBBbbBBb9cC5e90e3b3Af64bdAF62C37EEFFCb"), AvgBlockTime: 2 * time.Second},
		1923: {ChainID: 1923, ContractAddress: common.HexToAddress("0xBBBBBbbBBb9cC5e90e3b3Af64bdAF62C37EEFFCb"), AvgBlockTime: 2 * time.Second},
		999: {ChainID: 999, ContractAddress: common.HexToAddress("0xBBBBBbbBBb9cC5e90e3b3Af64bdAF62C37EEFFCb"), AvgBlockTime: 1 * time.Second},
		42161: {ChainID: 42161, ContractAddress: common.HexToAddress("0xBBBBBbbBBb9cC5e90e3b3Af64bdAF62C37EEFFCb"), AvgBlockTime: 250 * time.Millisecond},
	}
}
