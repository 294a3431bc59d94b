package registry

// Morpho Blue is the reference protocol binding (spec.md §4.5). These are
// the (entity_type|event_type, field) tuples the Morpho fetcher must
// support; mirrors the market/position accounting fields exposed by the
// Morpho Blue singleton contract.
const MorphoBlue = "morpho-blue"

// NewMorphoRegistry builds the metric catalog for the Morpho Blue protocol.
func NewMorphoRegistry() *Registry {
	return New([]*MetricDef{
		// State: market-level accounting, read via Morpho's `market(id)` view.
		{Protocol: MorphoBlue, Kind: KindState, EntityOrEventType: "market", Field: "total_supply_assets", Semantics: NumericSemantics{Decimals: 18, Description: "total underlying asset units supplied to the market"}},
		{Protocol: MorphoBlue, Kind: KindState, EntityOrEventType: "market", Field: "total_supply_shares", Semantics: NumericSemantics{Decimals: 18, Description: "total supply shares outstanding"}},
		{Protocol: MorphoBlue, Kind: KindState, EntityOrEventType: "market", Field: "total_borrow_assets", Semantics: NumericSemantics{Decimals: 18, Description: "total underlying asset units borrowed"}},
		{Protocol: MorphoBlue, Kind: KindState, EntityOrEventType: "market", Field: "total_borrow_shares", Semantics: NumericSemantics{Decimals: 18, Description: "total borrow shares outstanding"}},
		{Protocol: MorphoBlue, Kind: KindState, EntityOrEventType: "market", Field: "last_update", Semantics: NumericSemantics{Decimals: 0, Description: "unix timestamp of the market's last accrual"}},
		{Protocol: MorphoBlue, Kind: KindState, EntityOrEventType: "market", Field: "fee", Semantics: NumericSemantics{Decimals: 18, Description: "protocol fee, WAD-scaled"}},
		{Protocol: MorphoBlue, Kind: KindState, EntityOrEventType: "market", Field: "utilization", Semantics: NumericSemantics{Decimals: 0, Description: "borrow/supply ratio as a plain fraction, computed from market()"}},

		// State: per-position accounting, read via Morpho's `position(id, user)` view.
		{Protocol: MorphoBlue, Kind: KindState, EntityOrEventType: "position", Field: "supply_shares", Semantics: NumericSemantics{Decimals: 18, Description: "user's supply shares in the market"}},
		{Protocol: MorphoBlue, Kind: KindState, EntityOrEventType: "position", Field: "borrow_shares", Semantics: NumericSemantics{Decimals: 18, Description: "user's borrow shares in the market"}},
		{Protocol: MorphoBlue, Kind: KindState, EntityOrEventType: "position", Field: "collateral", Semantics: NumericSemantics{Decimals: 18, Description: "user's posted collateral, asset-scaled"}},
		// position.health_factor is intentionally not registered: computing it
		// needs an external price oracle this fetcher does not integrate (see
		// DESIGN.md), so a compilable signal must never reference a field the
		// reference fetcher can't serve.

		// Events: emitted by the Morpho Blue singleton during user actions.
		{Protocol: MorphoBlue, Kind: KindEvent, EntityOrEventType: "Supply", Field: "assets", Semantics: NumericSemantics{Decimals: 18, Description: "asset units supplied in this event"}},
		{Protocol: MorphoBlue, Kind: KindEvent, EntityOrEventType: "Supply", Field: "shares", Semantics: NumericSemantics{Decimals: 18, Description: "supply shares minted in this event"}},
		{Protocol: MorphoBlue, Kind: KindEvent, EntityOrEventType: "Withdraw", Field: "assets", Semantics: NumericSemantics{Decimals: 18, Description: "asset units withdrawn in this event"}},
		{Protocol: MorphoBlue, Kind: KindEvent, EntityOrEventType: "Borrow", Field: "assets", Semantics: NumericSemantics{Decimals: 18, Description: "asset units borrowed in this event"}},
		{Protocol: MorphoBlue, Kind: KindEvent, EntityOrEventType: "Repay", Field: "assets", Semantics: NumericSemantics{Decimals: 18, Description: "asset units repaid in this event"}},
		{Protocol: MorphoBlue, Kind: KindEvent, EntityOrEventType: "SupplyCollateral", Field: "assets", Semantics: NumericSemantics{Decimals: 18, Description: "collateral units deposited in this event"}},
		{Protocol: MorphoBlue, Kind: KindEvent, EntityOrEventType: "WithdrawCollateral", Field: "assets", Semantics: NumericSemantics{Decimals: 18, Description: "collateral units withdrawn in this event"}},
		{Protocol: MorphoBlue, Kind: KindEvent, EntityOrEventType: "Liquidate", Field: "repaid_assets", Semantics: NumericSemantics{Decimals: 18, Description: "debt assets repaid during liquidation"}},
		{Protocol: MorphoBlue, Kind: KindEvent, EntityOrEventType: "Liquidate", Field: "seized_assets", Semantics: NumericSemantics{Decimals: 18, Description: "collateral assets seized during liquidation"}},
	})
}
