package model

// LiveMetrics holds the display values derived from a trade and the
// current asset price. Recomputed on every relevant price tick; never
// persisted and never a source of truth.
type LiveMetrics struct {
	CurrentPrice          float64  `json:"current_price"`
	UnrealizedPnl         float64  `json:"unrealized_pnl"`
	UnrealizedPnlPercent  float64  `json:"unrealized_pnl_percent"`
	DistanceToStopPercent float64  `json:"distance_to_stop_percent"`
	DistanceToTakePercent *float64 `json:"distance_to_take_profit_percent,omitempty"`
}

// TradeWithMetrics is what the dashboard renders for an open position.
type TradeWithMetrics struct {
	Trade
	Metrics LiveMetrics `json:"metrics"`
}
