package metrics

import (
	"tradedeck/src/model"
)

// Pure calculations over entry/current/stop/take-profit prices. Values are
// deliberately not clamped: a negative distance-to-stop means the stop has
// already been breached and the sign carries that information. Any 0-100
// clamping is a presentation concern.

// UnrealizedPnl returns the open profit in quote currency.
func UnrealizedPnl(direction string, entry, current, size float64) float64 {
	if direction == model.DirectionShort {
		return (entry - current) * size
	}
	return (current - entry) * size
}

// UnrealizedPnlPercent returns the open profit relative to entry.
func UnrealizedPnlPercent(direction string, entry, current float64) float64 {
	if entry == 0 {
		return 0
	}
	if direction == model.DirectionShort {
		return (entry - current) / entry * 100
	}
	return (current - entry) / entry * 100
}

// DistanceToStopPercent returns how far the current price sits from the
// stop, relative to the current price. Negative once the stop is breached.
func DistanceToStopPercent(direction string, current, stop float64) float64 {
	if current == 0 {
		return 0
	}
	if direction == model.DirectionShort {
		return (stop - current) / current * 100
	}
	return (current - stop) / current * 100
}

// DistanceToTakePercent returns nil when the trade has no take-profit.
func DistanceToTakePercent(direction string, current float64, takeProfit *float64) *float64 {
	if takeProfit == nil || current == 0 {
		return nil
	}
	var d float64
	if direction == model.DirectionShort {
		d = (current - *takeProfit) / current * 100
	} else {
		d = (*takeProfit - current) / current * 100
	}
	return &d
}

// Compute derives the full metrics snapshot for one trade at a price.
func Compute(trade model.Trade, currentPrice float64) model.LiveMetrics {
	return model.LiveMetrics{
		CurrentPrice:          currentPrice,
		UnrealizedPnl:         UnrealizedPnl(trade.Direction, trade.EntryPrice, currentPrice, trade.Size),
		UnrealizedPnlPercent:  UnrealizedPnlPercent(trade.Direction, trade.EntryPrice, currentPrice),
		DistanceToStopPercent: DistanceToStopPercent(trade.Direction, currentPrice, trade.StopLossPrice),
		DistanceToTakePercent: DistanceToTakePercent(trade.Direction, currentPrice, trade.TakeProfitPrice),
	}
}
