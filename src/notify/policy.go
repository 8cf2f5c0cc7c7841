package notify

import (
	"fmt"

	"tradedeck/src/model"
)

type Severity string

const (
	SeverityPositive Severity = "positive"
	SeverityNegative Severity = "negative"
	SeverityInfo     Severity = "info"
)

// Alert is a user-facing notification. Pure data; rendering happens
// elsewhere.
type Alert struct {
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	Body     string   `json:"body"`
}

// HoldConfidenceFloor is the decision confidence a HOLD must exceed to be
// worth interrupting the user for.
const HoldConfidenceFloor = 70.0

// Policy maps state transitions to alert severities. Each qualifying
// transition yields at most one alert. The policy does not de-duplicate
// across reconnects: a reconciliation that re-delivers an already-seen
// transition may re-notify.
type Policy struct{}

func NewPolicy() *Policy {
	return &Policy{}
}

// ForDecision maps a new council session to an alert, or nil when the
// decision should not notify.
func (p *Policy) ForDecision(session model.CouncilSession) *Alert {
	switch session.FinalDecision {
	case model.DecisionBuy:
		return &Alert{
			Severity: SeverityPositive,
			Title:    "Council decision: BUY",
			Body:     fmt.Sprintf("Confidence %.0f%%", session.DecisionConfidence),
		}
	case model.DecisionSell:
		return &Alert{
			Severity: SeverityNegative,
			Title:    "Council decision: SELL",
			Body:     fmt.Sprintf("Confidence %.0f%%", session.DecisionConfidence),
		}
	case model.DecisionHold:
		if session.DecisionConfidence <= HoldConfidenceFloor {
			return nil
		}
		return &Alert{
			Severity: SeverityInfo,
			Title:    "Council decision: HOLD",
			Body:     fmt.Sprintf("Confidence %.0f%%", session.DecisionConfidence),
		}
	default:
		return nil
	}
}

// ForTradeClose maps a terminal trade transition to an alert.
func (p *Policy) ForTradeClose(trade model.Trade) *Alert {
	switch trade.Status {
	case model.TradeStatusStoppedOut:
		return &Alert{
			Severity: SeverityNegative,
			Title:    "Trade stopped out",
			Body:     closeBody(trade),
		}
	case model.TradeStatusTakeProfit:
		return &Alert{
			Severity: SeverityPositive,
			Title:    "Take profit hit",
			Body:     closeBody(trade),
		}
	case model.TradeStatusClosed:
		severity := SeverityPositive
		if trade.Pnl != nil && *trade.Pnl < 0 {
			severity = SeverityNegative
		}
		return &Alert{
			Severity: severity,
			Title:    "Trade closed",
			Body:     closeBody(trade),
		}
	default:
		return nil
	}
}

func closeBody(trade model.Trade) string {
	if trade.Pnl == nil {
		return fmt.Sprintf("%s %s", trade.Direction, trade.AssetID)
	}
	return fmt.Sprintf("%s %s, realized pnl %.2f", trade.Direction, trade.AssetID, *trade.Pnl)
}
