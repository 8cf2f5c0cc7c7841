package notify

import (
	"testing"

	"tradedeck/src/model"
)

func TestForDecision(t *testing.T) {
	p := NewPolicy()

	tests := []struct {
		name         string
		decision     string
		confidence   float64
		wantSeverity Severity
		wantNil      bool
	}{
		{name: "buy is positive", decision: model.DecisionBuy, confidence: 50, wantSeverity: SeverityPositive},
		{name: "sell is negative", decision: model.DecisionSell, confidence: 50, wantSeverity: SeverityNegative},
		{name: "confident hold is info", decision: model.DecisionHold, confidence: 71, wantSeverity: SeverityInfo},
		{name: "hold at floor suppressed", decision: model.DecisionHold, confidence: 70, wantNil: true},
		{name: "timid hold suppressed", decision: model.DecisionHold, confidence: 40, wantNil: true},
		{name: "unknown decision suppressed", decision: "WAIT", confidence: 99, wantNil: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			alert := p.ForDecision(model.CouncilSession{
				FinalDecision:      tc.decision,
				DecisionConfidence: tc.confidence,
			})
			if tc.wantNil {
				if alert != nil {
					t.Fatalf("expected no alert, got %+v", alert)
				}
				return
			}
			if alert == nil {
				t.Fatalf("expected an alert")
			}
			if alert.Severity != tc.wantSeverity {
				t.Fatalf("expected severity %s, got %s", tc.wantSeverity, alert.Severity)
			}
		})
	}
}

func TestForTradeClose(t *testing.T) {
	p := NewPolicy()
	loss := -120.5
	win := 340.0

	tests := []struct {
		name         string
		status       string
		pnl          *float64
		wantSeverity Severity
		wantNil      bool
	}{
		{name: "stopped out is negative", status: model.TradeStatusStoppedOut, pnl: &loss, wantSeverity: SeverityNegative},
		{name: "take profit is positive", status: model.TradeStatusTakeProfit, pnl: &win, wantSeverity: SeverityPositive},
		{name: "closed in profit is positive", status: model.TradeStatusClosed, pnl: &win, wantSeverity: SeverityPositive},
		{name: "closed at loss is negative", status: model.TradeStatusClosed, pnl: &loss, wantSeverity: SeverityNegative},
		{name: "closed without pnl is positive", status: model.TradeStatusClosed, wantSeverity: SeverityPositive},
		{name: "open status yields nothing", status: model.TradeStatusOpen, wantNil: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			alert := p.ForTradeClose(model.Trade{
				Direction: model.DirectionLong,
				AssetID:   "a-1",
				Status:    tc.status,
				Pnl:       tc.pnl,
			})
			if tc.wantNil {
				if alert != nil {
					t.Fatalf("expected no alert, got %+v", alert)
				}
				return
			}
			if alert == nil {
				t.Fatalf("expected an alert")
			}
			if alert.Severity != tc.wantSeverity {
				t.Fatalf("expected severity %s, got %s", tc.wantSeverity, alert.Severity)
			}
		})
	}
}
