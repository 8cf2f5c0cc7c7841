package model

import "time"

// CouncilSession is one decision cycle produced by the decision engine.
// Sessions are append-only: created once, never updated or deleted.
type CouncilSession struct {
	ID                 string    `gorm:"primaryKey;size:64" json:"id"`
	AssetID            string    `gorm:"size:64;index;not null" json:"asset_id"`
	Timestamp          time.Time `gorm:"index;not null" json:"timestamp"`
	SentimentScore     float64   `json:"sentiment_score"`
	TechnicalSignal    string    `gorm:"size:20" json:"technical_signal"`
	TechnicalStrength  float64   `json:"technical_strength"`
	VisionAnalysis     string    `gorm:"type:text" json:"vision_analysis"`
	VisionConfidence   float64   `json:"vision_confidence"`
	VisionValid        bool      `json:"vision_valid"`
	FinalDecision      string    `gorm:"size:10;not null;index" json:"final_decision"`
	DecisionConfidence float64   `json:"decision_confidence"`
	ReasoningLog       string    `gorm:"type:text" json:"reasoning_log"`
	// TechnicalDetail carries the optional indicator blob. It is decoded
	// best-effort: malformed JSON leaves it nil without failing the record.
	TechnicalDetail map[string]float64 `gorm:"-" json:"technical_detail,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}

const (
	DecisionBuy  = "BUY"
	DecisionSell = "SELL"
	DecisionHold = "HOLD"
)
