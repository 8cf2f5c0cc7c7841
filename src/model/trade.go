package model

import "time"

type Trade struct {
	ID              string     `gorm:"primaryKey;size:64" json:"id"`
	AssetID         string     `gorm:"size:64;index;not null" json:"asset_id"`
	Direction       string     `gorm:"size:10;not null" json:"direction"`
	EntryPrice      float64    `gorm:"not null" json:"entry_price"`
	StopLossPrice   float64    `gorm:"not null" json:"stop_loss_price"`
	TakeProfitPrice *float64   `json:"take_profit_price,omitempty"`
	Size            float64    `gorm:"not null" json:"size"`
	Status          string     `gorm:"size:50;not null;default:open;index" json:"status"`
	ExitPrice       *float64   `json:"exit_price,omitempty"`
	ExitTime        *time.Time `json:"exit_time,omitempty"`
	Pnl             *float64   `json:"pnl,omitempty"`
	// UpdateSeq is a server-assigned monotonic counter bumped on every row
	// change. 0 means the source did not provide one.
	UpdateSeq int64     `gorm:"not null;default:0" json:"update_seq"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	DirectionLong  = "LONG"
	DirectionShort = "SHORT"
)

const (
	TradeStatusOpen       = "open"
	TradeStatusActive     = "active"
	TradeStatusClosed     = "closed"
	TradeStatusStoppedOut = "stopped_out"
	TradeStatusTakeProfit = "take_profit"
)
