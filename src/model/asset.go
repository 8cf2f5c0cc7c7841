package model

import "time"

// Asset is a row from the backing store's assets table. The engine only
// reads it; rows are created and priced by external ingestion.
type Asset struct {
	ID                string    `gorm:"primaryKey;size:64" json:"id"`
	Symbol            string    `gorm:"size:50;uniqueIndex;not null" json:"symbol"`
	Name              string    `gorm:"size:255" json:"name"`
	LastPrice         float64   `json:"last_price"`
	Volume24h         float64   `json:"volume_24h"`
	PriceChange24hPct float64   `json:"price_change_24h_pct"`
	IsActive          bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ScannerAsset is the market-scanner projection of an asset.
type ScannerAsset struct {
	ID                string  `json:"id"`
	Symbol            string  `json:"symbol"`
	Name              string  `json:"name"`
	LastPrice         float64 `json:"last_price"`
	Volume24h         float64 `json:"volume_24h"`
	PriceChange24hPct float64 `json:"price_change_24h_pct"`
}

func (a Asset) ToScannerAsset() ScannerAsset {
	return ScannerAsset{
		ID:                a.ID,
		Symbol:            a.Symbol,
		Name:              a.Name,
		LastPrice:         a.LastPrice,
		Volume24h:         a.Volume24h,
		PriceChange24hPct: a.PriceChange24hPct,
	}
}
