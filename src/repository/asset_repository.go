package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradedeck/src/database"
	"tradedeck/src/model"
)

// scannerSortColumns maps the sort keys the scanner UI is allowed to use
// onto real columns. Anything outside the map falls back to volume so the
// sort key can never reach the query as raw SQL.
var scannerSortColumns = map[string]string{
	"symbol":     "symbol",
	"lastPrice":  "last_price",
	"last_price": "last_price",
	"volume":     "volume_24h",
	"volume_24h": "volume_24h",
	"change24h":  "price_change_24h_pct",
}

// AssetRepository handles assets in the main database. Reads serve the
// scanner; the upsert path is used by the price feed ingester.
type AssetRepository struct {
	db *gorm.DB
}

// NewAssetRepository creates a new repository instance.
// It uses the MainDB connection by default.
func NewAssetRepository() *AssetRepository {
	logger.WithField("component", "AssetRepository").
		Info("Creating new AssetRepository with MainDB")

	return &AssetRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or custom sessions/transactions.
func (r *AssetRepository) WithDB(db *gorm.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// FindScanner fetches the active assets for the scanner screen, sorted by
// an allowlisted column.
func (r *AssetRepository) FindScanner(
	ctx context.Context,
	sortBy string,
	direction string,
	limit int,
) ([]model.Asset, error) {

	if limit <= 0 {
		limit = 50
	}

	column, ok := scannerSortColumns[sortBy]
	if !ok {
		column = "volume_24h"
	}
	dir := "DESC"
	if strings.EqualFold(direction, "asc") {
		dir = "ASC"
	}

	logger.WithFields(map[string]interface{}{
		"repo":  "AssetRepository",
		"op":    "FindScanner",
		"sort":  column,
		"dir":   dir,
		"limit": limit,
	}).Debug("Fetching scanner assets")

	var assets []model.Asset

	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order(column + " " + dir).
		Limit(limit).
		Find(&assets).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "AssetRepository",
			"op":   "FindScanner",
		}).WithError(err).Error("Failed to fetch scanner assets")

		return nil, err
	}

	return assets, nil
}

// FindActive fetches every active asset, used to seed the price baseline.
func (r *AssetRepository) FindActive(ctx context.Context) ([]model.Asset, error) {
	var assets []model.Asset

	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Find(&assets).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "AssetRepository",
			"op":   "FindActive",
		}).WithError(err).Error("Failed to fetch active assets")

		return nil, err
	}

	return assets, nil
}

// UpsertPrices writes the latest ticker readings. Existing rows keep
// their identity fields; only the market columns move.
func (r *AssetRepository) UpsertPrices(ctx context.Context, assets []model.Asset) error {
	if len(assets) == 0 {
		return nil
	}

	now := time.Now().UTC()
	for i := range assets {
		assets[i].UpdatedAt = now
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"last_price", "volume_24h", "price_change_24h_pct", "updated_at",
			}),
		}).
		Create(&assets).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "AssetRepository",
			"op":   "UpsertPrices",
			"rows": len(assets),
		}).WithError(err).Error("Failed to upsert asset prices")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo": "AssetRepository",
		"op":   "UpsertPrices",
		"rows": len(assets),
	}).Debug("Asset prices upserted")

	return nil
}

// ErrEmptySymbol guards the ingester against exchange rows with no symbol.
var ErrEmptySymbol = errors.New("asset symbol is empty")
