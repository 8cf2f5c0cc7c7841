package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradedeck/src/database"
	"tradedeck/src/model"
)

// TradeRepository handles read-only operations for trades stored in the
// read-only database.
type TradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository creates a new repository instance.
// It uses the ReadOnlyDB connection by default.
func NewTradeRepository() *TradeRepository {
	logger.WithField("component", "TradeRepository").
		Info("Creating new TradeRepository with ReadOnlyDB")

	return &TradeRepository{
		db: database.ReadOnlyDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or custom sessions/transactions.
func (r *TradeRepository) WithDB(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// FindOpen fetches every trade in a non-terminal status, newest first.
// The status set comes from the configured table, not a hardcoded list.
func (r *TradeRepository) FindOpen(
	ctx context.Context,
	statuses model.StatusTable,
) ([]model.Trade, error) {

	logger.WithFields(map[string]interface{}{
		"repo":     "TradeRepository",
		"op":       "FindOpen",
		"statuses": statuses.Open,
	}).Debug("Fetching open trades")

	var trades []model.Trade

	err := r.db.WithContext(ctx).
		Where("status IN ?", statuses.Open).
		Order("created_at DESC, id DESC").
		Find(&trades).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "TradeRepository",
			"op":   "FindOpen",
		}).WithError(err).Error("Failed to fetch open trades")

		return nil, err
	}

	return trades, nil
}

// FindByID fetches a single trade by its primary ID.
// Returns (nil, nil) if not found.
func (r *TradeRepository) FindByID(
	ctx context.Context,
	id string,
) (*model.Trade, error) {

	var trade model.Trade

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&trade).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo": "TradeRepository",
				"op":   "FindByID",
				"id":   id,
			}).Info("Trade not found")
			return nil, nil // not found is not an error
		}

		logger.WithFields(map[string]interface{}{
			"repo": "TradeRepository",
			"op":   "FindByID",
			"id":   id,
		}).WithError(err).Error("Failed to fetch trade by ID")

		return nil, err
	}

	return &trade, nil
}
