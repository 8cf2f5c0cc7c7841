package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradedeck/src/database"
	"tradedeck/src/feed"
	"tradedeck/src/model"
)

// CouncilSessionRepository reads the append-only council decision log.
// It implements feed.SessionFetcher so the pager can run against the
// database directly instead of the provider's fetch API.
type CouncilSessionRepository struct {
	db *gorm.DB
}

// NewCouncilSessionRepository creates a new repository instance.
// It uses the ReadOnlyDB connection by default.
func NewCouncilSessionRepository() *CouncilSessionRepository {
	logger.WithField("component", "CouncilSessionRepository").
		Info("Creating new CouncilSessionRepository with ReadOnlyDB")

	return &CouncilSessionRepository{
		db: database.ReadOnlyDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or custom sessions/transactions.
func (r *CouncilSessionRepository) WithDB(db *gorm.DB) *CouncilSessionRepository {
	return &CouncilSessionRepository{db: db}
}

// FetchSessions returns one page of sessions ordered newest first. The
// cursor bound is exclusive and composite over (timestamp, id), so rows
// sharing a timestamp are neither skipped nor duplicated across pages.
func (r *CouncilSessionRepository) FetchSessions(
	ctx context.Context,
	query feed.SessionQuery,
) ([]model.CouncilSession, error) {

	limit := query.Limit
	if limit <= 0 {
		limit = feed.DefaultPageSize
	}

	logger.WithFields(map[string]interface{}{
		"repo":     "CouncilSessionRepository",
		"op":       "FetchSessions",
		"decision": query.Decision,
		"limit":    limit,
	}).Debug("Fetching council session page")

	q := r.db.WithContext(ctx)
	if query.Decision != "" {
		q = q.Where("final_decision = ?", query.Decision)
	}
	if c := query.Cursor; c != nil {
		q = q.Where(
			"timestamp < ? OR (timestamp = ? AND id < ?)",
			c.Timestamp, c.Timestamp, c.ID,
		)
	}

	var sessions []model.CouncilSession

	err := q.
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&sessions).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "CouncilSessionRepository",
			"op":       "FetchSessions",
			"decision": query.Decision,
		}).WithError(err).Error("Failed to fetch council session page")

		return nil, err
	}

	return sessions, nil
}

// CountSince returns how many sessions were recorded after the given
// bound. Used by the dashboard to badge unseen decisions.
func (r *CouncilSessionRepository) CountSince(
	ctx context.Context,
	cursor feed.Cursor,
) (int64, error) {

	var count int64

	err := r.db.WithContext(ctx).
		Model(&model.CouncilSession{}).
		Where(
			"timestamp > ? OR (timestamp = ? AND id > ?)",
			cursor.Timestamp, cursor.Timestamp, cursor.ID,
		).
		Count(&count).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "CouncilSessionRepository",
			"op":   "CountSince",
		}).WithError(err).Error("Failed to count new council sessions")

		return 0, err
	}

	return count, nil
}
