package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tradedeck/src/feed"
	"tradedeck/src/model"
)

func setupSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&model.Asset{}, &model.Trade{}, &model.CouncilSession{}))
	return db
}

// Walks the real SQL pagination end to end: rows sharing a timestamp must
// be neither skipped nor duplicated across page boundaries.
func TestCouncilSessionPaginationIT(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping test in short mode")
		return
	}

	db := setupSQLite(t)
	repo := (&CouncilSessionRepository{}).WithDB(db)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	sessions := []model.CouncilSession{
		{ID: "s1", AssetID: "BTC", Timestamp: base, FinalDecision: "BUY"},
		{ID: "s2", AssetID: "BTC", Timestamp: base.Add(time.Minute), FinalDecision: "SELL"},
		// s3 and s4 share a timestamp; only the id breaks the tie.
		{ID: "s3", AssetID: "ETH", Timestamp: base.Add(2 * time.Minute), FinalDecision: "BUY"},
		{ID: "s4", AssetID: "ETH", Timestamp: base.Add(2 * time.Minute), FinalDecision: "HOLD"},
		{ID: "s5", AssetID: "SOL", Timestamp: base.Add(3 * time.Minute), FinalDecision: "BUY"},
	}
	require.NoError(t, db.Create(&sessions).Error)

	seen := make(map[string]int)
	var cursor *feed.Cursor
	for page := 0; page < 4; page++ {
		rows, err := repo.FetchSessions(context.Background(), feed.SessionQuery{
			Cursor: cursor,
			Limit:  2,
		})
		require.NoError(t, err)
		if len(rows) == 0 {
			break
		}
		for _, row := range rows {
			seen[row.ID]++
		}
		last := rows[len(rows)-1]
		cursor = &feed.Cursor{Timestamp: last.Timestamp, ID: last.ID}
	}

	require.Len(t, seen, 5, "every session visited exactly once: %v", seen)
	for id, count := range seen {
		require.Equal(t, 1, count, fmt.Sprintf("session %s paged more than once", id))
	}
}

func TestCouncilSessionDecisionFilterIT(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping test in short mode")
		return
	}

	db := setupSQLite(t)
	repo := (&CouncilSessionRepository{}).WithDB(db)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&[]model.CouncilSession{
		{ID: "s1", AssetID: "BTC", Timestamp: base, FinalDecision: "BUY"},
		{ID: "s2", AssetID: "BTC", Timestamp: base.Add(time.Minute), FinalDecision: "SELL"},
		{ID: "s3", AssetID: "BTC", Timestamp: base.Add(2 * time.Minute), FinalDecision: "BUY"},
	}).Error)

	rows, err := repo.FetchSessions(context.Background(), feed.SessionQuery{Decision: "BUY", Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "s3", rows[0].ID, "newest BUY first")
	require.Equal(t, "s1", rows[1].ID)
}

func TestTradeRepositoryFindOpenIT(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping test in short mode")
		return
	}

	db := setupSQLite(t)
	repo := (&TradeRepository{}).WithDB(db)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&[]model.Trade{
		{ID: "t1", AssetID: "BTC", Direction: "LONG", EntryPrice: 45000, StopLossPrice: 43000, Size: 0.5, Status: "open", CreatedAt: base},
		{ID: "t2", AssetID: "ETH", Direction: "SHORT", EntryPrice: 3000, StopLossPrice: 3200, Size: 2, Status: "active", CreatedAt: base.Add(time.Minute)},
		{ID: "t3", AssetID: "SOL", Direction: "LONG", EntryPrice: 150, StopLossPrice: 140, Size: 10, Status: "closed", CreatedAt: base.Add(2 * time.Minute)},
	}).Error)

	trades, err := repo.FindOpen(context.Background(), model.DefaultStatusTable())
	require.NoError(t, err)
	require.Len(t, trades, 2)
	require.Equal(t, "t2", trades[0].ID, "newest open trade first")
	require.Equal(t, "t1", trades[1].ID)
}
