package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"tradedeck/src/feed"
	"tradedeck/src/model"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	dialector := postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	})

	gdb, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		sqlDB.Close()
		t.Fatalf("failed to open gorm DB with sqlmock: %v", err)
	}

	return gdb, mock
}

func TestTradeRepositoryFindOpen(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&TradeRepository{}).WithDB(mockDB)

	createdAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "asset_id", "direction", "entry_price", "stop_loss_price", "size", "status", "created_at"}).
		AddRow("t2", "ETH", "SHORT", 3000.0, 3200.0, 2.0, "active", createdAt.Add(time.Hour)).
		AddRow("t1", "BTC", "LONG", 45000.0, 43000.0, 0.5, "open", createdAt)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "trades" WHERE status IN ($1,$2) ORDER BY created_at DESC, id DESC`)).
		WithArgs("open", "active").
		WillReturnRows(rows)

	trades, err := repo.FindOpen(context.Background(), model.DefaultStatusTable())
	if err != nil {
		t.Fatalf("unexpected error fetching open trades: %v", err)
	}

	if len(trades) != 2 {
		t.Fatalf("expected 2 open trades, got %d", len(trades))
	}
	if trades[0].ID != "t2" || trades[1].ID != "t1" {
		t.Fatalf("trades not returned newest first: %+v", trades)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestTradeRepositoryFindByIDNotFound(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&TradeRepository{}).WithDB(mockDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "trades" WHERE id = $1 ORDER BY "trades"."id" LIMIT $2`)).
		WithArgs("missing", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	trade, err := repo.FindByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("not found should not be an error, got %v", err)
	}
	if trade != nil {
		t.Fatalf("expected nil trade for missing id, got %+v", trade)
	}
}

func TestCouncilSessionRepositoryFetchSessions(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&CouncilSessionRepository{}).WithDB(mockDB)

	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	sessionRows := func(ids ...string) *sqlmock.Rows {
		rows := sqlmock.NewRows([]string{"id", "asset_id", "timestamp", "final_decision", "sentiment_score", "decision_confidence"})
		for _, id := range ids {
			rows.AddRow(id, "BTC", ts, "BUY", 0.5, 80.0)
		}
		return rows
	}

	t.Run("first page", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "council_sessions" ORDER BY timestamp DESC, id DESC LIMIT $1`)).
			WithArgs(21).
			WillReturnRows(sessionRows("s3", "s2"))

		sessions, err := repo.FetchSessions(context.Background(), feed.SessionQuery{Limit: 21})
		if err != nil {
			t.Fatalf("unexpected error fetching first page: %v", err)
		}
		if len(sessions) != 2 || sessions[0].ID != "s3" {
			t.Fatalf("unexpected first page: %+v", sessions)
		}
	})

	t.Run("cursor and decision filter", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "council_sessions" WHERE final_decision = $1 AND (timestamp < $2 OR (timestamp = $3 AND id < $4)) ORDER BY timestamp DESC, id DESC LIMIT $5`)).
			WithArgs("BUY", ts, ts, "s2", 21).
			WillReturnRows(sessionRows("s1"))

		sessions, err := repo.FetchSessions(context.Background(), feed.SessionQuery{
			Cursor:   &feed.Cursor{Timestamp: ts, ID: "s2"},
			Decision: "BUY",
			Limit:    21,
		})
		if err != nil {
			t.Fatalf("unexpected error fetching cursored page: %v", err)
		}
		if len(sessions) != 1 || sessions[0].ID != "s1" {
			t.Fatalf("unexpected cursored page: %+v", sessions)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestAssetRepositoryFindScanner(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&AssetRepository{}).WithDB(mockDB)

	assetRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "symbol", "last_price", "volume_24h", "is_active"}).
			AddRow("BTC", "BTCUSDT", 46000.0, 1200000.0, true)
	}

	t.Run("allowlisted sort", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "assets" WHERE is_active = $1 ORDER BY last_price ASC LIMIT $2`)).
			WithArgs(true, 10).
			WillReturnRows(assetRows())

		assets, err := repo.FindScanner(context.Background(), "lastPrice", "asc", 10)
		if err != nil {
			t.Fatalf("unexpected error fetching scanner assets: %v", err)
		}
		if len(assets) != 1 || assets[0].Symbol != "BTCUSDT" {
			t.Fatalf("unexpected scanner rows: %+v", assets)
		}
	})

	t.Run("unknown sort falls back to volume", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "assets" WHERE is_active = $1 ORDER BY volume_24h DESC LIMIT $2`)).
			WithArgs(true, 50).
			WillReturnRows(assetRows())

		if _, err := repo.FindScanner(context.Background(), "symbol; DROP TABLE assets", "", 0); err != nil {
			t.Fatalf("unexpected error for fallback sort: %v", err)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestAssetRepositoryUpsertPrices(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&AssetRepository{}).WithDB(mockDB)

	assets := []model.Asset{
		{ID: "BTC", Symbol: "BTCUSDT", LastPrice: 46000, Volume24h: 1200000, IsActive: true},
		{ID: "ETH", Symbol: "ETHUSDT", LastPrice: 3000, Volume24h: 800000, IsActive: true},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "assets" (`)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	if err := repo.UpsertPrices(context.Background(), assets); err != nil {
		t.Fatalf("expected upsert to succeed, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}
