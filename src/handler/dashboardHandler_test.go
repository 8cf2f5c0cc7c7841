package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tradedeck/src/feed"
	"tradedeck/src/model"

	"github.com/stretchr/testify/assert"
)

type mockTradeLister struct {
	trades      []model.Trade
	err         error
	calledCount int
}

func (m *mockTradeLister) FindOpen(ctx context.Context, statuses model.StatusTable) ([]model.Trade, error) {
	m.calledCount++
	return m.trades, m.err
}

type mockAssetLister struct {
	assets []model.Asset
	err    error

	sortBy    string
	direction string
	limit     int
}

func (m *mockAssetLister) FindActive(ctx context.Context) ([]model.Asset, error) {
	return m.assets, m.err
}

func (m *mockAssetLister) FindScanner(ctx context.Context, sortBy string, direction string, limit int) ([]model.Asset, error) {
	m.sortBy = sortBy
	m.direction = direction
	m.limit = limit
	return m.assets, m.err
}

type mockSessionFetcher struct {
	sessions []model.CouncilSession
	err      error
	query    feed.SessionQuery
}

func (m *mockSessionFetcher) FetchSessions(ctx context.Context, query feed.SessionQuery) ([]model.CouncilSession, error) {
	m.query = query
	out := m.sessions
	if len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, m.err
}

func TestOpenTradesHandler_AttachesMetrics(t *testing.T) {
	trades := &mockTradeLister{trades: []model.Trade{
		{ID: "t1", AssetID: "BTC", Direction: model.DirectionLong, EntryPrice: 45000, StopLossPrice: 43000, Size: 0.5, Status: "open"},
		{ID: "t2", AssetID: "XRP", Direction: model.DirectionLong, EntryPrice: 2, StopLossPrice: 1.5, Size: 100, Status: "open"},
	}}
	assets := &mockAssetLister{assets: []model.Asset{
		{ID: "BTC", Symbol: "BTCUSDT", LastPrice: 46000},
	}}
	handler := OpenTradesHandler(trades, assets, model.DefaultStatusTable())

	req := httptest.NewRequest(http.MethodGet, "/api/trades/open", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var out []model.TradeWithMetrics
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 trades in response, got %d", len(out))
	}

	if out[0].Metrics.CurrentPrice != 46000 {
		t.Fatalf("expected BTC trade priced at 46000, got %v", out[0].Metrics.CurrentPrice)
	}
	if out[0].Metrics.UnrealizedPnl != 500 {
		t.Fatalf("expected pnl 500, got %v", out[0].Metrics.UnrealizedPnl)
	}

	// No price row for XRP: flat at entry.
	if out[1].Metrics.CurrentPrice != 2 || out[1].Metrics.UnrealizedPnl != 0 {
		t.Fatalf("expected unpriced trade flat at entry, got %+v", out[1].Metrics)
	}
}

func TestOpenTradesHandler_RepoError(t *testing.T) {
	trades := &mockTradeLister{err: assert.AnError}
	handler := OpenTradesHandler(trades, &mockAssetLister{}, model.DefaultStatusTable())

	req := httptest.NewRequest(http.MethodGet, "/api/trades/open", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
	if trades.calledCount != 1 {
		t.Fatalf("expected repository to be called once, got %d", trades.calledCount)
	}
}

func TestScannerAssetsHandler_Params(t *testing.T) {
	assets := &mockAssetLister{assets: []model.Asset{
		{ID: "BTC", Symbol: "BTCUSDT", LastPrice: 46000, Volume24h: 1200000},
	}}
	handler := ScannerAssetsHandler(assets)

	req := httptest.NewRequest(http.MethodGet, "/api/scanner/assets?sortBy=change24h&direction=asc&limit=10", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if assets.sortBy != "change24h" || assets.direction != "asc" || assets.limit != 10 {
		t.Fatalf("unexpected scanner query: sortBy=%q direction=%q limit=%d", assets.sortBy, assets.direction, assets.limit)
	}

	var out []model.ScannerAsset
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(out) != 1 || out[0].Symbol != "BTCUSDT" {
		t.Fatalf("unexpected scanner rows: %+v", out)
	}
}

func TestScannerAssetsHandler_InvalidLimit(t *testing.T) {
	handler := ScannerAssetsHandler(&mockAssetLister{})

	req := httptest.NewRequest(http.MethodGet, "/api/scanner/assets?limit=-1", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestCouncilSessionsHandler_Paginates(t *testing.T) {
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	sessions := make([]model.CouncilSession, 0, 3)
	for _, id := range []string{"s3", "s2", "s1"} {
		sessions = append(sessions, model.CouncilSession{ID: id, AssetID: "BTC", Timestamp: ts, FinalDecision: "BUY"})
	}
	fetcher := &mockSessionFetcher{sessions: sessions}
	handler := CouncilSessionsHandler(fetcher)

	req := httptest.NewRequest(http.MethodGet, "/api/council/sessions?pageSize=2&decision=BUY", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if fetcher.query.Limit != 3 || fetcher.query.Decision != "BUY" {
		t.Fatalf("unexpected fetch query: %+v", fetcher.query)
	}

	var resp sessionPageResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Items) != 2 || !resp.HasMore {
		t.Fatalf("expected 2 items and has_more, got %+v", resp)
	}
	if resp.NextCursor == nil || resp.NextCursor.ID != "s2" {
		t.Fatalf("expected next cursor at s2, got %+v", resp.NextCursor)
	}
}

func TestCouncilSessionsHandler_CursorParams(t *testing.T) {
	fetcher := &mockSessionFetcher{}
	handler := CouncilSessionsHandler(fetcher)

	req := httptest.NewRequest(http.MethodGet, "/api/council/sessions?before=2026-08-01T12:00:00Z&beforeId=s2", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if fetcher.query.Cursor == nil || fetcher.query.Cursor.ID != "s2" {
		t.Fatalf("expected composite cursor passed through, got %+v", fetcher.query.Cursor)
	}
}

func TestCouncilSessionsHandler_BeforeWithoutID(t *testing.T) {
	handler := CouncilSessionsHandler(&mockSessionFetcher{})

	req := httptest.NewRequest(http.MethodGet, "/api/council/sessions?before=2026-08-01T12:00:00Z", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestCouncilSessionsHandler_FetchError(t *testing.T) {
	handler := CouncilSessionsHandler(&mockSessionFetcher{err: assert.AnError})

	req := httptest.NewRequest(http.MethodGet, "/api/council/sessions", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}
