// REST CLIENT FOR THE CHANGE STREAM PROVIDER'S FETCH API
// RESTY ONLY + INTERNAL RETRY
package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"

	"tradedeck/src/feed"
	"tradedeck/src/mapper"
	"tradedeck/src/model"
)

const (
	// Default retry configuration
	defaultRetryAttempts   = 4
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second
)

// FetchError is a network or store failure during a snapshot fetch. It is
// non-fatal by contract: callers keep their last-known-good state and
// surface the failure inline rather than blanking the view.
type FetchError struct {
	Op     string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s failed (status %d): %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s failed: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ScannerQuery selects and orders the market-scanner asset list.
type ScannerQuery struct {
	SortBy        string
	SortDirection string
	Limit         int
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}

	code := r.StatusCode()

	if code >= 500 && code <= 599 {
		return true
	}
	if code == 429 {
		return true
	}
	if code == 408 {
		return true
	}
	return false
}

// FeedClient reads full snapshots from the provider's REST surface. Rows
// come back the same shape the change stream pushes them: snake_case
// columns with string-encoded decimals, decoded through the mapper so a
// malformed row is dropped without discarding its siblings.
type FeedClient struct {
	http     *resty.Client
	statuses model.StatusTable
}

func NewFeedClient(cfg Config, statuses model.StatusTable) *FeedClient {
	httpClient := resty.New().
		SetBaseURL(cfg.FeedBaseURL).
		SetTimeout(cfg.FeedTimeout).
		SetRetryCount(defaultRetryAttempts - 1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	if cfg.FeedAPIKey != "" {
		httpClient.SetHeader("apikey", cfg.FeedAPIKey)
	}

	return &FeedClient{http: httpClient, statuses: statuses}
}

// GetOpenTrades fetches every trade currently in an open-like status,
// newest first.
func (c *FeedClient) GetOpenTrades(ctx context.Context) ([]model.Trade, error) {
	recs, err := c.getRecords(ctx, "GetOpenTrades", "/trades", map[string]string{
		"status": "in.(" + strings.Join(c.statuses.Open, ",") + ")",
		"order":  "created_at.desc",
	})
	if err != nil {
		return nil, err
	}
	return mapper.TradesFromRecords(recs), nil
}

// GetActiveAssets fetches the active asset rows, the price baseline for a
// reconcile.
func (c *FeedClient) GetActiveAssets(ctx context.Context) ([]model.Asset, error) {
	recs, err := c.getRecords(ctx, "GetActiveAssets", "/assets", map[string]string{
		"is_active": "is.true",
	})
	if err != nil {
		return nil, err
	}
	return mapper.AssetsFromRecords(recs), nil
}

// FetchSessions implements feed.SessionFetcher over the REST surface.
// Ordering is (timestamp DESC, id DESC) and the composite cursor is an
// exclusive bound.
func (c *FeedClient) FetchSessions(ctx context.Context, query feed.SessionQuery) ([]model.CouncilSession, error) {
	params := map[string]string{
		"order": "timestamp.desc,id.desc",
	}
	if query.Limit > 0 {
		params["limit"] = strconv.Itoa(query.Limit)
	}
	if query.Decision != "" {
		params["final_decision"] = "eq." + query.Decision
	}
	if cur := query.Cursor; cur != nil {
		ts := cur.Timestamp.UTC().Format(time.RFC3339Nano)
		params["or"] = fmt.Sprintf(
			"(timestamp.lt.%s,and(timestamp.eq.%s,id.lt.%s))",
			ts, ts, cur.ID,
		)
	}

	recs, err := c.getRecords(ctx, "FetchSessions", "/council_sessions", params)
	if err != nil {
		return nil, err
	}
	return mapper.SessionsFromRecords(recs), nil
}

var scannerSortColumns = map[string]string{
	"symbol":     "symbol",
	"lastPrice":  "last_price",
	"volume":     "volume_24h",
	"change24h":  "price_change_24h_pct",
	"last_price": "last_price",
	"volume_24h": "volume_24h",
}

// GetScannerAssets fetches the scanner list. Unknown sort keys fall back
// to volume so a bad query can't reach the store.
func (c *FeedClient) GetScannerAssets(ctx context.Context, query ScannerQuery) ([]model.ScannerAsset, error) {
	column, ok := scannerSortColumns[query.SortBy]
	if !ok {
		column = "volume_24h"
	}
	direction := "desc"
	if strings.EqualFold(query.SortDirection, "asc") {
		direction = "asc"
	}

	params := map[string]string{
		"is_active": "is.true",
		"order":     column + "." + direction,
	}
	if query.Limit > 0 {
		params["limit"] = strconv.Itoa(query.Limit)
	}

	recs, err := c.getRecords(ctx, "GetScannerAssets", "/assets", params)
	if err != nil {
		return nil, err
	}

	assets := mapper.AssetsFromRecords(recs)
	out := make([]model.ScannerAsset, 0, len(assets))
	for _, a := range assets {
		out = append(out, a.ToScannerAsset())
	}
	return out, nil
}

func (c *FeedClient) getRecords(ctx context.Context, op, path string, params map[string]string) ([]mapper.Record, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(path)
	if err != nil {
		return nil, &FetchError{Op: op, Err: err}
	}
	if resp.StatusCode()/100 != 2 {
		return nil, &FetchError{
			Op:     op,
			Status: resp.StatusCode(),
			Err:    fmt.Errorf("%s", strings.TrimSpace(string(resp.Body()))),
		}
	}

	var recs []mapper.Record
	if err := json.Unmarshal(resp.Body(), &recs); err != nil {
		return nil, &FetchError{Op: op, Status: resp.StatusCode(), Err: err}
	}

	logger.WithFields(map[string]interface{}{
		"connector": "FeedClient",
		"op":        op,
		"rows":      len(recs),
	}).Debug("Snapshot fetched")

	return recs, nil
}
