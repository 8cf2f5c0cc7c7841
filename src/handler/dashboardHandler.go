package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"tradedeck/src/feed"
	"tradedeck/src/metrics"
	"tradedeck/src/model"
	"tradedeck/src/repository"

	logger "github.com/sirupsen/logrus"
)

type openTradeLister interface {
	FindOpen(ctx context.Context, statuses model.StatusTable) ([]model.Trade, error)
}

type activeAssetLister interface {
	FindActive(ctx context.Context) ([]model.Asset, error)
}

type scannerLister interface {
	FindScanner(ctx context.Context, sortBy string, direction string, limit int) ([]model.Asset, error)
}

// OpenTradesHandler returns the open positions with live derived metrics
// attached. Prices come from the assets table; a trade whose asset has no
// price yet is reported flat at its entry price.
func OpenTradesHandler(trades openTradeLister, assets activeAssetLister, statuses model.StatusTable) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		open, err := trades.FindOpen(r.Context(), statuses)
		if err != nil {
			logger.WithError(err).Error("failed to fetch open trades")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		active, err := assets.FindActive(r.Context())
		if err != nil {
			logger.WithError(err).Error("failed to fetch asset prices")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		prices := make(map[string]float64, len(active))
		for _, asset := range active {
			prices[asset.ID] = asset.LastPrice
		}

		out := make([]model.TradeWithMetrics, 0, len(open))
		for _, trade := range open {
			price, ok := prices[trade.AssetID]
			if !ok {
				price = trade.EntryPrice
			}
			out = append(out, model.TradeWithMetrics{
				Trade:   trade,
				Metrics: metrics.Compute(trade, price),
			})
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(out); err != nil {
			logger.WithError(err).Error("failed to encode open trades response")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
}

// ScannerAssetsHandler returns the market scanner rows. The sort key is
// allowlisted at the repository; an unknown key sorts by volume.
func ScannerAssetsHandler(repo scannerLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
			parsed, err := strconv.Atoi(limitParam)
			if err != nil || parsed <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		assets, err := repo.FindScanner(
			r.Context(),
			r.URL.Query().Get("sortBy"),
			r.URL.Query().Get("direction"),
			limit,
		)
		if err != nil {
			logger.WithError(err).Error("failed to fetch scanner assets")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		out := make([]model.ScannerAsset, 0, len(assets))
		for _, asset := range assets {
			out = append(out, asset.ToScannerAsset())
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(out); err != nil {
			logger.WithError(err).Error("failed to encode scanner response")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
}

type sessionPageResponse struct {
	Items      []model.CouncilSession `json:"items"`
	HasMore    bool                   `json:"has_more"`
	NextCursor *feed.Cursor           `json:"next_cursor,omitempty"`
}

// CouncilSessionsHandler serves one page of the council decision log.
// Pagination is cursor-based over (timestamp, id); the cursor of the next
// page is returned in the envelope, never inferred by the client.
func CouncilSessionsHandler(fetcher feed.SessionFetcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pageSize := feed.DefaultPageSize
		if sizeParam := r.URL.Query().Get("pageSize"); sizeParam != "" {
			parsed, err := strconv.Atoi(sizeParam)
			if err != nil || parsed <= 0 {
				http.Error(w, "invalid pageSize", http.StatusBadRequest)
				return
			}
			pageSize = parsed
		}

		var cursor *feed.Cursor
		if beforeParam := r.URL.Query().Get("before"); beforeParam != "" {
			parsed, err := time.Parse(time.RFC3339Nano, beforeParam)
			if err != nil {
				http.Error(w, "invalid before", http.StatusBadRequest)
				return
			}
			beforeID := r.URL.Query().Get("beforeId")
			if beforeID == "" {
				http.Error(w, "beforeId required with before", http.StatusBadRequest)
				return
			}
			cursor = &feed.Cursor{Timestamp: parsed, ID: beforeID}
		}

		sessions, err := fetcher.FetchSessions(r.Context(), feed.SessionQuery{
			Cursor:   cursor,
			Decision: r.URL.Query().Get("decision"),
			Limit:    pageSize + 1,
		})
		if err != nil {
			logger.WithError(err).Error("failed to fetch council sessions")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		resp := sessionPageResponse{Items: sessions}
		if len(sessions) > pageSize {
			resp.Items = sessions[:pageSize]
			resp.HasMore = true
			last := resp.Items[len(resp.Items)-1]
			resp.NextCursor = &feed.Cursor{Timestamp: last.Timestamp, ID: last.ID}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.WithError(err).Error("failed to encode council sessions response")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
}

// DefaultOpenTradesHandler wires the handler to the production repositories.
func DefaultOpenTradesHandler(statuses model.StatusTable) http.HandlerFunc {
	return OpenTradesHandler(repository.NewTradeRepository(), repository.NewAssetRepository(), statuses)
}

// DefaultScannerAssetsHandler wires the handler to the production repository.
func DefaultScannerAssetsHandler() http.HandlerFunc {
	return ScannerAssetsHandler(repository.NewAssetRepository())
}

// DefaultCouncilSessionsHandler wires the handler to the production repository.
func DefaultCouncilSessionsHandler() http.HandlerFunc {
	return CouncilSessionsHandler(repository.NewCouncilSessionRepository())
}
