package livestore

import (
	"sort"
	"sync"

	logger "github.com/sirupsen/logrus"

	"tradedeck/src/metrics"
	"tradedeck/src/model"
)

// Callbacks are the store's outbound notifications. Pure data, no
// rendering concerns; all fields are optional.
type Callbacks struct {
	// OnTradeOpened fires when an untracked trade enters the open set.
	OnTradeOpened func(model.TradeWithMetrics)
	// OnTradeUpdated fires when a tracked trade's fields are refreshed.
	OnTradeUpdated func(model.TradeWithMetrics)
	// OnTradeClosed fires on the transition into a terminal status.
	OnTradeClosed func(model.Trade)
	// OnMetrics fires with the trades recomputed by one price tick.
	OnMetrics func([]model.TradeWithMetrics)
}

// Store tracks the set of open trades and their derived metrics. One event
// is applied at a time: the mutex serializes push deliveries, price ticks
// and bulk refetches, so each handler runs to completion against a
// consistent baseline.
//
// Merge rule for push vs. refetch: last delivered wins per trade id, unless
// both sides carry a server-assigned UpdateSeq, in which case an incoming
// event older than the held row is rejected as stale.
type Store struct {
	mu       sync.Mutex
	statuses model.StatusTable
	cb       Callbacks

	trades  map[string]*model.Trade
	prices  map[string]float64            // assetID -> last known price
	byAsset map[string]map[string]struct{} // assetID -> tracked trade ids
}

func NewStore(statuses model.StatusTable, cb Callbacks) *Store {
	return &Store{
		statuses: statuses,
		cb:       cb,
		trades:   make(map[string]*model.Trade),
		prices:   make(map[string]float64),
		byAsset:  make(map[string]map[string]struct{}),
	}
}

// ApplyInsert handles an INSERT push event.
func (s *Store) ApplyInsert(trade model.Trade) {
	s.apply(trade, "INSERT")
}

// ApplyUpdate handles an UPDATE push event. Updates for untracked ids are
// no-ops; a missed insert is healed by the next reconcile.
func (s *Store) ApplyUpdate(trade model.Trade) {
	s.apply(trade, "UPDATE")
}

func (s *Store) apply(trade model.Trade, event string) {
	s.mu.Lock()

	held, tracked := s.trades[trade.ID]

	if tracked && isStale(held, &trade) {
		s.mu.Unlock()
		logger.WithFields(map[string]interface{}{
			"store":    "LiveTradeStore",
			"event":    event,
			"trade_id": trade.ID,
			"held_seq": held.UpdateSeq,
			"got_seq":  trade.UpdateSeq,
		}).Debug("Rejecting stale trade event")
		return
	}

	switch {
	case !tracked && event == "INSERT" && s.statuses.IsOpen(trade.Status):
		s.track(&trade)
		opened := s.withMetrics(&trade)
		s.mu.Unlock()
		if s.cb.OnTradeOpened != nil {
			s.cb.OnTradeOpened(opened)
		}

	case tracked && s.statuses.IsOpen(trade.Status):
		s.untrackIndex(held)
		s.track(&trade)
		updated := s.withMetrics(&trade)
		s.mu.Unlock()
		if s.cb.OnTradeUpdated != nil {
			s.cb.OnTradeUpdated(updated)
		}

	case tracked && s.statuses.IsTerminal(trade.Status):
		// Terminal is absorbing: evict immediately, keep nothing in
		// memory. The trade re-appears only via a fresh INSERT.
		s.evict(held)
		s.mu.Unlock()
		if s.cb.OnTradeClosed != nil {
			s.cb.OnTradeClosed(trade)
		}

	default:
		s.mu.Unlock()
	}
}

// ApplyDelete handles a DELETE push event. A delete for an untracked id
// leaves the store unchanged.
func (s *Store) ApplyDelete(tradeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	held, tracked := s.trades[tradeID]
	if !tracked {
		return
	}
	s.evict(held)
}

// ApplyPriceTick records an asset price and recomputes metrics for exactly
// the trades tracking that asset. An asset with zero tracked trades is a
// pure no-op: no mutation, no recomputation, no callback.
func (s *Store) ApplyPriceTick(assetID string, price float64) {
	s.mu.Lock()

	ids := s.byAsset[assetID]
	if len(ids) == 0 {
		s.mu.Unlock()
		return
	}

	s.prices[assetID] = price

	recomputed := make([]model.TradeWithMetrics, 0, len(ids))
	for id := range ids {
		recomputed = append(recomputed, s.withMetrics(s.trades[id]))
	}
	sort.Slice(recomputed, func(i, j int) bool { return recomputed[i].ID < recomputed[j].ID })
	s.mu.Unlock()

	if s.cb.OnMetrics != nil {
		s.cb.OnMetrics(recomputed)
	}
}

// Replace installs a bulk-refetch result as the new baseline, replacing
// the tracked set wholesale. Trades whose status is not open-like are
// ignored. Replace fires no callbacks: consumers read Snapshot after a
// reconcile, and a repeated identical refetch produces no observable diff.
func (s *Store) Replace(trades []model.Trade, prices map[string]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades = make(map[string]*model.Trade, len(trades))
	s.byAsset = make(map[string]map[string]struct{})
	for assetID, price := range prices {
		s.prices[assetID] = price
	}

	for i := range trades {
		trade := trades[i]
		if !s.statuses.IsOpen(trade.Status) {
			continue
		}
		s.track(&trade)
	}
}

// Snapshot returns the tracked trades with current metrics, newest first.
func (s *Store) Snapshot() []model.TradeWithMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.TradeWithMetrics, 0, len(s.trades))
	for _, trade := range s.trades {
		out = append(out, s.withMetrics(trade))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of tracked trades.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trades)
}

// ---- internals, caller holds s.mu ----

func (s *Store) track(trade *model.Trade) {
	s.trades[trade.ID] = trade
	ids, ok := s.byAsset[trade.AssetID]
	if !ok {
		ids = make(map[string]struct{})
		s.byAsset[trade.AssetID] = ids
	}
	ids[trade.ID] = struct{}{}
}

func (s *Store) untrackIndex(trade *model.Trade) {
	if ids, ok := s.byAsset[trade.AssetID]; ok {
		delete(ids, trade.ID)
		if len(ids) == 0 {
			delete(s.byAsset, trade.AssetID)
		}
	}
}

func (s *Store) evict(trade *model.Trade) {
	delete(s.trades, trade.ID)
	s.untrackIndex(trade)
}

// withMetrics computes the display metrics against the last known asset
// price, falling back to the entry price until a tick arrives.
func (s *Store) withMetrics(trade *model.Trade) model.TradeWithMetrics {
	price, ok := s.prices[trade.AssetID]
	if !ok {
		price = trade.EntryPrice
	}
	return model.TradeWithMetrics{
		Trade:   *trade,
		Metrics: metrics.Compute(*trade, price),
	}
}

// isStale reports whether incoming is older than held per the
// server-assigned sequence. Without sequences on both sides the answer is
// always false and last-delivered-wins applies.
func isStale(held, incoming *model.Trade) bool {
	return held.UpdateSeq > 0 && incoming.UpdateSeq > 0 && incoming.UpdateSeq < held.UpdateSeq
}
