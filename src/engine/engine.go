package engine

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradedeck/src/feed"
	"tradedeck/src/livestore"
	"tradedeck/src/mapper"
	"tradedeck/src/model"
	"tradedeck/src/notify"
	"tradedeck/src/stream"
)

// Subscription is the slice of stream.Subscription the engine needs.
type Subscription interface {
	Unsubscribe()
}

// ChangeStream is the push channel as the engine consumes it.
type ChangeStream interface {
	Connect(ctx context.Context) error
	Close() error
	Status() stream.Status
	StatusChanges() <-chan stream.Status
	Subscribe(resource string, kind stream.EventKind, fn stream.Handler, filter string) (Subscription, error)
}

// StreamAdapter narrows *stream.Client to the ChangeStream interface.
type StreamAdapter struct {
	*stream.Client
}

func (a StreamAdapter) Subscribe(resource string, kind stream.EventKind, fn stream.Handler, filter string) (Subscription, error) {
	return a.Client.Subscribe(resource, kind, fn, filter)
}

// SnapshotFetcher provides the full-snapshot queries used to reconcile.
type SnapshotFetcher interface {
	GetOpenTrades(ctx context.Context) ([]model.Trade, error)
	GetActiveAssets(ctx context.Context) ([]model.Asset, error)
}

// Callbacks is the UI boundary: pure data out, no rendering concerns.
type Callbacks struct {
	OnPriceUpdate func(assetID string, price float64)
	OnTradeInsert func(model.TradeWithMetrics)
	OnTradeUpdate func(model.TradeWithMetrics)
	OnTradeDelete func(tradeID string)
	OnTradeClose  func(model.Trade)
	OnNewSession  func(model.CouncilSession)
	OnAlert       func(notify.Alert)
	// OnSyncError reports a failed reconcile fetch. The tracked state is
	// left as it was; the error is inline and non-fatal.
	OnSyncError func(error)
}

// Engine wires the change stream, the live trade store, the council feed
// pager and the notification policy together. It is the composition root:
// the stream client is constructed once and passed in, never a global.
type Engine struct {
	stream  ChangeStream
	fetcher SnapshotFetcher
	store   *livestore.Store
	pager   *feed.Pager
	policy  *notify.Policy
	cb      Callbacks

	reconcileInterval time.Duration

	// mu serializes Start, Reconnect and Close; subs is only touched
	// while it is held. Reconnect and teardown run on separate
	// goroutines in the daemon wiring.
	mu     sync.Mutex
	subs   []Subscription
	closed atomic.Bool
}

func New(
	cs ChangeStream,
	fetcher SnapshotFetcher,
	sessions feed.SessionFetcher,
	statuses model.StatusTable,
	reconcileInterval time.Duration,
	cb Callbacks,
) *Engine {
	e := &Engine{
		stream:            cs,
		fetcher:           fetcher,
		pager:             feed.NewPager(sessions, feed.DefaultPageSize),
		policy:            notify.NewPolicy(),
		reconcileInterval: reconcileInterval,
		cb:                cb,
	}
	e.store = livestore.NewStore(statuses, livestore.Callbacks{
		OnTradeOpened:  e.onTradeOpened,
		OnTradeUpdated: e.onTradeUpdated,
		OnTradeClosed:  e.onTradeClosed,
		OnMetrics:      e.onMetrics,
	})
	return e
}

// Store exposes the live open-positions snapshot.
func (e *Engine) Store() *livestore.Store { return e.store }

// Feed exposes the council feed pager (filter changes, load-more).
func (e *Engine) Feed() *feed.Pager { return e.pager }

// Start connects the stream, registers the three subscriptions and runs
// the initial reconcile. Dial failure is returned to the caller; the
// engine never retries on its own.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if err := e.stream.Connect(ctx); err != nil {
		e.mu.Unlock()
		return err
	}
	if err := e.subscribeAll(); err != nil {
		_ = e.stream.Close()
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()

	e.Reconcile(ctx)
	if err := e.pager.LoadFirst(ctx); err != nil {
		e.reportSyncError(err)
	}
	return nil
}

// Run starts the engine and blocks until the context is cancelled,
// reconciling periodically and after every observed reconnect.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Start(ctx); err != nil {
		return err
	}
	defer e.Close()

	statuses := e.stream.StatusChanges()
	ticker := time.NewTicker(e.reconcileInterval)
	defer ticker.Stop()

	down := false
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			e.Reconcile(ctx)

		case status, ok := <-statuses:
			if !ok {
				return nil
			}
			logger.WithFields(map[string]interface{}{
				"engine": "sync",
				"status": string(status),
			}).Info("Change stream status")

			switch status {
			case stream.StatusDisconnected, stream.StatusError:
				down = true
			case stream.StatusConnected:
				if down {
					// The channel was down; whatever was pushed in
					// the gap is gone. Re-establish ground truth.
					e.Reconcile(ctx)
				}
				down = false
			}
		}
	}
}

// Reconnect re-dials, re-registers the subscriptions and reconciles. The
// stream client itself never heals; this is the caller-side recovery.
// After Close it is a no-op, so a recovery loop racing teardown cannot
// resurrect subscriptions.
func (e *Engine) Reconnect(ctx context.Context) error {
	e.mu.Lock()
	if e.closed.Load() {
		e.mu.Unlock()
		return nil
	}
	e.unsubscribeAll()
	_ = e.stream.Close()

	if err := e.stream.Connect(ctx); err != nil {
		e.mu.Unlock()
		return err
	}
	if err := e.subscribeAll(); err != nil {
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()

	e.Reconcile(ctx)
	return nil
}

// Close tears the engine down. Late fetch results are discarded. A
// Reconnect that is already past its closed check finishes first; its
// subscriptions are then cancelled here.
func (e *Engine) Close() {
	e.closed.Store(true)
	e.mu.Lock()
	e.unsubscribeAll()
	_ = e.stream.Close()
	e.mu.Unlock()
}

// Reconcile refetches the full snapshot and installs it as the new
// baseline. On failure the store keeps its last-known-good state.
func (e *Engine) Reconcile(ctx context.Context) {
	trades, err := e.fetcher.GetOpenTrades(ctx)
	if err != nil {
		e.reportSyncError(err)
		return
	}
	assets, err := e.fetcher.GetActiveAssets(ctx)
	if err != nil {
		e.reportSyncError(err)
		return
	}

	// The owning component may have been torn down while the fetches
	// were in flight; applying the result now would resurrect state.
	if e.closed.Load() {
		return
	}

	prices := make(map[string]float64, len(assets))
	for _, a := range assets {
		prices[a.ID] = a.LastPrice
	}
	e.store.Replace(trades, prices)

	logger.WithFields(map[string]interface{}{
		"engine": "sync",
		"trades": len(trades),
		"assets": len(assets),
	}).Debug("Reconcile applied")
}

func (e *Engine) subscribeAll() error {
	specs := []struct {
		resource string
		kind     stream.EventKind
		handler  stream.Handler
	}{
		{"trades", stream.EventAll, e.onTradeEvent},
		{"assets", stream.EventUpdate, e.onAssetEvent},
		{"council_sessions", stream.EventInsert, e.onSessionEvent},
	}

	for _, spec := range specs {
		sub, err := e.stream.Subscribe(spec.resource, spec.kind, spec.handler, "")
		if err != nil {
			e.unsubscribeAll()
			return err
		}
		e.subs = append(e.subs, sub)
	}
	return nil
}

func (e *Engine) unsubscribeAll() {
	for _, sub := range e.subs {
		sub.Unsubscribe()
	}
	e.subs = nil
}

// ---- push event handlers ----

func (e *Engine) onTradeEvent(ev stream.Event) {
	switch ev.Kind {
	case stream.EventInsert, stream.EventUpdate:
		trade, err := mapper.TradeFromRecord(ev.Record)
		if err != nil {
			e.dropRecord("trade", ev, err)
			return
		}
		if ev.Seq > 0 && trade.UpdateSeq == 0 {
			trade.UpdateSeq = ev.Seq
		}
		if ev.Kind == stream.EventInsert {
			e.store.ApplyInsert(*trade)
		} else {
			e.store.ApplyUpdate(*trade)
		}

	case stream.EventDelete:
		id := recordID(ev.OldRecord)
		if id == "" {
			return
		}
		e.store.ApplyDelete(id)
		if e.cb.OnTradeDelete != nil {
			e.cb.OnTradeDelete(id)
		}
	}
}

func (e *Engine) onAssetEvent(ev stream.Event) {
	asset, err := mapper.AssetFromRecord(ev.Record)
	if err != nil {
		e.dropRecord("asset", ev, err)
		return
	}

	e.store.ApplyPriceTick(asset.ID, asset.LastPrice)
	if e.cb.OnPriceUpdate != nil {
		e.cb.OnPriceUpdate(asset.ID, asset.LastPrice)
	}
}

func (e *Engine) onSessionEvent(ev stream.Event) {
	session, err := mapper.SessionFromRecord(ev.Record)
	if err != nil {
		e.dropRecord("council_session", ev, err)
		return
	}

	if e.pager.ApplyInsert(*session) && e.cb.OnNewSession != nil {
		e.cb.OnNewSession(*session)
	}

	// Decision alerts are independent of the feed filter: a BUY still
	// notifies while the list shows only SELLs.
	if alert := e.policy.ForDecision(*session); alert != nil && e.cb.OnAlert != nil {
		e.cb.OnAlert(*alert)
	}
}

// ---- store callbacks ----

func (e *Engine) onTradeOpened(trade model.TradeWithMetrics) {
	if e.cb.OnTradeInsert != nil {
		e.cb.OnTradeInsert(trade)
	}
}

func (e *Engine) onTradeUpdated(trade model.TradeWithMetrics) {
	if e.cb.OnTradeUpdate != nil {
		e.cb.OnTradeUpdate(trade)
	}
}

func (e *Engine) onTradeClosed(trade model.Trade) {
	if e.cb.OnTradeClose != nil {
		e.cb.OnTradeClose(trade)
	}
	if alert := e.policy.ForTradeClose(trade); alert != nil && e.cb.OnAlert != nil {
		e.cb.OnAlert(*alert)
	}
}

func (e *Engine) onMetrics(trades []model.TradeWithMetrics) {
	if e.cb.OnTradeUpdate == nil {
		return
	}
	for _, trade := range trades {
		e.cb.OnTradeUpdate(trade)
	}
}

func (e *Engine) reportSyncError(err error) {
	logger.WithFields(map[string]interface{}{
		"engine": "sync",
	}).WithError(err).Error("Reconcile fetch failed, keeping last known good state")
	if e.cb.OnSyncError != nil {
		e.cb.OnSyncError(err)
	}
}

func (e *Engine) dropRecord(resource string, ev stream.Event, err error) {
	logger.WithFields(map[string]interface{}{
		"engine":   "sync",
		"resource": resource,
		"event":    string(ev.Kind),
	}).WithError(err).Error("Dropping malformed push record")
}

func recordID(rec mapper.Record) string {
	raw, ok := rec["id"]
	if !ok {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return ""
	}
	return id
}
