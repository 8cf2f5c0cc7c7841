package syncd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradedeck/src/connectors"
	"tradedeck/src/engine"
	"tradedeck/src/model"
	"tradedeck/src/notify"
	"tradedeck/src/stream"
)

// SyncDaemon runs the live sync engine headless: change-stream events and
// derived metrics come out as structured log lines instead of UI paints.
type SyncDaemon struct {
	Log    *logger.Entry
	Config *Config
}

func (d *SyncDaemon) Start() error {
	d.Config = GetConfig()
	statuses := d.Config.StatusTable()

	client := stream.NewClient(stream.GetConfig())
	feedClient := connectors.NewFeedClient(connectors.GetConfig(), statuses)

	eng := engine.New(
		engine.StreamAdapter{Client: client},
		feedClient,
		feedClient,
		statuses,
		d.Config.ReconcileInterval,
		d.callbacks(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go d.watchConnection(ctx, client, eng)

	return eng.Run(ctx)
}

// watchConnection re-dials with a fixed backoff whenever the stream drops.
// The engine itself never retries; that loop lives here at the edge.
func (d *SyncDaemon) watchConnection(ctx context.Context, client *stream.Client, eng *engine.Engine) {
	statuses := client.StatusChanges()
	defer client.UnwatchStatus(statuses)
	for {
		select {
		case <-ctx.Done():
			return
		case status, ok := <-statuses:
			if !ok {
				return
			}
			if status != stream.StatusDisconnected && status != stream.StatusError {
				continue
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(d.Config.ReconnectBackoff):
			}

			if err := eng.Reconnect(ctx); err != nil {
				d.Log.WithError(err).Error("stream reconnect failed, will retry on next status drop")
			}
		}
	}
}

func (d *SyncDaemon) callbacks() engine.Callbacks {
	return engine.Callbacks{
		OnPriceUpdate: func(assetID string, price float64) {
			d.Log.WithFields(logger.Fields{"asset": assetID, "price": price}).Debug("price update")
		},
		OnTradeInsert: func(trade model.TradeWithMetrics) {
			d.Log.WithFields(logger.Fields{"trade": trade.ID, "asset": trade.AssetID}).Info("trade opened")
		},
		OnTradeUpdate: func(trade model.TradeWithMetrics) {
			d.Log.WithFields(logger.Fields{
				"trade": trade.ID,
				"pnl":   trade.Metrics.UnrealizedPnl,
			}).Debug("trade updated")
		},
		OnTradeDelete: func(tradeID string) {
			d.Log.WithField("trade", tradeID).Info("trade removed")
		},
		OnTradeClose: func(trade model.Trade) {
			d.Log.WithFields(logger.Fields{"trade": trade.ID, "status": trade.Status}).Info("trade closed")
		},
		OnNewSession: func(session model.CouncilSession) {
			d.Log.WithFields(logger.Fields{
				"session":  session.ID,
				"decision": session.FinalDecision,
			}).Info("council session recorded")
		},
		OnAlert: func(alert notify.Alert) {
			d.Log.WithFields(logger.Fields{
				"severity": string(alert.Severity),
				"title":    alert.Title,
			}).Info(alert.Body)
		},
		OnSyncError: func(err error) {
			d.Log.WithError(err).Warn("reconcile failed")
		},
	}
}
