package mapper

import (
	logger "github.com/sirupsen/logrus"

	"tradedeck/src/model"
)

// TradeFromRecord converts a raw trades row into a typed model.Trade.
// Required numerics that cannot be coerced fail the record with a
// *MalformedRecordError; the caller drops and logs it.
func TradeFromRecord(rec Record) (*model.Trade, error) {
	const resource = "trade"

	id, err := requireString(resource, rec, "id")
	if err != nil {
		return nil, err
	}
	assetID, err := requireString(resource, rec, "asset_id")
	if err != nil {
		return nil, err
	}
	direction, err := requireString(resource, rec, "direction")
	if err != nil {
		return nil, err
	}
	status, err := requireString(resource, rec, "status")
	if err != nil {
		return nil, err
	}

	entry, err := requireFloat(resource, rec, "entry_price")
	if err != nil {
		return nil, err
	}
	stop, err := requireFloat(resource, rec, "stop_loss_price")
	if err != nil {
		return nil, err
	}
	size, err := requireFloat(resource, rec, "size")
	if err != nil {
		return nil, err
	}
	takeProfit, err := optFloat(resource, rec, "take_profit_price")
	if err != nil {
		return nil, err
	}
	exitPrice, err := optFloat(resource, rec, "exit_price")
	if err != nil {
		return nil, err
	}
	pnl, err := optFloat(resource, rec, "pnl")
	if err != nil {
		return nil, err
	}

	trade := &model.Trade{
		ID:              id,
		AssetID:         assetID,
		Direction:       direction,
		EntryPrice:      entry,
		StopLossPrice:   stop,
		TakeProfitPrice: takeProfit,
		Size:            size,
		Status:          status,
		ExitPrice:       exitPrice,
		ExitTime:        optTime(rec, "exit_time"),
		Pnl:             pnl,
		UpdateSeq:       optInt64(rec, "update_seq"),
	}
	if created := optTime(rec, "created_at"); created != nil {
		trade.CreatedAt = *created
	}
	if updated := optTime(rec, "updated_at"); updated != nil {
		trade.UpdatedAt = *updated
	}

	return trade, nil
}

// TradesFromRecords maps a fetched collection, dropping malformed rows
// one by one so a single bad row never discards the rest.
func TradesFromRecords(recs []Record) []model.Trade {
	out := make([]model.Trade, 0, len(recs))
	for _, rec := range recs {
		trade, err := TradeFromRecord(rec)
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"mapper":   "TradesFromRecords",
				"resource": "trade",
			}).WithError(err).Error("Dropping malformed trade record")
			continue
		}
		out = append(out, *trade)
	}
	return out
}
