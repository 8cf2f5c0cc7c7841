package mapper

import (
	logger "github.com/sirupsen/logrus"

	"tradedeck/src/model"
)

// AssetFromRecord converts a raw assets row into a typed model.Asset.
func AssetFromRecord(rec Record) (*model.Asset, error) {
	const resource = "asset"

	id, err := requireString(resource, rec, "id")
	if err != nil {
		return nil, err
	}
	symbol, err := requireString(resource, rec, "symbol")
	if err != nil {
		return nil, err
	}
	lastPrice, err := requireFloat(resource, rec, "last_price")
	if err != nil {
		return nil, err
	}

	asset := &model.Asset{
		ID:        id,
		Symbol:    symbol,
		Name:      optString(rec, "name"),
		LastPrice: lastPrice,
		IsActive:  optBool(rec, "is_active"),
	}

	// Scanner display fields are optional on the wire but fail the record
	// when present and uncoercible, same as any other numeric.
	if vol, err := optFloat(resource, rec, "volume_24h"); err != nil {
		return nil, err
	} else if vol != nil {
		asset.Volume24h = *vol
	}
	if chg, err := optFloat(resource, rec, "price_change_24h_pct"); err != nil {
		return nil, err
	} else if chg != nil {
		asset.PriceChange24hPct = *chg
	}
	if updated := optTime(rec, "updated_at"); updated != nil {
		asset.UpdatedAt = *updated
	}

	return asset, nil
}

func AssetsFromRecords(recs []Record) []model.Asset {
	out := make([]model.Asset, 0, len(recs))
	for _, rec := range recs {
		asset, err := AssetFromRecord(rec)
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"mapper":   "AssetsFromRecords",
				"resource": "asset",
			}).WithError(err).Error("Dropping malformed asset record")
			continue
		}
		out = append(out, *asset)
	}
	return out
}
