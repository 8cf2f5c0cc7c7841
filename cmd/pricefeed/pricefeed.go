package pricefeed

import (
	"context"
	"net/http"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"

	"tradedeck/src/model"
	"tradedeck/src/repository"
)

// PriceFeed polls exchange tickers and upserts the assets table the
// dashboard reads its prices from.
type PriceFeed struct {
	Log      *logger.Entry
	DB       *gorm.DB
	Config   *Config
	exchange goex.API
}

func (p *PriceFeed) Start() error {
	p.Config = GetConfig()

	p.exchange = p.newBinanceInstance()

	if p.Config.RunOnce {
		return p.collectOnce()
	}

	ticker := time.NewTicker(p.Config.Interval)
	defer ticker.Stop()

	for {
		if err := p.collectOnce(); err != nil {
			// A single bad poll is not fatal; prices just go stale
			// until the next tick.
			p.Log.WithError(err).Error("price poll failed")
		}
		<-ticker.C
	}
}

func (*PriceFeed) newBinanceInstance() *binance.Binance {
	apiConfig := &goex.APIConfig{
		HttpClient: http.DefaultClient,
		Endpoint:   binance.GLOBAL_API_BASE_URL,
	}
	return binance.NewWithConfig(apiConfig)
}

func (p *PriceFeed) collectOnce() error {
	symbols := p.parseSymbols()
	if len(symbols) == 0 {
		return repository.ErrEmptySymbol
	}

	assets := make([]model.Asset, 0, len(symbols))
	for _, symbol := range symbols {
		asset, err := p.fetchTicker(symbol)
		if err != nil {
			p.Log.WithError(err).
				WithField("symbol", symbol).
				Error("ticker fetch failed, skipping symbol")
			continue
		}
		assets = append(assets, *asset)
	}

	if len(assets) == 0 {
		return nil
	}

	repo := (&repository.AssetRepository{}).WithDB(p.DB)
	if err := repo.UpsertPrices(context.Background(), assets); err != nil {
		return err
	}

	p.Log.WithFields(logger.Fields{
		"Symbols":   len(assets),
		"Timestamp": time.Now().UTC(),
	}).Info("Asset prices inserted or updated in database")

	return nil
}

func (p *PriceFeed) fetchTicker(symbol string) (*model.Asset, error) {
	pair := goex.NewCurrencyPair(goex.Currency{Symbol: symbol}, goex.Currency{Symbol: p.Config.Quote})

	ticker, err := p.exchange.GetTicker(pair)
	if err != nil {
		return nil, err
	}

	return buildAsset(symbol, pair.String(), ticker), nil
}

// buildAsset maps one exchange ticker onto an assets row. The 24h change
// is approximated against the session midrange; the ticker carries no
// open price.
func buildAsset(symbol, pairSymbol string, ticker *goex.Ticker) *model.Asset {
	var changePct float64
	if mid := (ticker.High + ticker.Low) / 2; mid != 0 {
		changePct = (ticker.Last - mid) / mid * 100
	}

	return &model.Asset{
		ID:                symbol,
		Symbol:            pairSymbol,
		Name:              symbol,
		LastPrice:         ticker.Last,
		Volume24h:         ticker.Vol,
		PriceChange24hPct: changePct,
		IsActive:          true,
	}
}

func (p *PriceFeed) parseSymbols() []string {
	parts := strings.Split(p.Config.Symbols, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		symbol := strings.ToUpper(strings.TrimSpace(part))
		if symbol == "" {
			continue
		}
		out = append(out, symbol)
	}
	return out
}
