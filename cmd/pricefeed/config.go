package pricefeed

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Symbols  string        `envconfig:"SYMBOLS" default:"BTC,ETH,SOL"`
	Quote    string        `envconfig:"QUOTE" default:"USDT"`
	Interval time.Duration `envconfig:"INTERVAL" default:"30s"`
	RunOnce  bool          `envconfig:"RUN_ONCE" default:"false"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
