package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	FeedBaseURL string        `envconfig:"FEED_API_URL" default:"http://localhost:3000"`
	FeedAPIKey  string        `envconfig:"FEED_API_KEY"`
	FeedTimeout time.Duration `envconfig:"FEED_API_TIMEOUT" default:"15s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
