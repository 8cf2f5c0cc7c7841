package stream

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	URL              string        `envconfig:"STREAM_URL" default:"ws://localhost:4000/stream"`
	APIKey           string        `envconfig:"STREAM_API_KEY"`
	HandshakeTimeout time.Duration `envconfig:"STREAM_HANDSHAKE_TIMEOUT" default:"15s"`
	WriteTimeout     time.Duration `envconfig:"STREAM_WRITE_TIMEOUT" default:"10s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
