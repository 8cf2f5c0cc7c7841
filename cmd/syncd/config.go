package syncd

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"tradedeck/src/model"
)

type Config struct {
	ReconcileInterval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"60s"`
	ReconnectBackoff  time.Duration `envconfig:"RECONNECT_BACKOFF" default:"5s"`
	OpenStatuses      string        `envconfig:"OPEN_STATUSES" default:"open,active"`
	TerminalStatuses  string        `envconfig:"TERMINAL_STATUSES" default:"closed,stopped_out,take_profit"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}

// StatusTable builds the status classification from the env overrides,
// falling back to the defaults when a list is empty.
func (c *Config) StatusTable() model.StatusTable {
	table := model.StatusTable{
		Open:     splitStatuses(c.OpenStatuses),
		Terminal: splitStatuses(c.TerminalStatuses),
	}

	defaults := model.DefaultStatusTable()
	if len(table.Open) == 0 {
		table.Open = defaults.Open
	}
	if len(table.Terminal) == 0 {
		table.Terminal = defaults.Terminal
	}
	return table
}

func splitStatuses(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		status := strings.TrimSpace(part)
		if status == "" {
			continue
		}
		out = append(out, status)
	}
	return out
}
