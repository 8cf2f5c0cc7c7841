package model

// StatusTable partitions trade statuses into live ("open-like") and
// terminal ("terminal-like") sets. The persisted enum differs between
// deployments, so the partition is configuration, not code.
type StatusTable struct {
	Open     []string
	Terminal []string
}

func DefaultStatusTable() StatusTable {
	return StatusTable{
		Open:     []string{TradeStatusOpen, TradeStatusActive},
		Terminal: []string{TradeStatusClosed, TradeStatusStoppedOut, TradeStatusTakeProfit},
	}
}

func (t StatusTable) IsOpen(status string) bool {
	for _, s := range t.Open {
		if s == status {
			return true
		}
	}
	return false
}

func (t StatusTable) IsTerminal(status string) bool {
	for _, s := range t.Terminal {
		if s == status {
			return true
		}
	}
	return false
}
