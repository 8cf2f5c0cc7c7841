package stream

import (
	logger "github.com/sirupsen/logrus"
)

// Subscription is one registered listener. Unsubscribe is idempotent and
// releases the registration immediately: no further handler invocations
// happen after it returns, though events already queued by the transport
// may still have been delivered just before.
type Subscription struct {
	id       string
	client   *Client
	resource string
	kind     EventKind
	filter   Filter
	handler  Handler
}

func (s *Subscription) ID() string {
	return s.id
}

func (s *Subscription) Unsubscribe() {
	if !s.client.removeSubscription(s.id) {
		return
	}

	// Best effort: the registration table is already clean, a write
	// failure just means the server keeps streaming into the void until
	// the connection drops.
	if err := s.client.writeJSON(subscribeFrame{
		Action: "unsubscribe",
		ID:     s.id,
	}); err != nil {
		logger.WithFields(map[string]interface{}{
			"component": "ChangeStreamClient",
			"sub_id":    s.id,
		}).WithError(err).Debug("Unsubscribe frame not delivered")
	}
}

func (s *Subscription) matches(ev Event) bool {
	if s.resource != ev.Resource {
		return false
	}
	if s.kind != EventAll && s.kind != ev.Kind {
		return false
	}
	rec := ev.Record
	if ev.Kind == EventDelete {
		rec = ev.OldRecord
	}
	return s.filter.Matches(rec)
}
