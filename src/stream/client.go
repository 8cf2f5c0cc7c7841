package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"

	"tradedeck/src/mapper"
)

type EventKind string

const (
	EventInsert EventKind = "INSERT"
	EventUpdate EventKind = "UPDATE"
	EventDelete EventKind = "DELETE"
	EventAll    EventKind = "*"
)

// Status is the health of the push channel. Transport failures surface
// here and nowhere else; the client never throws them at handlers and
// never heals state by itself. After a reconnect the caller reconciles
// missed events with a full refetch.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// Event is one row-level change notification.
type Event struct {
	Kind      EventKind
	Resource  string
	Record    mapper.Record
	OldRecord mapper.Record
	Seq       int64
}

// Handler receives events for one subscription, in provider emission
// order. No ordering is guaranteed across distinct subscriptions.
type Handler func(Event)

var ErrNotConnected = errors.New("stream: client is not connected")

// envelope is the provider's wire frame.
type envelope struct {
	Type      string        `json:"type"`
	Table     string        `json:"table"`
	Record    mapper.Record `json:"record"`
	OldRecord mapper.Record `json:"old_record"`
	Seq       int64         `json:"seq"`
}

type subscribeFrame struct {
	Action   string `json:"action"`
	ID       string `json:"id"`
	Table    string `json:"table"`
	Event    string `json:"event"`
	Filter   string `json:"filter,omitempty"`
	APIKey   string `json:"apikey,omitempty"`
	ClientID string `json:"client_id,omitempty"`
}

// Client is an explicit change-stream client instance. Construct one at
// the composition root and hand it to each subscriber; there is no
// package-level singleton.
type Client struct {
	cfg      Config
	dialer   *websocket.Dialer
	clientID string

	mu     sync.RWMutex
	conn   *websocket.Conn
	subs   map[string]*Subscription
	status Status

	watcherMu sync.Mutex
	watchers  []chan Status

	writeMu sync.Mutex
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
			Proxy:            http.ProxyFromEnvironment,
		},
		clientID: uuid.NewString(),
		subs:     make(map[string]*Subscription),
		status:   StatusConnecting,
	}
}

// Connect dials the provider and starts the read loop. It does not retry:
// on failure the status moves to error and the caller decides what to do.
func (c *Client) Connect(ctx context.Context) error {
	c.setStatus(StatusConnecting)

	header := http.Header{}
	if c.cfg.APIKey != "" {
		header.Set("apikey", c.cfg.APIKey)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		c.setStatus(StatusError)
		if resp != nil {
			return fmt.Errorf("stream dial failed (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("stream dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.setStatus(StatusConnected)

	logger.WithFields(map[string]interface{}{
		"component": "ChangeStreamClient",
		"url":       c.cfg.URL,
	}).Info("Change stream connected")

	go c.readLoop(conn)
	return nil
}

// Close tears the connection down. Status moves to disconnected.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	c.setStatus(StatusDisconnected)
	return conn.Close()
}

// Status returns the current channel health.
func (c *Client) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// StatusChanges registers a shared status watcher. The channel is
// buffered; a slow watcher misses intermediate states, never blocks the
// client.
func (c *Client) StatusChanges() <-chan Status {
	ch := make(chan Status, 8)
	c.watcherMu.Lock()
	c.watchers = append(c.watchers, ch)
	c.watcherMu.Unlock()
	return ch
}

// UnwatchStatus deregisters a channel returned by StatusChanges and
// closes it. Watchers outlive Close on purpose, since the same client
// is re-dialed on recovery; callers drop theirs when they stop caring.
func (c *Client) UnwatchStatus(ch <-chan Status) {
	c.watcherMu.Lock()
	defer c.watcherMu.Unlock()
	for i, watcher := range c.watchers {
		if watcher == ch {
			c.watchers = append(c.watchers[:i], c.watchers[i+1:]...)
			close(watcher)
			return
		}
	}
}

func (c *Client) setStatus(status Status) {
	c.mu.Lock()
	changed := c.status != status
	c.status = status
	c.mu.Unlock()

	if !changed {
		return
	}

	c.watcherMu.Lock()
	defer c.watcherMu.Unlock()
	for _, ch := range c.watchers {
		select {
		case ch <- status:
		default:
		}
	}
}

// Subscribe registers a handler for change events on one resource. The
// handler is looked up in the registration table at dispatch time, so a
// re-registered handler takes effect for the next event, not a stale
// closure captured here.
func (c *Client) Subscribe(resource string, kind EventKind, fn Handler, filterExpr string) (*Subscription, error) {
	if fn == nil {
		return nil, errors.New("stream: nil handler")
	}
	filter, err := ParseFilter(filterExpr)
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		id:       uuid.NewString(),
		client:   c,
		resource: resource,
		kind:     kind,
		filter:   filter,
		handler:  fn,
	}

	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	c.subs[sub.id] = sub
	c.mu.Unlock()

	if err := c.writeJSON(subscribeFrame{
		Action:   "subscribe",
		ID:       sub.id,
		Table:    resource,
		Event:    string(kind),
		Filter:   filter.String(),
		APIKey:   c.cfg.APIKey,
		ClientID: c.clientID,
	}); err != nil {
		c.removeSubscription(sub.id)
		return nil, fmt.Errorf("subscribe %s/%s: %w", resource, kind, err)
	}

	logger.WithFields(map[string]interface{}{
		"component": "ChangeStreamClient",
		"sub_id":    sub.id,
		"resource":  resource,
		"event":     string(kind),
		"filter":    filter.String(),
	}).Debug("Subscription registered")

	return sub, nil
}

func (c *Client) removeSubscription(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[id]; !ok {
		return false
	}
	delete(c.subs, id)
	return true
}

func (c *Client) writeJSON(v interface{}) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	return conn.WriteJSON(v)
}

// readLoop decodes frames and dispatches them synchronously, one at a
// time, so every handler runs to completion before the next event.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			c.onReadFailure(conn, err)
			return
		}

		var env envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			logger.WithFields(map[string]interface{}{
				"component": "ChangeStreamClient",
				"raw":       string(msg),
			}).WithError(err).Error("Undecodable stream frame, skipping")
			continue
		}
		if env.Type == "" || env.Table == "" {
			continue
		}

		c.dispatch(Event{
			Kind:      EventKind(env.Type),
			Resource:  env.Table,
			Record:    env.Record,
			OldRecord: env.OldRecord,
			Seq:       env.Seq,
		})
	}
}

func (c *Client) onReadFailure(conn *websocket.Conn, err error) {
	c.mu.Lock()
	current := c.conn == conn
	if current {
		c.conn = nil
	}
	c.mu.Unlock()

	if !current {
		// Close() already tore this connection down.
		return
	}

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.setStatus(StatusDisconnected)
	} else {
		c.setStatus(StatusError)
	}
	logger.WithFields(map[string]interface{}{
		"component": "ChangeStreamClient",
	}).WithError(err).Warn("Change stream read loop terminated")
}

// dispatch fans one event out to the matching subscriptions. The handler
// reference is read from the table under lock at dispatch time.
func (c *Client) dispatch(ev Event) {
	c.mu.RLock()
	matched := make([]Handler, 0, len(c.subs))
	for _, sub := range c.subs {
		if sub.matches(ev) {
			matched = append(matched, sub.handler)
		}
	}
	c.mu.RUnlock()

	for _, fn := range matched {
		fn(ev)
	}
}
