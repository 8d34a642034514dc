// Package events streams protocol events from the Circles RPC over
// WebSocket and keeps the token-info cache warm as new tokens deploy.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"circles-flow/internal/observability"
)

// Event is one decoded notification from the Circles event stream.
type Event struct {
	// Name is the indexer event type, e.g. "CrcV2_RegisterHuman".
	Name string
	// Values holds the event payload keyed by field name. Values are
	// decoded as strings; non-string payload fields are skipped.
	Values map[string]string
}

// Config configures WebSocket client behavior.
type Config struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultConfig returns default WebSocket configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Client maintains one eth_subscribe("circles") stream over a
// gorilla/websocket connection, reconnecting and resubscribing on
// connection loss.
type Client struct {
	endpoint string
	config   Config

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// events carries decoded notifications to the single subscriber.
	events   chan Event
	eventsMu sync.Mutex

	// subID is the active subscription id, guarded by subMu.
	subID      string
	subMu      sync.Mutex
	subscribed atomic.Bool

	// pending maps request ID to channel waiting for a subscription id.
	pending   map[uint64]chan string
	pendingMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewClient connects to the endpoint and starts the read and ping loops.
func NewClient(ctx context.Context, endpoint string, config *Config) (*Client, error) {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}

	c := &Client{
		endpoint: endpoint,
		config:   cfg,
		pending:  make(map[uint64]chan string),
		done:     make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

func (c *Client) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// Subscribe opens the Circles event stream. Only one subscription per
// client; a second call returns the same channel.
func (c *Client) Subscribe(ctx context.Context) (<-chan Event, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("client closed")
	}

	c.eventsMu.Lock()
	if c.events != nil {
		ch := c.events
		c.eventsMu.Unlock()
		return ch, nil
	}
	// Buffer absorbs bursts; delivery blocks rather than dropping events.
	ch := make(chan Event, 10000)
	c.events = ch
	c.eventsMu.Unlock()

	subID, err := c.subscribe(ctx)
	if err != nil {
		c.eventsMu.Lock()
		c.events = nil
		c.eventsMu.Unlock()
		return nil, err
	}

	c.subMu.Lock()
	c.subID = subID
	c.subMu.Unlock()
	c.subscribed.Store(true)

	return ch, nil
}

// subscribe sends eth_subscribe and waits for the subscription id.
func (c *Client) subscribe(ctx context.Context) (string, error) {
	reqID := c.requestID.Add(1)

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "eth_subscribe",
		Params:  []interface{}{"circles"},
	}

	confirmCh := make(chan string, 1)
	c.pendingMu.Lock()
	c.pending[reqID] = confirmCh
	c.pendingMu.Unlock()

	dropPending := func() {
		c.pendingMu.Lock()
		delete(c.pending, reqID)
		c.pendingMu.Unlock()
	}

	c.connMu.Lock()
	if c.conn == nil {
		c.connMu.Unlock()
		dropPending()
		return "", fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(req)
	c.connMu.Unlock()

	if err != nil {
		dropPending()
		return "", fmt.Errorf("write subscribe: %w", err)
	}

	select {
	case subID := <-confirmCh:
		if subID == "" {
			return "", fmt.Errorf("subscription rejected")
		}
		return subID, nil
	case <-time.After(30 * time.Second):
		dropPending()
		return "", fmt.Errorf("subscription timeout after 30s")
	case <-c.done:
		return "", fmt.Errorf("client closed")
	case <-ctx.Done():
		dropPending()
		return "", ctx.Err()
	}
}

// Close closes the WebSocket connection and the event channel.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.pendingMu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()

	c.wg.Wait()

	c.eventsMu.Lock()
	if c.events != nil {
		close(c.events)
		c.events = nil
	}
	c.eventsMu.Unlock()

	return nil
}

// readLoop reads messages and dispatches them, reconnecting with
// exponential backoff on connection loss.
func (c *Client) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			if !c.reconnecting.Swap(true) {
				go c.reconnect(reconnectDelay)
			}

			reconnectDelay *= 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = c.config.ReconnectDelay

		observability.RecordWSMessage()
		c.handleMessage(message)
	}
}

// reconnect redials and restores the subscription.
func (c *Client) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		// Redial failed, the next read error retries.
		return
	}

	observability.RecordWSReconnect()

	if !c.subscribed.Load() {
		return
	}

	subID, err := c.subscribe(ctx)
	if err != nil {
		log.Printf("[events] resubscribe failed: %v", err)
		return
	}

	c.subMu.Lock()
	c.subID = subID
	c.subMu.Unlock()
}

func (c *Client) handleMessage(message []byte) {
	// Subscription confirmation carries a string result.
	var resp wsSubscribeResponse
	if err := json.Unmarshal(message, &resp); err == nil && resp.ID > 0 && resp.Result != "" {
		c.handleSubscribeResponse(&resp)
		return
	}

	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err == nil && notif.Method == "eth_subscription" {
		c.handleNotification(&notif)
		return
	}

	var errResp struct {
		ID    uint64 `json:"id"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(message, &errResp); err == nil && errResp.Error != nil {
		log.Printf("[events] rpc error: code=%d msg=%s", errResp.Error.Code, errResp.Error.Message)
		c.handleSubscribeResponse(&wsSubscribeResponse{ID: errResp.ID})
	}
}

func (c *Client) handleSubscribeResponse(resp *wsSubscribeResponse) {
	c.pendingMu.Lock()
	ch, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
	}
	c.pendingMu.Unlock()

	if ok {
		select {
		case ch <- resp.Result:
		default:
		}
	}
}

func (c *Client) handleNotification(notif *wsNotification) {
	if notif.Params == nil {
		return
	}

	c.subMu.Lock()
	active := c.subID
	c.subMu.Unlock()
	if active != "" && notif.Params.Subscription != active {
		return
	}

	var payloads []wsEventPayload
	if err := json.Unmarshal(notif.Params.Result, &payloads); err != nil {
		// Some providers deliver single events unwrapped.
		var single wsEventPayload
		if err := json.Unmarshal(notif.Params.Result, &single); err != nil {
			return
		}
		payloads = []wsEventPayload{single}
	}

	c.eventsMu.Lock()
	ch := c.events
	c.eventsMu.Unlock()
	if ch == nil {
		return
	}

	for _, p := range payloads {
		ev := Event{Name: p.Event, Values: make(map[string]string, len(p.Values))}
		for k, raw := range p.Values {
			var s string
			if err := json.Unmarshal(raw, &s); err == nil {
				ev.Values[k] = s
			}
		}

		// Block until delivered, events are never dropped.
		select {
		case ch <- ev:
		case <-c.done:
			return
		}
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				// Write errors surface in the read loop as reconnects.
				_ = c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsSubscribeResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Result  string `json:"result"` // subscription id
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription string          `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

type wsEventPayload struct {
	Event  string                     `json:"event"`
	Values map[string]json.RawMessage `json:"values"`
}
