// Package ws is the websocket link to the simulator. One connection
// carries sensor events, actuator requests and teammate messages as
// JSON envelopes routed by event name.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"gridcourier/internal/domain"
	"gridcourier/internal/grid"
)

// Sensor events and actuator requests.
const (
	EventYou      = "you"
	EventMap      = "map"
	EventConfig   = "config"
	EventParcels  = "parcels_sensing"
	EventAgents   = "agents_sensing"
	EventMsg      = "msg"
	EventResponse = "response"

	EventMove    = "move"
	EventPickup  = "pickup"
	EventPutdown = "putdown"
	EventSay     = "say"
	EventShout   = "shout"
	EventAsk     = "ask"
	EventReply   = "reply"
)

type envelope struct {
	Event   string          `json:"event"`
	ReqID   string          `json:"req_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Handlers are the sensor callbacks invoked from the read loop, in
// arrival order.
type Handlers struct {
	OnYou     func(domain.Agent)
	OnConfig  func(domain.GameConfig)
	OnMap     func(width, height int, tiles []grid.Tile)
	OnParcels func([]domain.Parcel)
	OnAgents  func([]domain.Agent)
}

type Client struct {
	conn   *websocket.Conn
	logger *log.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan json.RawMessage

	inbox    chan domain.Message
	handlers Handlers
}

// Dial connects and authenticates against the simulator endpoint. The
// token and agent name travel as query parameters.
func Dial(ctx context.Context, host, name, token string, handlers Handlers, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Default()
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("%w: parse host: %v", domain.ErrTransport, err)
	}
	q := u.Query()
	q.Set("name", name)
	if token != "" {
		q.Set("token", token)
	}
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), http.Header{})
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", domain.ErrTransport, u.Host, err)
	}
	return NewClient(conn, handlers, logger), nil
}

// NewClient wraps an established connection; Dial is the usual entry,
// tests hand in their own conn.
func NewClient(conn *websocket.Conn, handlers Handlers, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		conn:     conn,
		logger:   logger,
		pending:  make(map[string]chan json.RawMessage),
		inbox:    make(chan domain.Message, 64),
		handlers: handlers,
	}
}

// SetHandlers installs the sensor callbacks. Must be called before Run;
// the connection dispatches nothing until then.
func (c *Client) SetHandlers(h Handlers) {
	c.handlers = h
}

// Inbox delivers teammate messages to the comms node.
func (c *Client) Inbox() <-chan domain.Message {
	return c.inbox
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Run reads frames until the connection fails or the context ends. The
// inbox is closed on exit so the comms node unblocks.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.inbox)
	go func() {
		<-ctx.Done()
		_ = c.conn.Close()
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: read: %v", domain.ErrTransport, err)
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.logger.Printf("malformed frame: %v", err)
			continue
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env envelope) {
	switch env.Event {
	case EventResponse:
		c.mu.Lock()
		ch, ok := c.pending[env.ReqID]
		delete(c.pending, env.ReqID)
		c.mu.Unlock()
		if ok {
			ch <- env.Payload
		}
	case EventYou:
		var a domain.Agent
		if c.decode(env, &a) && c.handlers.OnYou != nil {
			c.handlers.OnYou(a)
		}
	case EventConfig:
		var cfg domain.GameConfig
		if c.decode(env, &cfg) && c.handlers.OnConfig != nil {
			c.handlers.OnConfig(cfg)
		}
	case EventMap:
		var m struct {
			Width  int         `json:"width"`
			Height int         `json:"height"`
			Tiles  []grid.Tile `json:"tiles"`
		}
		if c.decode(env, &m) && c.handlers.OnMap != nil {
			c.handlers.OnMap(m.Width, m.Height, m.Tiles)
		}
	case EventParcels:
		var parcels []domain.Parcel
		if c.decode(env, &parcels) && c.handlers.OnParcels != nil {
			c.handlers.OnParcels(parcels)
		}
	case EventAgents:
		var agents []domain.Agent
		if c.decode(env, &agents) && c.handlers.OnAgents != nil {
			c.handlers.OnAgents(agents)
		}
	case EventMsg:
		c.dispatchMsg(env)
	default:
		c.logger.Printf("unknown event %q", env.Event)
	}
}

func (c *Client) dispatchMsg(env envelope) {
	var m struct {
		From    string          `json:"from"`
		Msg     json.RawMessage `json:"msg"`
		ReplyID string          `json:"reply_id,omitempty"`
	}
	if !c.decode(env, &m) {
		return
	}
	msg := domain.Message{From: m.From, Payload: m.Msg}
	if m.ReplyID != "" {
		replyID := m.ReplyID
		msg.Reply = func(resp []byte) error {
			return c.send(envelope{Event: EventReply, ReqID: replyID, Payload: resp})
		}
	}
	select {
	case c.inbox <- msg:
	default:
		c.logger.Printf("inbox full, dropping message from %s", m.From)
	}
}

func (c *Client) decode(env envelope, v any) bool {
	if err := json.Unmarshal(env.Payload, v); err != nil {
		c.logger.Printf("decode %s: %v", env.Event, err)
		return false
	}
	return true
}

func (c *Client) send(env envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("%w: write %s: %v", domain.ErrTransport, env.Event, err)
	}
	return nil
}

// request sends an envelope and blocks for the correlated response.
func (c *Client) request(ctx context.Context, event string, payload any) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal %s: %v", domain.ErrTransport, event, err)
	}
	reqID := uuid.NewString()
	ch := make(chan json.RawMessage, 1)
	c.mu.Lock()
	c.pending[reqID] = ch
	c.mu.Unlock()

	if err := c.send(envelope{Event: event, ReqID: reqID, Payload: raw}); err != nil {
		c.mu.Lock()
		delete(c.pending, reqID)
		c.mu.Unlock()
		return nil, err
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, reqID)
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}

// Move issues one step. A refusal from the simulator surfaces as
// ErrMoveFailed so plans can revise.
func (c *Client) Move(ctx context.Context, m domain.Move) (err error) {
	resp, err := c.request(ctx, EventMove, map[string]string{"direction": string(m)})
	if err != nil {
		return err
	}
	var ok bool
	if err := json.Unmarshal(resp, &ok); err != nil {
		// Some simulator builds answer with the updated agent record
		// instead of a bare boolean.
		var a domain.Agent
		if json.Unmarshal(resp, &a) == nil && a.ID != "" {
			return nil
		}
		return fmt.Errorf("%w: move response: %v", domain.ErrTransport, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", m, domain.ErrMoveFailed)
	}
	return nil
}

func (c *Client) Pickup(ctx context.Context) ([]domain.Parcel, error) {
	resp, err := c.request(ctx, EventPickup, struct{}{})
	if err != nil {
		return nil, err
	}
	var parcels []domain.Parcel
	if err := json.Unmarshal(resp, &parcels); err != nil {
		return nil, fmt.Errorf("%w: pickup response: %v", domain.ErrTransport, err)
	}
	return parcels, nil
}

func (c *Client) Drop(ctx context.Context) ([]domain.Parcel, error) {
	resp, err := c.request(ctx, EventPutdown, struct{}{})
	if err != nil {
		return nil, err
	}
	var parcels []domain.Parcel
	if err := json.Unmarshal(resp, &parcels); err != nil {
		return nil, fmt.Errorf("%w: putdown response: %v", domain.ErrTransport, err)
	}
	return parcels, nil
}

// Say, Shout and Ask implement the teammate transport over the same
// connection.
func (c *Client) Say(ctx context.Context, to string, payload []byte) error {
	return c.send(envelope{Event: EventSay, Payload: mustMarshal(map[string]any{
		"to":  to,
		"msg": json.RawMessage(payload),
	})})
}

func (c *Client) Shout(ctx context.Context, payload []byte) error {
	return c.send(envelope{Event: EventShout, Payload: mustMarshal(map[string]any{
		"msg": json.RawMessage(payload),
	})})
}

func (c *Client) Ask(ctx context.Context, to string, payload []byte) ([]byte, error) {
	resp, err := c.request(ctx, EventAsk, map[string]any{
		"to":  to,
		"msg": json.RawMessage(payload),
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func mustMarshal(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return raw
}
