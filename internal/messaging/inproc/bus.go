// Package inproc is an in-memory teammate transport. It backs the
// communication tests and local two-agents-one-process runs.
package inproc

import (
	"context"
	"errors"
	"sync"

	"gridcourier/internal/domain"
)

var (
	ErrAgentNotRegistered = errors.New("agent is not registered in bus")
	ErrAgentQueueFull     = errors.New("agent queue is full")
)

type Bus struct {
	mu     sync.RWMutex
	subs   map[string]chan domain.Message
	buffer int
}

func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{
		subs:   make(map[string]chan domain.Message),
		buffer: buffer,
	}
}

func (b *Bus) Register(agentID string) <-chan domain.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[agentID]; ok {
		return ch
	}
	ch := make(chan domain.Message, b.buffer)
	b.subs[agentID] = ch
	return ch
}

func (b *Bus) Unregister(agentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subs[agentID]
	if !ok {
		return
	}
	delete(b.subs, agentID)
	close(ch)
}

func (b *Bus) publish(msg domain.Message) error {
	b.mu.RLock()
	ch, ok := b.subs[msg.To]
	b.mu.RUnlock()
	if !ok {
		return ErrAgentNotRegistered
	}

	select {
	case ch <- msg:
		return nil
	default:
		return ErrAgentQueueFull
	}
}

func (b *Bus) others(agentID string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.subs))
	for id := range b.subs {
		if id != agentID {
			out = append(out, id)
		}
	}
	return out
}

// Endpoint is one agent's view of the bus, implementing the say, shout
// and ask primitives of the teammate link.
type Endpoint struct {
	bus *Bus
	id  string
}

func (b *Bus) Endpoint(agentID string) *Endpoint {
	return &Endpoint{bus: b, id: agentID}
}

// Shout delivers the payload to every other registered agent. Full
// queues are skipped, as a lossy broadcast would be on a real link.
func (e *Endpoint) Shout(ctx context.Context, payload []byte) error {
	for _, to := range e.bus.others(e.id) {
		err := e.bus.publish(domain.Message{From: e.id, To: to, Payload: payload})
		if err != nil && !errors.Is(err, ErrAgentQueueFull) {
			return err
		}
	}
	return nil
}

func (e *Endpoint) Say(ctx context.Context, to string, payload []byte) error {
	return e.bus.publish(domain.Message{From: e.id, To: to, Payload: payload})
}

// Ask delivers the payload and blocks for the single reply or context
// expiry.
func (e *Endpoint) Ask(ctx context.Context, to string, payload []byte) ([]byte, error) {
	replyCh := make(chan []byte, 1)
	msg := domain.Message{
		From:    e.id,
		To:      to,
		Payload: payload,
		Reply: func(resp []byte) error {
			select {
			case replyCh <- resp:
				return nil
			default:
				return errors.New("reply already delivered")
			}
		},
	}
	if err := e.bus.publish(msg); err != nil {
		return nil, err
	}
	select {
	case resp := <-replyCh:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
