// Package comms runs the teammate link: discovery, the three-way
// handshake, and session-scoped belief sharing. The lexicographically
// lower agent id initiates the handshake and thereafter owns the
// partitioning computation.
package comms

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"gridcourier/internal/beliefs"
	"gridcourier/internal/domain"
	"gridcourier/internal/intention"
	"gridcourier/internal/protocol"
	"gridcourier/internal/utility"
)

// Transport is the outbound half of the teammate link.
type Transport interface {
	Shout(ctx context.Context, payload []byte) error
	Say(ctx context.Context, to string, payload []byte) error
	Ask(ctx context.Context, to string, payload []byte) ([]byte, error)
}

type Options struct {
	SelfID  string
	TeamKey string

	HelloInterval     time.Duration
	AskTimeout        time.Duration
	PartitionInterval time.Duration

	Logger *log.Logger
	Tracer intention.Tracer

	// OnRevision fires after every remote belief merge so the driver can
	// re-run option generation.
	OnRevision func()
}

type Node struct {
	opts      Options
	transport Transport
	inbox     <-chan domain.Message
	beliefs   *beliefs.Set

	mu             sync.Mutex
	done           bool
	initiated      bool
	sessionID      string
	teammateID     string
	pendingSession string
	pendingPeer    string
	initInFlight   bool
}

func NewNode(opts Options, transport Transport, inbox <-chan domain.Message, b *beliefs.Set) *Node {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.HelloInterval <= 0 {
		opts.HelloInterval = time.Second
	}
	if opts.AskTimeout <= 0 {
		opts.AskTimeout = 3 * time.Second
	}
	if opts.PartitionInterval <= 0 {
		opts.PartitionInterval = 10 * time.Second
	}
	return &Node{opts: opts, transport: transport, inbox: inbox, beliefs: b}
}

// Run drives discovery and message handling until the context ends or
// the inbox closes.
func (n *Node) Run(ctx context.Context) {
	helloTicker := time.NewTicker(n.opts.HelloInterval)
	defer helloTicker.Stop()
	partTicker := time.NewTicker(n.opts.PartitionInterval)
	defer partTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-n.inbox:
			if !ok {
				return
			}
			n.handle(ctx, msg)
		case <-helloTicker.C:
			if !n.Handshaken() {
				n.shoutHello(ctx)
			}
		case <-partTicker.C:
			if n.OwnsPartitioning() {
				n.RecomputeAndBroadcast(ctx)
			}
		}
	}
}

func (n *Node) Handshaken() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.done
}

func (n *Node) SessionID() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sessionID
}

func (n *Node) TeammateID() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.teammateID
}

// OwnsPartitioning reports whether this agent initiated the handshake
// and is therefore responsible for partition recomputation.
func (n *Node) OwnsPartitioning() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.done && n.initiated
}

func (n *Node) shoutHello(ctx context.Context) {
	payload, err := protocol.Encode(protocol.Hello{
		Type:      protocol.TypeHello,
		TeamID:    n.opts.TeamKey,
		AgentID:   n.opts.SelfID,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		n.opts.Logger.Printf("encode hello: %v", err)
		return
	}
	if err := n.transport.Shout(ctx, payload); err != nil {
		n.opts.Logger.Printf("shout hello: %v", err)
	}
}

func (n *Node) handle(ctx context.Context, msg domain.Message) {
	base, err := protocol.DecodeBase(msg.Payload)
	if err != nil {
		n.opts.Logger.Printf("malformed message from %s: %v", msg.From, err)
		return
	}

	switch base.Type {
	case protocol.TypeHello:
		n.handleHello(ctx, msg.Payload)
	case protocol.TypeHandshakeInit:
		n.handleInit(msg)
	case protocol.TypeHandshakeConfirm:
		n.handleConfirm(msg.Payload)
	default:
		n.handleSteadyState(base, msg)
	}
}

func (n *Node) handleHello(ctx context.Context, payload []byte) {
	var m protocol.Hello
	if err := json.Unmarshal(payload, &m); err != nil {
		return
	}
	if m.TeamID != n.opts.TeamKey || m.AgentID == n.opts.SelfID {
		return
	}

	n.mu.Lock()
	// Only the lower id initiates; the other side waits for the init ask.
	shouldInitiate := !n.done && !n.initInFlight && n.opts.SelfID < m.AgentID
	if shouldInitiate {
		n.initInFlight = true
	}
	n.mu.Unlock()
	if !shouldInitiate {
		return
	}

	err := n.initiateHandshake(ctx, m.AgentID)
	n.mu.Lock()
	n.initInFlight = false
	n.mu.Unlock()
	if err != nil {
		n.opts.Logger.Printf("handshake with %s: %v", m.AgentID, err)
	}
}

func (n *Node) initiateHandshake(ctx context.Context, peer string) error {
	nonce := uuid.NewString()
	payload, err := protocol.Encode(protocol.HandshakeInit{
		Type:    protocol.TypeHandshakeInit,
		TeamKey: n.opts.TeamKey,
		Nonce:   nonce,
		From:    n.opts.SelfID,
	})
	if err != nil {
		return err
	}

	askCtx, cancel := context.WithTimeout(ctx, n.opts.AskTimeout)
	defer cancel()
	resp, err := n.transport.Ask(askCtx, peer, payload)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	var ack protocol.HandshakeAck
	if err := json.Unmarshal(resp, &ack); err != nil {
		return fmt.Errorf("decode ack: %w", err)
	}
	if ack.TeamKey != n.opts.TeamKey {
		return fmt.Errorf("ack team key mismatch")
	}
	if ack.EchoNonce != nonce {
		return fmt.Errorf("ack nonce mismatch")
	}
	if ack.SessionID == "" {
		return fmt.Errorf("ack without session id")
	}

	confirm, err := protocol.Encode(protocol.HandshakeConfirm{
		Type:      protocol.TypeHandshakeConfirm,
		SessionID: ack.SessionID,
		From:      n.opts.SelfID,
	})
	if err != nil {
		return err
	}
	if err := n.transport.Say(ctx, peer, confirm); err != nil {
		return fmt.Errorf("confirm: %w", err)
	}

	n.complete(ctx, ack.SessionID, peer, true)
	return nil
}

func (n *Node) handleInit(msg domain.Message) {
	if msg.Reply == nil {
		n.opts.Logger.Printf("handshake init from %s without reply channel", msg.From)
		return
	}
	var m protocol.HandshakeInit
	if err := json.Unmarshal(msg.Payload, &m); err != nil {
		return
	}
	if m.TeamKey != n.opts.TeamKey {
		return
	}
	// Wrong direction: the lower id asks, it never answers.
	if n.opts.SelfID < m.From {
		return
	}

	sessionID := uuid.NewString()
	ack, err := protocol.Encode(protocol.HandshakeAck{
		Type:      protocol.TypeHandshakeAck,
		TeamKey:   n.opts.TeamKey,
		SessionID: sessionID,
		From:      n.opts.SelfID,
		EchoNonce: m.Nonce,
	})
	if err != nil {
		return
	}
	if err := msg.Reply(ack); err != nil {
		n.opts.Logger.Printf("reply ack to %s: %v", m.From, err)
		return
	}

	n.mu.Lock()
	n.pendingSession = sessionID
	n.pendingPeer = m.From
	n.mu.Unlock()
}

func (n *Node) handleConfirm(payload []byte) {
	var m protocol.HandshakeConfirm
	if err := json.Unmarshal(payload, &m); err != nil {
		return
	}
	n.mu.Lock()
	match := n.pendingSession != "" && m.SessionID == n.pendingSession && m.From == n.pendingPeer
	n.mu.Unlock()
	if !match {
		return
	}
	n.complete(context.Background(), m.SessionID, m.From, false)
}

func (n *Node) complete(ctx context.Context, sessionID, peer string, initiated bool) {
	n.mu.Lock()
	n.done = true
	n.initiated = initiated
	n.sessionID = sessionID
	n.teammateID = peer
	n.pendingSession = ""
	n.pendingPeer = ""
	n.mu.Unlock()

	n.beliefs.SetTeammateID(peer)
	n.opts.Logger.Printf("handshake complete session=%s teammate=%s initiated=%t", sessionID, peer, initiated)
	if n.opts.Tracer != nil {
		n.opts.Tracer.Trace("comms", "handshake_complete", "teammate link established", map[string]any{
			"session_id": sessionID,
			"teammate":   peer,
			"initiated":  initiated,
		})
	}

	if self, ok := n.beliefs.Self(); ok {
		n.ShareMyInfo(ctx, self)
	}
	if initiated {
		n.RecomputeAndBroadcast(ctx)
	}
}

func (n *Node) handleSteadyState(base protocol.BaseMessage, msg domain.Message) {
	n.mu.Lock()
	done, session := n.done, n.sessionID
	n.mu.Unlock()
	if !done || base.SessionID != session {
		return
	}

	switch base.Type {
	case protocol.TypeParcelsSensed:
		var m protocol.ParcelsSensed
		if err := json.Unmarshal(msg.Payload, &m); err != nil {
			return
		}
		n.beliefs.UpdateFromParcels(m.Parcels)
	case protocol.TypeAgentsSensed:
		var m protocol.AgentsSensed
		if err := json.Unmarshal(msg.Payload, &m); err != nil {
			return
		}
		n.beliefs.UpdateFromAgents(m.Agents)
	case protocol.TypeMyInfo:
		var m protocol.MyInfo
		if err := json.Unmarshal(msg.Payload, &m); err != nil {
			return
		}
		n.beliefs.UpdateTeammate(m.Info)
	case protocol.TypeMapPartitioning:
		var m protocol.MapPartitioning
		if err := json.Unmarshal(msg.Payload, &m); err != nil {
			return
		}
		n.beliefs.SetPartitioning(domain.Partitioning(m.Partitioning))
	default:
		return
	}

	if n.opts.OnRevision != nil {
		n.opts.OnRevision()
	}
}

func (n *Node) sayToTeammate(ctx context.Context, v any) {
	n.mu.Lock()
	done, peer := n.done, n.teammateID
	n.mu.Unlock()
	if !done {
		return
	}
	payload, err := protocol.Encode(v)
	if err != nil {
		n.opts.Logger.Printf("encode teammate message: %v", err)
		return
	}
	if err := n.transport.Say(ctx, peer, payload); err != nil {
		n.opts.Logger.Printf("say to %s: %v", peer, err)
	}
}

// ShareParcels forwards a local parcel sensing event to the teammate.
func (n *Node) ShareParcels(ctx context.Context, parcels []domain.Parcel) {
	n.sayToTeammate(ctx, protocol.ParcelsSensed{
		Type:      protocol.TypeParcelsSensed,
		SessionID: n.SessionID(),
		From:      n.opts.SelfID,
		Parcels:   parcels,
	})
}

// ShareAgents forwards a local agent sighting to the teammate.
func (n *Node) ShareAgents(ctx context.Context, agents []domain.Agent) {
	n.sayToTeammate(ctx, protocol.AgentsSensed{
		Type:      protocol.TypeAgentsSensed,
		SessionID: n.SessionID(),
		From:      n.opts.SelfID,
		Agents:    agents,
	})
}

// ShareMyInfo updates the teammate's record of this agent.
func (n *Node) ShareMyInfo(ctx context.Context, info domain.Agent) {
	n.sayToTeammate(ctx, protocol.MyInfo{
		Type:      protocol.TypeMyInfo,
		SessionID: n.SessionID(),
		From:      n.opts.SelfID,
		Info:      info,
	})
}

// BroadcastPartitioning ships the generator assignment to the teammate.
func (n *Node) BroadcastPartitioning(ctx context.Context, p domain.Partitioning) {
	n.sayToTeammate(ctx, protocol.MapPartitioning{
		Type:         protocol.TypeMapPartitioning,
		SessionID:    n.SessionID(),
		From:         n.opts.SelfID,
		Partitioning: p,
	})
}

// RecomputeAndBroadcast rebuilds the partitioning from current beliefs,
// installs it locally and ships it to the teammate. Only the handshake
// initiator calls it.
func (n *Node) RecomputeAndBroadcast(ctx context.Context) {
	world := n.beliefs.Grid()
	if world == nil {
		return
	}
	self, ok := n.beliefs.Self()
	if !ok {
		return
	}
	agents := []domain.Agent{self}
	if teammate, ok := n.beliefs.Teammate(); ok {
		agents = append(agents, teammate)
	}

	part := utility.ComputePartitioning(world, agents)
	if len(part) == 0 {
		return
	}
	n.beliefs.SetPartitioning(part)
	n.BroadcastPartitioning(ctx, part)
	if n.opts.Tracer != nil {
		n.opts.Tracer.Trace("comms", "partitioning_broadcast", "generator assignment refreshed", part)
	}
}
