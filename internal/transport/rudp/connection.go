// Package rudp implements a reliable, in-order, at-least-once transport
// multiplexed over a single unreliable datagram socket.
//
// The state machine, retransmission regime, and reorder/reassembly logic
// here follow the same shape as a classic RDPEUDP-style connection engine:
// per-connection mutual exclusion, goroutine-driven timers, and explicit
// send/receive buffers keyed by sequence number.
package rudp

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/gorudp/rudp/internal/clock"
	"github.com/gorudp/rudp/internal/logging"
	"github.com/gorudp/rudp/internal/protocol/packet"
)

// State is a Connection's position in the handshake/data/shutdown state
// machine.
type State int

const (
	// StateInitial is the state a Connection is constructed in. A
	// zero-delay scheduled action moves it to StateConnecting; the split
	// exists solely so construction and first-send are decoupled from
	// the event loop.
	StateInitial State = iota
	// StateConnecting is entered once the local side has sent (or is
	// sending) a SYN.
	StateConnecting
	// StateHalfConnected is entered when a peer SYN without an ack arrives
	// while INITIAL or CONNECTING; we reply with SYN-ACK and await
	// confirmation.
	StateHalfConnected
	// StateConnected is entered once both sides have confirmed the
	// handshake. Data flows freely.
	StateConnected
	// StateShutdown is terminal.
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "INITIAL"
	case StateConnecting:
		return "CONNECTING"
	case StateHalfConnected:
		return "HALF_CONNECTED"
	case StateConnected:
		return "CONNECTED"
	case StateShutdown:
		return "SHUTDOWN"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Protocol constants (Section 4.3). They are package-level constants;
// Config has no fields to override them per Connection.
const (
	// PacketTimeout is the per-packet retransmission interval.
	PacketTimeout = 700 * time.Millisecond
	// BareACKTimeout is the delay before sending a standalone ACK.
	BareACKTimeout = 300 * time.Millisecond
	// MaxPacketDelay bounds how long a packet may be retried before the
	// connection gives up.
	MaxPacketDelay = 20 * time.Second
	// MaxRetransmissions is floor(MaxPacketDelay / PacketTimeout).
	MaxRetransmissions = int(MaxPacketDelay / PacketTimeout)
	// UDPSafeSegmentSize is the fragmentation threshold for message
	// payloads.
	UDPSafeSegmentSize = 1000
	// WindowSize is the maximum number of unacknowledged outstanding
	// payload packets.
	WindowSize = 65535 / UDPSafeSegmentSize
)

// Sentinel errors.
var (
	ErrInvalidState  = errors.New("rudp: invalid state for operation")
	ErrMalformedKey  = errors.New("rudp: malformed peer public key")
	ErrShutdown      = errors.New("rudp: connection is shut down")
)

// Handler is the capability a Connection's owner must supply: the
// upstream recipient of reassembled messages and of the shutdown event.
// This replaces duck-typed callback objects with an explicit interface
// (Design Notes: "Duck-typed handler").
type Handler interface {
	ReceiveMessage(payload []byte)
	HandleShutdown()
}

// Dispatcher is the narrow outbound capability a Connection uses to
// deliver datagrams, breaking the Connection<->Multiplexer reference
// cycle described in Design Notes: the Connection only ever calls
// SendDatagram, never touches the Multiplexer directly.
type Dispatcher interface {
	SendDatagram(data []byte, addr packet.Endpoint) error
}

// finalizeOutboundFunc converts an about-to-be-sent packet into wire
// bytes. The default implementation just encodes it; CryptoConnection
// substitutes one that also encrypts the payload. This is the concrete
// form of Design Notes' on_finalize_outbound hook.
type finalizeOutboundFunc func(p *packet.Packet) ([]byte, error)

// receiveInboundFunc inspects/transforms a freshly decoded inbound packet
// before the state machine processes it. Returning ok=false drops the
// packet silently. This is on_receive_inbound.
type receiveInboundFunc func(p *packet.Packet) (out *packet.Packet, ok bool)

// sendWindowEntry is a transmitted-but-unacknowledged packet, tracked
// with its own retransmission timer.
type sendWindowEntry struct {
	seqNum  uint32
	bytes   []byte
	timer   clock.Timer
	retries int
}

// ConnectionStats holds counters for the activity a connection drives
// through the spec's send/receive path: not a congestion-control signal
// (the protocol has none - Section 1's Non-goals), but an observability
// surface a complete module exposes alongside the core counters.
type ConnectionStats struct {
	PacketsSent     uint64
	PacketsReceived uint64
	BytesSent       uint64
	BytesReceived   uint64
	Retransmits     uint64
	Duplicates      uint64
}

// Connection is the per-peer protocol engine: state machine, send queue,
// retransmission timers, ACK bookkeeping, fragmentation and reassembly.
type Connection struct {
	mu sync.Mutex

	clock      clock.Clock
	dispatcher Dispatcher
	handler    Handler
	logger     logging.Logger

	ownAddr   packet.Endpoint
	destAddr  packet.Endpoint
	relayAddr packet.Endpoint

	state State

	nextSequenceNumber uint32
	nextExpectedSeqnum uint32

	// synSeqnum is the sequence number of our outstanding SYN/SYN-ACK,
	// used to validate the peer's ack on the handshake reply.
	synSeqnum uint32

	sendWindow   map[uint32]*sendWindowEntry
	receiveHeap  *packet.ReorderHeap
	pendingQueue [][]byte

	bareACKTimer  clock.Timer
	bareACKArmed  bool
	hasPendingAck bool

	finalizeOutbound finalizeOutboundFunc
	receiveInbound   receiveInboundFunc

	stats ConnectionStats

	shutdownOnce sync.Once
}

// Config bundles the collaborators a Connection needs: its clock, its
// outbound dispatch capability, the upstream handler, and addressing.
type Config struct {
	Clock      clock.Clock
	Dispatcher Dispatcher
	Handler    Handler
	Logger     logging.Logger
	OwnAddr    packet.Endpoint
	DestAddr   packet.Endpoint
	// RelayAddr defaults to DestAddr when its IP is empty.
	RelayAddr packet.Endpoint
}

// NewConnection constructs a Connection in StateInitial and schedules the
// zero-delay transition to StateConnecting.
func NewConnection(cfg Config) *Connection {
	relay := cfg.RelayAddr
	if relay.IP == "" {
		relay = cfg.DestAddr
	}

	c := &Connection{
		clock:              cfg.Clock,
		dispatcher:         cfg.Dispatcher,
		handler:            cfg.Handler,
		logger:             cfg.Logger,
		ownAddr:            cfg.OwnAddr,
		destAddr:           cfg.DestAddr,
		relayAddr:          relay,
		state:              StateInitial,
		nextSequenceNumber: generateInitialSequenceNumber(),
		sendWindow:         make(map[uint32]*sendWindowEntry),
		receiveHeap:        packet.NewReorderHeap(),
	}
	c.finalizeOutbound = c.defaultFinalizeOutbound
	c.receiveInbound = c.defaultReceiveInbound

	c.clock.AfterFunc(0, c.enterConnecting)

	return c
}

// generateInitialSequenceNumber picks a random value in [1, 2^16).
func generateInitialSequenceNumber() uint32 {
	max := big.NewInt(packet.MaxSequenceNumber)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return 1
	}
	return uint32(n.Int64()) + 1
}

// State returns the connection's current state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OwnAddr returns the connection's local endpoint.
func (c *Connection) OwnAddr() packet.Endpoint { return c.ownAddr }

// DestAddr returns the connection's logical remote endpoint.
func (c *Connection) DestAddr() packet.Endpoint { return c.destAddr }

// RelayAddr returns the address outbound packets are physically sent to.
func (c *Connection) RelayAddr() packet.Endpoint { return c.relayAddr }

// Stats returns a snapshot of this connection's packet/byte counters.
func (c *Connection) Stats() ConnectionStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Connection) defaultFinalizeOutbound(p *packet.Packet) ([]byte, error) {
	return packet.Encode(p)
}

func (c *Connection) defaultReceiveInbound(p *packet.Packet) (*packet.Packet, bool) {
	return p, true
}

// enterConnecting performs the INITIAL -> CONNECTING transition: send a
// SYN and arm its retransmission timer.
func (c *Connection) enterConnecting() {
	c.mu.Lock()
	if c.state != StateInitial {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.synSeqnum = c.nextSequenceNumber
	c.nextSequenceNumber++
	c.mu.Unlock()

	c.sendSynLocked(0)
}

// sendSynLocked sends (or resends) the SYN for the current handshake
// attempt and arms the next retry, or gives up once MaxRetransmissions
// attempts have gone unanswered (Section 4.3): exactly MaxRetransmissions
// SYNs are sent before the FIN.
func (c *Connection) sendSynLocked(retry int) {
	c.mu.Lock()
	if c.state != StateConnecting {
		c.mu.Unlock()
		return
	}
	if retry >= MaxRetransmissions {
		c.mu.Unlock()
		c.abortHandshake()
		return
	}
	p := &packet.Packet{
		SequenceNumber: c.synSeqnum,
		DestAddr:       c.destAddr,
		SourceAddr:     c.ownAddr,
		Syn:            true,
	}
	c.mu.Unlock()

	c.sendRaw(p)

	c.clock.AfterFunc(PacketTimeout, func() {
		c.mu.Lock()
		stillConnecting := c.state == StateConnecting
		c.mu.Unlock()
		if stillConnecting {
			c.sendSynLocked(retry + 1)
		}
	})
}

// abortHandshake sends a FIN and transitions to SHUTDOWN after the
// handshake has exhausted its retransmission budget.
func (c *Connection) abortHandshake() {
	c.mu.Lock()
	if c.state == StateShutdown {
		c.mu.Unlock()
		return
	}
	destAddr, ownAddr := c.destAddr, c.ownAddr
	c.mu.Unlock()

	c.sendRaw(&packet.Packet{SequenceNumber: 0, DestAddr: destAddr, SourceAddr: ownAddr, Fin: true})
	c.enterShutdown()
}

// sendRaw finalizes and dispatches a single packet, logging failures.
func (c *Connection) sendRaw(p *packet.Packet) {
	data, err := c.finalizeOutbound(p)
	if err != nil {
		if c.logger != nil {
			c.logger.Debug("rudp: failed to finalize outbound packet: %v", err)
		}
		return
	}
	if err := c.dispatcher.SendDatagram(data, c.relayAddr); err != nil {
		if c.logger != nil {
			c.logger.Debug("rudp: failed to send datagram to %v: %v", c.relayAddr, err)
		}
		return
	}
	c.mu.Lock()
	c.stats.PacketsSent++
	c.stats.BytesSent += uint64(len(data))
	c.mu.Unlock()
}

// ReceivePacket processes one inbound, already-decoded packet. It is
// called by the Multiplexer once it has routed a datagram to this
// connection.
func (c *Connection) ReceivePacket(p *packet.Packet) {
	out, ok := c.receiveInbound(p)
	if !ok {
		return
	}
	p = out

	c.mu.Lock()
	c.stats.PacketsReceived++
	c.stats.BytesReceived += uint64(len(p.Payload))
	c.mu.Unlock()

	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	if state == StateShutdown {
		return
	}

	switch state {
	case StateInitial, StateConnecting:
		c.handleBeforeConnected(p)
	case StateHalfConnected:
		c.handleHalfConnected(p)
	case StateConnected:
		c.handleConnected(p)
	}
}

// handleBeforeConnected implements the receive-path rules for INITIAL
// and CONNECTING (Section 4.4 step 1, and Section 4.3's CONNECTING
// transitions).
func (c *Connection) handleBeforeConnected(p *packet.Packet) {
	if p.Fin {
		c.enterShutdown()
		return
	}

	if p.Syn {
		c.mu.Lock()
		ourSyn := c.synSeqnum
		isConnecting := c.state == StateConnecting
		c.mu.Unlock()

		if p.Ack > 0 {
			// SYN-ACK.
			if isConnecting && p.Ack == ourSyn+1 {
				c.mu.Lock()
				c.nextExpectedSeqnum = p.SequenceNumber + 1
				c.state = StateConnected
				c.mu.Unlock()
				c.drainPendingQueue()
			}
			// Any other ack value: stay in CONNECTING, ignore.
			return
		}

		// Bare SYN from the peer: we are half-connected now.
		c.mu.Lock()
		c.nextExpectedSeqnum = p.SequenceNumber + 1
		replySeq := c.nextSequenceNumber
		c.nextSequenceNumber++
		c.synSeqnum = replySeq
		c.state = StateHalfConnected
		c.mu.Unlock()

		c.sendSynAck(replySeq, 0)
		return
	}

	// Any other packet while not yet connected is ignored.
}

// sendSynAck sends a SYN-ACK and, unless the retry budget is exhausted,
// arms a retry on the same PacketTimeout regime as a plain SYN (Section
// 4.3's MAX_RETRANSMISSIONS rule, applied symmetrically to both sides of
// the handshake): exactly MaxRetransmissions SYN-ACKs are sent before the
// FIN.
func (c *Connection) sendSynAck(seqnum uint32, retry int) {
	c.mu.Lock()
	if c.state != StateHalfConnected {
		c.mu.Unlock()
		return
	}
	if retry >= MaxRetransmissions {
		c.mu.Unlock()
		c.abortHandshake()
		return
	}
	ack := c.nextExpectedSeqnum
	destAddr, ownAddr := c.destAddr, c.ownAddr
	c.mu.Unlock()

	c.sendRaw(&packet.Packet{
		SequenceNumber: seqnum,
		DestAddr:       destAddr,
		SourceAddr:     ownAddr,
		Syn:            true,
		Ack:            ack,
	})

	c.clock.AfterFunc(PacketTimeout, func() {
		c.mu.Lock()
		stillHalf := c.state == StateHalfConnected
		c.mu.Unlock()
		if stillHalf {
			c.sendSynAck(seqnum, retry+1)
		}
	})
}

// handleHalfConnected implements Section 4.3's HALF_CONNECTED rules.
func (c *Connection) handleHalfConnected(p *packet.Packet) {
	if p.Fin {
		c.enterShutdown()
		return
	}

	if p.Syn {
		// Peer's SYN retransmission: resend our cached SYN-ACK.
		c.mu.Lock()
		seq := c.synSeqnum
		c.mu.Unlock()
		c.sendSynAck(seq, 0)
		return
	}

	c.mu.Lock()
	ourSyn := c.synSeqnum
	c.mu.Unlock()

	if p.Ack == ourSyn+1 {
		c.mu.Lock()
		c.state = StateConnected
		c.mu.Unlock()
		c.drainPendingQueue()
		c.processDataPacket(p)
	}
}

// handleConnected implements the general receive path (Section 4.4).
func (c *Connection) handleConnected(p *packet.Packet) {
	if p.Fin {
		c.enterShutdown()
		return
	}
	c.processDataPacket(p)
}

// processDataPacket implements Section 4.4 steps 3-7 for a non-SYN,
// non-FIN packet while HALF_CONNECTED or CONNECTED.
func (c *Connection) processDataPacket(p *packet.Packet) {
	if p.Ack > 0 {
		c.ackSendWindow(p.Ack)
	}

	c.mu.Lock()
	next := c.nextExpectedSeqnum
	c.mu.Unlock()

	switch {
	case p.SequenceNumber < next:
		// Duplicate: drop payload, re-ACK.
		c.mu.Lock()
		c.stats.Duplicates++
		c.mu.Unlock()
		c.armBareACK()

	case p.SequenceNumber == next:
		c.deliverInOrder(p)

	default:
		c.mu.Lock()
		c.receiveHeap.Push(p)
		c.mu.Unlock()
		// This packet may complete a fragment group whose lead is already
		// parked at next_expected_seqnum.
		c.drainReceiveHeap()
		c.armBareACK()
	}
}

// deliverInOrder handles a packet that arrived exactly at
// next_expected_seqnum: either deliver it directly (no fragmentation) or
// assemble it via the reorder heap, then drain every subsequent
// fragment group that is now contiguous.
func (c *Connection) deliverInOrder(p *packet.Packet) {
	c.mu.Lock()

	if p.MoreFragments == 0 {
		c.nextExpectedSeqnum = p.SequenceNumber + 1
		payload := p.Payload
		c.mu.Unlock()
		c.handler.ReceiveMessage(payload)
	} else {
		c.receiveHeap.Push(p)
		group := c.receiveHeap.TryPopFragmentGroup(p.SequenceNumber)
		if group == nil {
			c.mu.Unlock()
			c.armBareACK()
			return
		}
		c.nextExpectedSeqnum = p.SequenceNumber + uint32(len(group))
		payload := concatPayloads(group)
		c.mu.Unlock()
		c.handler.ReceiveMessage(payload)
	}

	c.drainReceiveHeap()
	c.armBareACK()
}

// drainReceiveHeap repeatedly delivers fragment groups from the reorder
// heap as long as its minimum equals next_expected_seqnum.
func (c *Connection) drainReceiveHeap() {
	for {
		c.mu.Lock()
		next := c.nextExpectedSeqnum
		min := c.receiveHeap.Peek()
		if min == nil || min.SequenceNumber != next {
			c.mu.Unlock()
			return
		}
		group := c.receiveHeap.TryPopFragmentGroup(next)
		if group == nil {
			c.mu.Unlock()
			return
		}
		c.nextExpectedSeqnum = next + uint32(len(group))
		payload := concatPayloads(group)
		c.mu.Unlock()
		c.handler.ReceiveMessage(payload)
	}
}

func concatPayloads(group []*packet.Packet) []byte {
	total := 0
	for _, p := range group {
		total += len(p.Payload)
	}
	out := make([]byte, 0, total)
	for _, p := range group {
		out = append(out, p.Payload...)
	}
	return out
}

// ackSendWindow cancels timers for, and removes, every send-window entry
// whose sequence number is less than ack.
func (c *Connection) ackSendWindow(ack uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for seq, entry := range c.sendWindow {
		if seq < ack {
			if entry.timer != nil {
				entry.timer.Stop()
			}
			delete(c.sendWindow, seq)
		}
	}
}

// armBareACK arms the bare-ACK coalescing timer if no outbound data
// packet is already pending to carry the acknowledgement.
func (c *Connection) armBareACK() {
	c.mu.Lock()
	c.hasPendingAck = true
	if c.bareACKArmed {
		c.mu.Unlock()
		return
	}
	c.bareACKArmed = true
	c.mu.Unlock()

	c.bareACKTimer = c.clock.AfterFunc(BareACKTimeout, c.onBareACKFire)
}

// onBareACKFire sends a standalone ACK (sequence_number=0) if one is
// still pending; a data packet sent in the meantime piggybacks the ACK
// and disarms this via cancelBareACK.
func (c *Connection) onBareACKFire() {
	c.mu.Lock()
	c.bareACKArmed = false
	if !c.hasPendingAck {
		c.mu.Unlock()
		return
	}
	c.hasPendingAck = false
	ack := c.nextExpectedSeqnum
	destAddr, ownAddr := c.destAddr, c.ownAddr
	state := c.state
	c.mu.Unlock()

	if state == StateShutdown {
		return
	}

	c.sendRaw(&packet.Packet{SequenceNumber: 0, DestAddr: destAddr, SourceAddr: ownAddr, Ack: ack})
}

// cancelBareACK disarms the bare-ACK timer because an outbound data
// packet is about to piggyback the acknowledgement instead.
func (c *Connection) cancelBareACK() {
	c.mu.Lock()
	c.hasPendingAck = false
	if c.bareACKTimer != nil {
		c.bareACKTimer.Stop()
	}
	c.bareACKArmed = false
	c.mu.Unlock()
}

// SendMessage submits a message for transmission (Section 4.5). If the
// connection is not yet connected it is queued; if shut down it is
// silently dropped.
func (c *Connection) SendMessage(m []byte) {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	switch state {
	case StateShutdown:
		return
	case StateInitial, StateConnecting:
		c.mu.Lock()
		c.pendingQueue = append(c.pendingQueue, m)
		c.mu.Unlock()
	default:
		c.transmitMessage(m)
	}
}

func (c *Connection) drainPendingQueue() {
	c.mu.Lock()
	queued := c.pendingQueue
	c.pendingQueue = nil
	c.mu.Unlock()

	for _, m := range queued {
		c.transmitMessage(m)
	}
}

// transmitMessage implements Section 4.5's fragmentation and send-window
// bookkeeping for HALF_CONNECTED/CONNECTED connections.
func (c *Connection) transmitMessage(m []byte) {
	fragments := fragmentPayload(m, UDPSafeSegmentSize)
	k := len(fragments)

	c.mu.Lock()
	base := c.nextSequenceNumber
	c.nextSequenceNumber += uint32(k)
	destAddr, ownAddr, relayAddr, ack := c.destAddr, c.ownAddr, c.relayAddr, c.nextExpectedSeqnum
	c.mu.Unlock()

	c.cancelBareACK()

	for i, frag := range fragments {
		seq := base + uint32(i)
		p := &packet.Packet{
			SequenceNumber: seq,
			DestAddr:       destAddr,
			SourceAddr:     ownAddr,
			Payload:        frag,
			MoreFragments:  k - 1 - i,
			Ack:            ack,
		}

		data, err := c.finalizeOutbound(p)
		if err != nil {
			if c.logger != nil {
				c.logger.Debug("rudp: failed to finalize data packet: %v", err)
			}
			continue
		}

		entry := &sendWindowEntry{seqNum: seq, bytes: data}
		c.mu.Lock()
		c.sendWindow[seq] = entry
		c.mu.Unlock()

		if err := c.dispatcher.SendDatagram(data, relayAddr); err != nil {
			if c.logger != nil {
				c.logger.Debug("rudp: failed to send datagram to %v: %v", relayAddr, err)
			}
		} else {
			c.mu.Lock()
			c.stats.PacketsSent++
			c.stats.BytesSent += uint64(len(data))
			c.mu.Unlock()
		}

		entry.timer = c.clock.AfterFunc(PacketTimeout, func() { c.onRetransmitTimer(seq) })
	}
}

// onRetransmitTimer resends the oldest un-ACKed bytes for seq, or gives
// up and shuts the connection down once its retry budget is exhausted.
func (c *Connection) onRetransmitTimer(seq uint32) {
	c.mu.Lock()
	entry, ok := c.sendWindow[seq]
	if !ok {
		c.mu.Unlock()
		return
	}
	entry.retries++
	if entry.retries > MaxRetransmissions {
		destAddr, ownAddr := c.destAddr, c.ownAddr
		c.mu.Unlock()
		c.sendRaw(&packet.Packet{SequenceNumber: 0, DestAddr: destAddr, SourceAddr: ownAddr, Fin: true})
		c.enterShutdown()
		return
	}
	relayAddr := c.relayAddr
	bytes := entry.bytes
	c.mu.Unlock()

	if err := c.dispatcher.SendDatagram(bytes, relayAddr); err != nil {
		if c.logger != nil {
			c.logger.Debug("rudp: retransmit to %v failed: %v", relayAddr, err)
		}
	} else {
		c.mu.Lock()
		c.stats.Retransmits++
		c.stats.PacketsSent++
		c.stats.BytesSent += uint64(len(bytes))
		c.mu.Unlock()
	}

	entry.timer = c.clock.AfterFunc(PacketTimeout, func() { c.onRetransmitTimer(seq) })
}

func fragmentPayload(m []byte, size int) [][]byte {
	if len(m) == 0 {
		return [][]byte{{}}
	}
	var out [][]byte
	for i := 0; i < len(m); i += size {
		end := i + size
		if end > len(m) {
			end = len(m)
		}
		out = append(out, m[i:end])
	}
	return out
}

// Shutdown stops every send-window retransmission timer and the bare-ACK
// timer, notifies the handler exactly once, and moves the connection to
// the terminal state. Handshake timers (the initial transition and the
// SYN/SYN-ACK retries) are not stopped; when they fire after shutdown they
// see the terminal state and do nothing. Calling Shutdown more than once
// is a no-op.
func (c *Connection) Shutdown() {
	c.enterShutdown()
}

func (c *Connection) enterShutdown() {
	c.shutdownOnce.Do(func() {
		c.mu.Lock()
		c.state = StateShutdown
		for _, entry := range c.sendWindow {
			if entry.timer != nil {
				entry.timer.Stop()
			}
		}
		c.sendWindow = make(map[uint32]*sendWindowEntry)
		if c.bareACKTimer != nil {
			c.bareACKTimer.Stop()
		}
		c.mu.Unlock()

		c.handler.HandleShutdown()
	})
}
