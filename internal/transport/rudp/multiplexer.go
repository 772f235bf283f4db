package rudp

import (
	"strconv"
	"sync"

	"github.com/gorudp/rudp/internal/logging"
	"github.com/gorudp/rudp/internal/protocol/packet"
)

// ConnectionFactory produces a new Connection (and its Handler) for a
// peer address the Multiplexer hasn't seen before. Implementations are
// responsible for constructing a handler and wiring it to the returned
// connection (Section 6.3).
type ConnectionFactory interface {
	MakeNewConnection(m *Multiplexer, ownAddr, peerAddr, relayAddr packet.Endpoint) *Connection
}

// Multiplexer owns the single datagram socket (via Transport) and fans
// inbound datagrams out to per-peer Connections, creating them on demand.
// It optionally relays datagrams addressed elsewhere, for NAT traversal.
type Multiplexer struct {
	mu sync.RWMutex

	factory   ConnectionFactory
	transport Transport
	publicIP  string
	localPort int
	relaying  bool
	logger    logging.Logger

	connections map[string]*Connection
}

// NewMultiplexer constructs a Multiplexer bound to publicIP. relaying
// controls whether datagrams not addressed to publicIP are forwarded
// (true) or dropped (false, the default posture for a non-rendezvous
// node).
func NewMultiplexer(factory ConnectionFactory, transport Transport, publicIP string, localPort int, relaying bool, logger logging.Logger) *Multiplexer {
	return &Multiplexer{
		factory:     factory,
		transport:   transport,
		publicIP:    publicIP,
		localPort:   localPort,
		relaying:    relaying,
		logger:      logger,
		connections: make(map[string]*Connection),
	}
}

func addrKey(e packet.Endpoint) string {
	return e.IP + ":" + strconv.Itoa(e.Port)
}

// Len returns the number of live connections.
func (m *Multiplexer) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// Get returns the connection handling addr, or nil if none exists.
func (m *Multiplexer) Get(addr packet.Endpoint) *Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connections[addrKey(addr)]
}

// Contains reports whether a connection is registered for addr.
func (m *Multiplexer) Contains(addr packet.Endpoint) bool {
	return m.Get(addr) != nil
}

// Insert registers con as the handler for addr. If a previous connection
// was bound to that address, it is shut down before being replaced
// (Section 3: "Replacing an existing binding shuts down the displaced
// connection before installing the new one.").
func (m *Multiplexer) Insert(addr packet.Endpoint, con *Connection) {
	m.mu.Lock()
	prev := m.connections[addrKey(addr)]
	m.connections[addrKey(addr)] = con
	m.mu.Unlock()

	if prev != nil {
		prev.Shutdown()
	}
}

// Remove unregisters the connection bound to addr, if any.
func (m *Multiplexer) Remove(addr packet.Endpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.connections, addrKey(addr))
}

// Iter returns a snapshot slice of the currently registered connections.
func (m *Multiplexer) Iter() []*Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Connection, 0, len(m.connections))
	for _, c := range m.connections {
		out = append(out, c)
	}
	return out
}

// ReceiveDatagram handles one inbound datagram observed as coming from
// sourceAddr (which may differ from the packet's own source_addr if the
// datagram was relayed). Implements Section 4.6.
func (m *Multiplexer) ReceiveDatagram(data []byte, sourceAddr packet.Endpoint) {
	p, err := packet.Decode(data)
	if err != nil {
		if m.logger != nil {
			m.logger.Debug("rudp: dropping bad packet from %v: %v", sourceAddr, err)
		}
		return
	}

	if p.DestAddr.IP != m.publicIP {
		if m.relaying {
			if _, err := m.transport.WriteTo(data, p.DestAddr); err != nil && m.logger != nil {
				m.logger.Debug("rudp: relay write to %v failed: %v", p.DestAddr, err)
			}
		} else if m.logger != nil {
			m.logger.Debug("rudp: dropping misrouted packet for %v (relaying disabled)", p.DestAddr)
		}
		return
	}

	peer := p.SourceAddr
	con := m.Get(peer)
	if con == nil {
		relayAddr := sourceAddr
		if relayAddr == peer {
			relayAddr = packet.Endpoint{}
		}
		con = m.makeNewConnection(peer, relayAddr)
	}
	con.ReceivePacket(p)
}

func (m *Multiplexer) makeNewConnection(peerAddr, relayAddr packet.Endpoint) *Connection {
	ownAddr := packet.Endpoint{IP: m.publicIP, Port: m.localPort}
	con := m.factory.MakeNewConnection(m, ownAddr, peerAddr, relayAddr)
	m.Insert(peerAddr, con)
	return con
}

// SendDatagram writes a prepared datagram to addr. Connections call this
// indirectly through the Dispatcher capability, never touching the
// transport directly.
func (m *Multiplexer) SendDatagram(data []byte, addr packet.Endpoint) error {
	_, err := m.transport.WriteTo(data, addr)
	return err
}

// Shutdown shuts every active connection down (iterating a snapshot, so a
// connection tearing itself out of the map mid-iteration is safe) and
// then closes the transport.
func (m *Multiplexer) Shutdown() error {
	for _, con := range m.Iter() {
		con.Shutdown()
	}
	return m.transport.Close()
}
