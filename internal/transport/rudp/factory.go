package rudp

import (
	"github.com/gorudp/rudp/internal/clock"
	"github.com/gorudp/rudp/internal/logging"
	"github.com/gorudp/rudp/internal/protocol/packet"
)

// SimpleConnectionFactory is the plain (non-crypto) ConnectionFactory: it
// builds an ordinary Connection and wires it to a handler obtained from
// HandlerFactory.
type SimpleConnectionFactory struct {
	HandlerFactory HandlerFactory
	Clock          clock.Clock
	Logger         logging.Logger
}

// MakeNewConnection implements ConnectionFactory.
func (f *SimpleConnectionFactory) MakeNewConnection(m *Multiplexer, ownAddr, peerAddr, relayAddr packet.Endpoint) *Connection {
	handler := f.HandlerFactory.MakeNewHandler(ownAddr, peerAddr, relayAddr)
	return NewConnection(Config{
		Clock:      f.Clock,
		Dispatcher: m,
		Handler:    handler,
		Logger:     f.Logger,
		OwnAddr:    ownAddr,
		DestAddr:   peerAddr,
		RelayAddr:  relayAddr,
	})
}
