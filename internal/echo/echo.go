// Package echo provides a reference Handler implementation for cmd/rudpd:
// it logs delivered messages and shutdown events rather than doing
// anything domain-specific. Section 1 of the specification places the
// upstream application ("Handler") out of the transport's scope; this is
// the minimal embedding the daemon binary needs in order to be a runnable
// program rather than a bare library.
package echo

import (
	"github.com/gorudp/rudp/internal/logging"
	"github.com/gorudp/rudp/internal/protocol/packet"
	"github.com/gorudp/rudp/internal/transport/rudp"
)

// Handler logs every reassembled message and the shutdown notification for
// a single connection. It implements rudp.Handler.
type Handler struct {
	logger   logging.Logger
	peerAddr packet.Endpoint
}

// New returns a Handler that logs against peerAddr's identity.
func New(logger logging.Logger, peerAddr packet.Endpoint) *Handler {
	return &Handler{logger: logger, peerAddr: peerAddr}
}

// ReceiveMessage implements rudp.Handler.
func (h *Handler) ReceiveMessage(payload []byte) {
	if h.logger != nil {
		h.logger.Info("rudp: %v: received %d byte message", h.peerAddr, len(payload))
	}
}

// HandleShutdown implements rudp.Handler.
func (h *Handler) HandleShutdown() {
	if h.logger != nil {
		h.logger.Info("rudp: %v: connection shut down", h.peerAddr)
	}
}

// Factory builds a Handler for each new connection the Multiplexer
// creates. It implements rudp.HandlerFactory.
type Factory struct {
	Logger logging.Logger
}

// MakeNewHandler implements rudp.HandlerFactory.
func (f *Factory) MakeNewHandler(ownAddr, peerAddr, relayAddr packet.Endpoint) rudp.Handler {
	return New(f.Logger, peerAddr)
}
