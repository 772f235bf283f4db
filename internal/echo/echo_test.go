package echo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gorudp/rudp/internal/logging"
	"github.com/gorudp/rudp/internal/protocol/packet"
)

func TestFactoryProducesHandlerBoundToPeer(t *testing.T) {
	f := &Factory{Logger: logging.Default()}
	peer := packet.Endpoint{IP: "10.0.0.2", Port: 9001}

	h := f.MakeNewHandler(packet.Endpoint{}, peer, packet.Endpoint{})
	assert.NotNil(t, h)

	// Both methods must be callable without panicking even though the
	// handler has no stateful behavior beyond logging.
	h.ReceiveMessage([]byte("hello"))
	h.HandleShutdown()
}

func TestHandlerToleratesNilLogger(t *testing.T) {
	h := New(nil, packet.Endpoint{IP: "10.0.0.2", Port: 9001})
	h.ReceiveMessage([]byte("hello"))
	h.HandleShutdown()
}
