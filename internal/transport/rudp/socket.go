package rudp

import (
	"context"
	"net"
	"time"

	"github.com/gorudp/rudp/internal/logging"
	"github.com/gorudp/rudp/internal/protocol/packet"
)

// Transport is the narrow capability the Multiplexer uses to write
// datagrams; Socket I/O itself is deliberately out of the core's scope
// (Section 1) and lives behind this interface.
type Transport interface {
	WriteTo(b []byte, addr packet.Endpoint) (int, error)
	Close() error
}

// WriteTo above returns (int, error) in the style of net.PacketConn's
// WriteTo; Multiplexer.ReceiveDatagram/SendDatagram only care about the
// error and discard the count.

// UDPSocket is a Transport backed by a real net.UDPConn. It additionally
// runs a read loop (Serve) that feeds parsed datagrams to a Multiplexer,
// relocated here from the per-Connection receiveLoop shape a
// single-connection client would use, to the per-Multiplexer shape a
// socket shared by many connections requires.
type UDPSocket struct {
	conn   *net.UDPConn
	logger logging.Logger
}

// ListenUDPSocket binds a UDP socket at addr (host:port, host may be
// empty to bind all interfaces).
func ListenUDPSocket(addr *net.UDPAddr, logger logging.Logger) (*UDPSocket, error) {
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	return &UDPSocket{conn: conn, logger: logger}, nil
}

// LocalAddr returns the socket's bound local address.
func (s *UDPSocket) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// WriteTo sends b to addr.
func (s *UDPSocket) WriteTo(b []byte, addr packet.Endpoint) (int, error) {
	udpAddr := &net.UDPAddr{IP: net.ParseIP(addr.IP), Port: addr.Port}
	return s.conn.WriteToUDP(b, udpAddr)
}

// Close closes the underlying socket.
func (s *UDPSocket) Close() error {
	return s.conn.Close()
}

// Serve reads datagrams until ctx is cancelled or the socket errors,
// handing each one to mux.ReceiveDatagram. It polls with a short read
// deadline so ctx cancellation is observed promptly, the same technique
// the teacher's per-connection receive loop used.
func (s *UDPSocket) Serve(ctx context.Context, mux *Multiplexer) error {
	buf := make([]byte, 65536)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		s.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			return err
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		mux.ReceiveDatagram(data, packet.Endpoint{IP: from.IP.String(), Port: from.Port})
	}
}
