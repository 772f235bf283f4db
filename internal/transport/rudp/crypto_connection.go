package rudp

import (
	"crypto/rand"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"

	"github.com/gorudp/rudp/internal/clock"
	"github.com/gorudp/rudp/internal/logging"
	"github.com/gorudp/rudp/internal/protocol/packet"
)

// CryptoConnection decorates a Connection with an optional confidential
// channel: a long-lived Curve25519 keypair and, once the peer's SYN has
// been received, an authenticated-encryption box bound to
// (localPrivateKey, peerPublicKey). This is composition, not inheritance
// (Design Notes): the crypto behavior is installed as the Connection's
// finalizeOutbound/receiveInbound hooks rather than by subclassing.
type CryptoConnection struct {
	*Connection

	privateKey [32]byte
	publicKey  [32]byte

	peerPublicKey *[32]byte
	sharedKey     *[32]byte

	// fixedNonceBytes are random bytes generated once at connection
	// creation and reused for every packet; combined with a
	// sequence-derived half, this produces a nonce that differs for every
	// distinct sequence number within a session (packets sharing a
	// sequence number, such as retransmissions and the sequence-0 bare
	// ACKs and FINs, share a nonce) and is vanishingly unlikely to collide
	// across sessions under the same key. The nonce travels with the ciphertext
	// (prepended on seal, stripped before open) since the peer has no way
	// to reconstruct it from its own, independently generated
	// fixedNonceBytes.
	fixedNonceBytes [12]byte
}

// NewCryptoConnection constructs a CryptoConnection. If privateKey is
// nil, a fresh Curve25519 keypair is generated.
func NewCryptoConnection(cfg Config, privateKey *[32]byte) (*CryptoConnection, error) {
	cc := &CryptoConnection{}

	if privateKey != nil {
		cc.privateKey = *privateKey
	} else if _, err := rand.Read(cc.privateKey[:]); err != nil {
		return nil, err
	}
	curve25519.ScalarBaseMult(&cc.publicKey, &cc.privateKey)

	if _, err := rand.Read(cc.fixedNonceBytes[:]); err != nil {
		return nil, err
	}

	cc.Connection = NewConnection(cfg)
	cc.Connection.finalizeOutbound = cc.finalizeOutbound
	cc.Connection.receiveInbound = cc.receiveInbound

	return cc, nil
}

// PublicKey returns this connection's long-lived public key.
func (cc *CryptoConnection) PublicKey() [32]byte { return cc.publicKey }

// RemotePublicKey returns the peer's public key, once learned from its
// SYN, or nil before then.
func (cc *CryptoConnection) RemotePublicKey() *[32]byte { return cc.peerPublicKey }

// nonceSize is nacl/box's required nonce length.
const nonceSize = 24

// nonce builds a 24-byte nacl/box nonce from the packet's sequence number
// and the cached random bytes: the first 12 bytes encode seq
// deterministically (zero-padded), the remaining 12 are fixed for the
// connection's lifetime, per Section 4.7.
func (cc *CryptoConnection) nonce(seq uint32) [nonceSize]byte {
	var n [nonceSize]byte
	n[8] = byte(seq >> 24)
	n[9] = byte(seq >> 16)
	n[10] = byte(seq >> 8)
	n[11] = byte(seq)
	copy(n[12:], cc.fixedNonceBytes[:])
	return n
}

// finalizeOutbound is the CryptoConnection's on_finalize_outbound hook:
// SYN packets carry the raw public key as payload; every other packet
// has its payload replaced with the nonce prepended to its ciphertext,
// once the shared key exists. The nonce must travel with the message:
// the receiver has its own, independently generated fixedNonceBytes and
// cannot reconstruct the sender's nonce from local state alone.
func (cc *CryptoConnection) finalizeOutbound(p *packet.Packet) ([]byte, error) {
	if p.Syn {
		key := cc.publicKey
		p.Payload = key[:]
	} else if cc.sharedKey != nil {
		nonce := cc.nonce(p.SequenceNumber)
		sealed := box.SealAfterPrecomputation(nil, p.Payload, &nonce, cc.sharedKey)
		p.Payload = append(nonce[:], sealed...)
	}
	return packet.Encode(p)
}

// receiveInbound is the on_receive_inbound hook: it establishes the
// shared box from an inbound SYN's payload, and decrypts the payload of
// every other inbound packet once that box exists, reading the nonce
// back off the front of the ciphertext. Any crypto failure (malformed
// key, undersized payload, failed authentication) drops the packet
// silently and leaves connection state untouched, per Section 4.7.
func (cc *CryptoConnection) receiveInbound(p *packet.Packet) (*packet.Packet, bool) {
	if p.Syn {
		if cc.sharedKey != nil {
			return p, true
		}
		if len(p.Payload) != 32 {
			return nil, false
		}
		var peerKey [32]byte
		copy(peerKey[:], p.Payload)

		var shared [32]byte
		box.Precompute(&shared, &peerKey, &cc.privateKey)

		cc.peerPublicKey = &peerKey
		cc.sharedKey = &shared
		return p, true
	}

	if cc.sharedKey == nil {
		return nil, false
	}

	if len(p.Payload) < nonceSize {
		return nil, false
	}
	var nonce [nonceSize]byte
	copy(nonce[:], p.Payload[:nonceSize])

	plain, ok := box.OpenAfterPrecomputation(nil, p.Payload[nonceSize:], &nonce, cc.sharedKey)
	if !ok {
		return nil, false
	}
	p.Payload = plain
	return p, true
}

// HandlerFactory produces a Handler for a newly created connection. A
// ConnectionFactory typically holds one of these and wires the resulting
// Handler to the Connection it builds (Section 6.3).
type HandlerFactory interface {
	MakeNewHandler(ownAddr, peerAddr, relayAddr packet.Endpoint) Handler
}

// CryptoConnectionFactory is a ConnectionFactory producing
// CryptoConnections, each with its own freshly generated keypair.
type CryptoConnectionFactory struct {
	HandlerFactory HandlerFactory
	Clock          clock.Clock
	Logger         logging.Logger
}

// MakeNewConnection implements ConnectionFactory.
func (f *CryptoConnectionFactory) MakeNewConnection(m *Multiplexer, ownAddr, peerAddr, relayAddr packet.Endpoint) *Connection {
	handler := f.HandlerFactory.MakeNewHandler(ownAddr, peerAddr, relayAddr)
	cc, err := NewCryptoConnection(Config{
		Clock:      f.Clock,
		Dispatcher: m,
		Handler:    handler,
		Logger:     f.Logger,
		OwnAddr:    ownAddr,
		DestAddr:   peerAddr,
		RelayAddr:  relayAddr,
	}, nil)
	if err != nil {
		// Key generation failure (exhausted entropy source) leaves no
		// sensible connection to return; a plain, unencrypted Connection
		// is used instead so the handshake can still proceed and the
		// failure is visible in logs rather than a nil dereference.
		if f.Logger != nil {
			f.Logger.Error("rudp: failed to create crypto connection: %v", err)
		}
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
	return cc.Connection
}
