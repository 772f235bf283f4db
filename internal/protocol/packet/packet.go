// Package packet implements the RUDP wire record: canonical JSON
// serialization, schema validation, and total ordering by sequence number.
package packet

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Errors returned by Decode. They are distinguishable so callers can tell
// a transport-level parse failure from a protocol-level schema violation.
var (
	// ErrMalformedFormat is returned when the datagram is not valid JSON.
	ErrMalformedFormat = errors.New("packet: malformed JSON")
	// ErrInvalidStructure is returned when the JSON is well-formed but does
	// not satisfy the packet schema (Section 6.1).
	ErrInvalidStructure = errors.New("packet: invalid structure")
)

// MaxSequenceNumber is the largest sequence number representable on the
// wire: sequence numbers occupy the 16-bit range [0, 2^16).
const MaxSequenceNumber = 1<<16 - 1

// rudpPacketSchema is the JSON Schema against which every decoded packet
// is validated before it is handed to a Connection. It mirrors the fixed
// key set of Section 6.1: no additional properties are permitted, and IP
// strings are restricted to IPv4 dotted-quad or uncompressed IPv6
// colon-hex (compressed "::" notation is out of scope).
const rudpPacketSchema = `{
	"type": "object",
	"required": [
		"sequence_number", "dest_ip", "dest_port",
		"source_ip", "source_port", "payload",
		"more_fragments", "ack", "fin", "syn"
	],
	"additionalProperties": false,
	"properties": {
		"sequence_number": {"type": "integer", "minimum": 0, "maximum": 65535},
		"dest_ip": {"type": "string", "pattern": "^(([0-9]{1,3}\\.){3}[0-9]{1,3}|([0-9a-fA-F]{1,4}:){7}[0-9a-fA-F]{1,4})$"},
		"dest_port": {"type": "integer", "minimum": 1, "maximum": 65535},
		"source_ip": {"type": "string", "pattern": "^(([0-9]{1,3}\\.){3}[0-9]{1,3}|([0-9a-fA-F]{1,4}:){7}[0-9a-fA-F]{1,4})$"},
		"source_port": {"type": "integer", "minimum": 1, "maximum": 65535},
		"payload": {"type": "string"},
		"more_fragments": {"type": "integer", "minimum": 0},
		"ack": {"type": "integer", "minimum": 0},
		"fin": {"type": "boolean"},
		"syn": {"type": "boolean"}
	}
}`

var schemaLoader = gojsonschema.NewStringLoader(rudpPacketSchema)

// Endpoint is a remote or local address: an IP string paired with a port.
type Endpoint struct {
	IP   string
	Port int
}

// Packet is the decoded form of a single RUDP wire record.
type Packet struct {
	SequenceNumber uint32
	DestAddr       Endpoint
	SourceAddr     Endpoint
	Payload        []byte
	MoreFragments  int
	Ack            uint32
	Fin            bool
	Syn            bool
}

// wireForm is the canonical on-the-wire JSON shape. Field order here
// fixes the serialization order for Encode; Payload is a byte slice so
// encoding/json base64-encodes it automatically, matching the schema's
// "payload is an opaque string" contract.
type wireForm struct {
	SequenceNumber uint32 `json:"sequence_number"`
	DestIP         string `json:"dest_ip"`
	DestPort       int    `json:"dest_port"`
	SourceIP       string `json:"source_ip"`
	SourcePort     int    `json:"source_port"`
	Payload        []byte `json:"payload"`
	MoreFragments  int    `json:"more_fragments"`
	Ack            uint32 `json:"ack"`
	Fin            bool   `json:"fin"`
	Syn            bool   `json:"syn"`
}

func (p *Packet) toWire() wireForm {
	return wireForm{
		SequenceNumber: p.SequenceNumber,
		DestIP:         p.DestAddr.IP,
		DestPort:       p.DestAddr.Port,
		SourceIP:       p.SourceAddr.IP,
		SourcePort:     p.SourceAddr.Port,
		Payload:        p.Payload,
		MoreFragments:  p.MoreFragments,
		Ack:            p.Ack,
		Fin:            p.Fin,
		Syn:            p.Syn,
	}
}

func fromWire(w wireForm) *Packet {
	return &Packet{
		SequenceNumber: w.SequenceNumber,
		DestAddr:       Endpoint{IP: w.DestIP, Port: w.DestPort},
		SourceAddr:     Endpoint{IP: w.SourceIP, Port: w.SourcePort},
		Payload:        w.Payload,
		MoreFragments:  w.MoreFragments,
		Ack:            w.Ack,
		Fin:            w.Fin,
		Syn:            w.Syn,
	}
}

// Encode serializes a Packet into its canonical JSON wire form.
func Encode(p *Packet) ([]byte, error) {
	return json.Marshal(p.toWire())
}

// Decode parses and validates a datagram, returning the resulting Packet.
// A JSON syntax error yields ErrMalformedFormat; a well-formed object that
// violates the schema yields ErrInvalidStructure. Both are wrapped so
// errors.Is still matches.
func Decode(data []byte) (*Packet, error) {
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFormat, err)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(generic))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFormat, err)
	}
	if !result.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStructure, result.Errors())
	}

	var w wireForm
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}

	return fromWire(w), nil
}

// Compare orders two packets by sequence number only, per Section 3.
func Compare(a, b *Packet) int {
	switch {
	case a.SequenceNumber < b.SequenceNumber:
		return -1
	case a.SequenceNumber > b.SequenceNumber:
		return 1
	default:
		return 0
	}
}
