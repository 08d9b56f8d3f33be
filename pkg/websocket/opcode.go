package websocket

import "strconv"

// Opcode denotes the type of a WebSocket frame, as defined in
// https://datatracker.ietf.org/doc/html/rfc6455#section-5.2 and
// https://datatracker.ietf.org/doc/html/rfc6455#section-11.8.
type Opcode int

const (
	OpcodeContinuation Opcode = iota
	OpcodeText
	OpcodeBinary
	// 3-7 are reserved for further non-control frames.
	_
	_
	_
	_
	_
	OpcodeClose
	OpcodePing
	OpcodePong
	// 11-15 are reserved for further control frames.
)

// String returns the opcode's name, or its number if it's unrecognized.
func (o Opcode) String() string {
	switch o {
	case OpcodeContinuation:
		return "continuation"
	case OpcodeText:
		return "text"
	case OpcodeBinary:
		return "binary"
	case OpcodeClose:
		return "close"
	case OpcodePing:
		return "ping"
	case OpcodePong:
		return "pong"
	default:
		return strconv.Itoa(int(o))
	}
}

// isControl reports whether the opcode denotes a control frame
// (https://datatracker.ietf.org/doc/html/rfc6455#section-5.5), which
// must never be fragmented and is limited to 125 bytes of payload.
func (o Opcode) isControl() bool {
	return o >= OpcodeClose
}

// isKnown reports whether the opcode is one of the six values
// defined by RFC 6455. All others are reserved and MUST cause the
// receiving endpoint to fail the connection.
func (o Opcode) isKnown() bool {
	switch o {
	case OpcodeContinuation, OpcodeText, OpcodeBinary, OpcodeClose, OpcodePing, OpcodePong:
		return true
	default:
		return false
	}
}
