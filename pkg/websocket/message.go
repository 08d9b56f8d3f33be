package websocket

// MessageType identifies which variant of [Message] is populated. It
// mirrors [Opcode], minus Continuation (which never reaches the caller:
// continuation frames are reassembled into the message of the type that
// started the fragmentation sequence).
type MessageType int

const (
	MessageText MessageType = iota
	MessageBinary
	MessagePing
	MessagePong
	MessageClose
)

func (t MessageType) String() string {
	switch t {
	case MessageText:
		return "text"
	case MessageBinary:
		return "binary"
	case MessagePing:
		return "ping"
	case MessagePong:
		return "pong"
	case MessageClose:
		return "close"
	default:
		return "unknown"
	}
}

// Message is one defragmented application-level unit delivered by
// [Connection.Recv] or accepted by [Connection.Send], as defined in
// https://datatracker.ietf.org/doc/html/rfc6455#section-5.6.
//
// Only the field(s) relevant to Type are meaningful:
//   - MessageText populates Text (guaranteed valid UTF-8).
//   - MessageBinary, MessagePing, MessagePong populate Data.
//   - MessageClose populates Close. Recv never returns a MessageClose
//     (see [Connection.PeerClose]); Send treats a nil Close as
//     [StatusNormalClosure] with no reason.
type Message struct {
	Type  MessageType
	Text  string
	Data  []byte
	Close *CloseFrame
}

// CloseFrame is the parsed payload of a Close control frame.
type CloseFrame struct {
	Code   StatusCode
	Reason string
}

// TextMessage is a convenience constructor for an outbound text message.
func TextMessage(s string) Message {
	return Message{Type: MessageText, Text: s}
}

// BinaryMessage is a convenience constructor for an outbound binary message.
func BinaryMessage(b []byte) Message {
	return Message{Type: MessageBinary, Data: b}
}

// PingMessage is a convenience constructor for an outbound ping message.
func PingMessage(b []byte) Message {
	return Message{Type: MessagePing, Data: b}
}

// PongMessage is a convenience constructor for an outbound pong message.
func PongMessage(b []byte) Message {
	return Message{Type: MessagePong, Data: b}
}

// CloseMessage is a convenience constructor for an outbound close message.
func CloseMessage(code StatusCode, reason string) Message {
	return Message{Type: MessageClose, Close: &CloseFrame{Code: code, Reason: reason}}
}
