package websocket

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/rs/zerolog"
)

// ConnectionState identifies where a [Connection] sits in the closing
// handshake, as defined in https://datatracker.ietf.org/doc/html/rfc6455#section-7.
type ConnectionState int

const (
	StateOpen ConnectionState = iota
	StateClosingLocal
	StateClosingRemote
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosingLocal:
		return "closing (local)"
	case StateClosingRemote:
		return "closing (remote)"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// readDeadliner is the narrow capability [Connection] uses to enforce
// Config.CloseHandshakeTimeout. net.Conn satisfies it; a plain
// io.ReadWriter (e.g. an in-memory duplex pipe used in tests) doesn't, in
// which case the timeout is simply not enforced.
type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// Connection drives the RFC 6455 frame and message protocol over an
// arbitrary bidirectional byte stream. It owns the fragment assembler and
// the closing-handshake state machine; it knows nothing about how the
// stream was obtained (TCP dial, TLS, an accepted listener connection, or
// an in-memory pipe in a test).
//
// A Connection is safe for one goroutine to call Recv from and a second,
// distinct goroutine to call Send/Close from, concurrently. It is not
// safe for multiple goroutines to call Recv concurrently with each other,
// nor Send/Close concurrently with each other beyond the serialization
// [sync.Mutex] already provides internally.
type Connection struct {
	id     string
	stream io.ReadWriter
	bw     io.Writer // stream, wrapped to enforce Config.WriteBufferHighWatermark.
	role   Role
	cfg    Config
	logger zerolog.Logger
	rng    io.Reader

	writeMu sync.Mutex
	state   ConnectionState

	peerClose *CloseFrame

	// Fragment assembler; touched only from the Recv goroutine.
	assembling   bool
	assembleType MessageType
	assembleBuf  bytes.Buffer
	assembleUTF8 Validator
}

// ConnOpt customizes a [Connection] built by [NewConnection].
type ConnOpt func(*Connection)

// WithLogger attaches a logger; the default is [zerolog.Nop].
func WithLogger(l zerolog.Logger) ConnOpt {
	return func(c *Connection) { c.logger = l }
}

// WithRand overrides the source of randomness used to generate each
// outgoing client frame's masking key. Tests that need deterministic
// wire output should supply one; production callers should leave this at
// its default of [crypto/rand.Reader].
func WithRand(r io.Reader) ConnOpt {
	return func(c *Connection) { c.rng = r }
}

// WithID overrides the connection's short identifier, otherwise
// generated automatically. It's attached to every log line the
// connection emits, for correlating a connection's messages across a
// server's aggregate log stream.
func WithID(id string) ConnOpt {
	return func(c *Connection) { c.id = id }
}

// NewConnection wraps stream as a WebSocket connection. The caller is
// responsible for completing the HTTP/1.1 handshake beforehand (see
// [HandshakeRequest] and [HandshakeResponse]); stream must already be
// positioned immediately after the handshake's blank-line terminator.
func NewConnection(stream io.ReadWriter, role Role, cfg Config, opts ...ConnOpt) *Connection {
	c := &Connection{
		id:     shortuuid.New(),
		stream: stream,
		role:   role,
		cfg:    cfg,
		logger: zerolog.Nop(),
		rng:    rand.Reader,
		state:  StateOpen,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.bw = &backpressureWriter{w: c.stream, highWater: c.cfg.WriteBufferHighWatermark}
	c.logger = c.logger.With().Str("conn_id", c.id).Str("role", c.role.String()).Logger()
	return c
}

// ID returns the connection's short, log-correlation identifier.
func (c *Connection) ID() string {
	return c.id
}

// State reports the connection's current position in the closing
// handshake.
func (c *Connection) State() ConnectionState {
	return c.state
}

// PeerClose returns the code and reason the peer sent in its Close
// frame, or nil if no Close has been received yet. If the peer's Close
// carried no status code at all, Code is [StatusNoStatusReceived].
func (c *Connection) PeerClose() *CloseFrame {
	return c.peerClose
}

// Recv reads and returns the next application-level [Message]. It
// returns (nil, nil) once the connection has cleanly finished closing,
// and a non-nil error exactly once, the first time a fatal condition is
// encountered; every call after that returns (nil, nil) forever. Ping
// and Pong control frames are folded into the returned Message stream
// according to Config.SurfacePings and Config.DeliverPongs; Close frames
// are handled internally and never surfaced as a Message (inspect
// [Connection.PeerClose] instead).
func (c *Connection) Recv() (*Message, error) {
	if c.state == StateClosed {
		return nil, nil
	}

	for {
		f, err := DecodeFrame(c.stream, c.cfg.MaxFrameSize)
		if err != nil {
			return c.handleReadError(err)
		}

		if err := c.checkMaskDirection(f); err != nil {
			return c.fail(err)
		}

		if f.Opcode.isControl() {
			msg, err := c.handleControl(f)
			if err != nil {
				return c.fail(err)
			}
			if c.state == StateClosed {
				return nil, nil
			}
			if msg != nil {
				return msg, nil
			}
			continue
		}

		msg, err := c.handleData(f)
		if err != nil {
			return c.fail(err)
		}
		if msg != nil {
			return msg, nil
		}
	}
}

// checkMaskDirection enforces
// https://datatracker.ietf.org/doc/html/rfc6455#section-5.3: a server
// must reject unmasked frames (unless relaxed for testing), a client
// must reject masked ones.
func (c *Connection) checkMaskDirection(f Frame) error {
	switch c.role {
	case RoleServer:
		if !f.Masked && !c.cfg.AcceptUnmaskedFrames {
			return newProtocolError(StatusProtocolError, ErrMaskViolation)
		}
	case RoleClient:
		if f.Masked {
			return newProtocolError(StatusProtocolError, ErrMaskViolation)
		}
	}
	return nil
}

func (c *Connection) handleControl(f Frame) (*Message, error) {
	switch f.Opcode {
	case OpcodePing:
		return c.handlePing(f)
	case OpcodePong:
		if c.cfg.DeliverPongs {
			return &Message{Type: MessagePong, Data: f.Payload}, nil
		}
		return nil, nil
	case OpcodeClose:
		return nil, c.handleClose(f)
	}
	return nil, nil
}

func (c *Connection) handlePing(f Frame) (*Message, error) {
	if c.cfg.AutoPong {
		if err := c.writeFrame(OpcodePong, f.Payload); err != nil {
			return nil, err
		}
	}
	if c.cfg.SurfacePings {
		return &Message{Type: MessagePing, Data: f.Payload}, nil
	}
	return nil, nil
}

// handleClose implements the Close branch of
// https://datatracker.ietf.org/doc/html/rfc6455#section-5.5.1 and the
// state transitions in the close state machine table.
func (c *Connection) handleClose(f Frame) error {
	status, reason, err := parseClosePayload(f.Payload)
	if err != nil {
		return err
	}
	c.peerClose = &CloseFrame{Code: status, Reason: reason}

	switch c.state {
	case StateOpen:
		c.logger.Debug().Stringer("peer_code", status).Msg("received close, echoing")
		c.state = StateClosingRemote
		echo := status
		if echo == StatusNoStatusReceived {
			echo = StatusNormalClosure
		}
		if werr := c.writeClose(echo, ""); werr != nil {
			c.state = StateClosed
			c.clearReadDeadline()
			return nil
		}
		c.drainUntilClosed()
		c.state = StateClosed
		c.clearReadDeadline()
		return nil
	default:
		c.logger.Debug().Stringer("peer_code", status).Msg("close handshake complete")
		c.state = StateClosed
		c.clearReadDeadline()
		return nil
	}
}

// drainUntilClosed discards frames until the stream errors (typically
// EOF, once the peer closes the socket after our echo) or
// Config.CloseHandshakeTimeout elapses.
func (c *Connection) drainUntilClosed() {
	c.armCloseDeadline()
	for {
		if _, err := DecodeFrame(c.stream, c.cfg.MaxFrameSize); err != nil {
			return
		}
	}
}

// handleData implements fragmentation reassembly and UTF-8 validation
// per https://datatracker.ietf.org/doc/html/rfc6455#section-5.4.
func (c *Connection) handleData(f Frame) (*Message, error) {
	switch f.Opcode {
	case OpcodeText, OpcodeBinary:
		if c.assembling {
			return nil, newProtocolError(StatusProtocolError, ErrProtocolViolation)
		}
		c.assembling = true
		c.assembleType = MessageBinary
		if f.Opcode == OpcodeText {
			c.assembleType = MessageText
		}
		c.assembleBuf.Reset()
		c.assembleUTF8.Reset()
	case OpcodeContinuation:
		if !c.assembling {
			return nil, newProtocolError(StatusProtocolError, ErrProtocolViolation)
		}
	default:
		return nil, newProtocolError(StatusUnsupportedData, ErrUnsupportedData)
	}

	if c.cfg.MaxMessageSize > 0 && int64(c.assembleBuf.Len())+int64(len(f.Payload)) > c.cfg.MaxMessageSize {
		c.assembling = false
		return nil, newProtocolError(StatusMessageTooBig, ErrMessageTooLarge)
	}
	c.assembleBuf.Write(f.Payload)

	if c.assembleType == MessageText {
		if _, err := c.assembleUTF8.Feed(f.Payload); err != nil {
			c.assembling = false
			return nil, newProtocolError(StatusInvalidPayload, ErrInvalidUTF8)
		}
	}

	if !f.Fin {
		return nil, nil
	}

	c.assembling = false
	defer c.assembleBuf.Reset()

	if c.assembleType == MessageText {
		if err := c.assembleUTF8.Finalize(); err != nil {
			return nil, newProtocolError(StatusInvalidPayload, ErrInvalidUTF8)
		}
		return &Message{Type: MessageText, Text: c.assembleBuf.String()}, nil
	}

	data := make([]byte, c.assembleBuf.Len())
	copy(data, c.assembleBuf.Bytes())
	return &Message{Type: MessageBinary, Data: data}, nil
}

// handleReadError translates a stream-level read failure into the
// "any / transport error / Closed / surface Err" row of the close state
// table, except while waiting out a close handshake we already
// initiated, where both EOF and a deadline expiry are the *expected*
// way the handshake ends (table rows "recv Close" / "close_handshake_timeout").
func (c *Connection) handleReadError(err error) (*Message, error) {
	if c.state == StateClosingLocal && (isTimeout(err) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)) {
		c.state = StateClosed
		c.clearReadDeadline()
		return nil, nil
	}

	var perr *ProtocolError
	if !errors.As(err, &perr) {
		err = newProtocolError(StatusAbnormalClosure, err)
	}
	return c.fail(err)
}

// fail transitions the connection to Closed, attempting a best-effort
// Close frame first when the failure is a protocol violation we
// diagnosed locally (code 1006, abnormal closure, must never be sent on
// the wire, so it's skipped).
func (c *Connection) fail(err error) (*Message, error) {
	var perr *ProtocolError
	if errors.As(err, &perr) && perr.Code != StatusAbnormalClosure &&
		(c.state == StateOpen || c.state == StateClosingRemote) {
		_ = c.writeClose(perr.Code, perr.Err.Error())
	}
	c.state = StateClosed
	c.clearReadDeadline()
	return nil, err
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (c *Connection) armCloseDeadline() {
	if c.cfg.CloseHandshakeTimeout <= 0 {
		return
	}
	if d, ok := c.stream.(readDeadliner); ok {
		_ = d.SetReadDeadline(time.Now().Add(c.cfg.CloseHandshakeTimeout))
	}
}

func (c *Connection) clearReadDeadline() {
	if d, ok := c.stream.(readDeadliner); ok {
		_ = d.SetReadDeadline(time.Time{})
	}
}

// Send serializes and writes one message, per
// https://datatracker.ietf.org/doc/html/rfc6455#section-5.4. This
// implementation doesn't split data messages into multiple frames; each
// Send of a Text or Binary message is a single FIN=1 frame. Once the
// closing handshake has begun, a redundant Close message is a no-op and
// any other message fails with [ErrAlreadyClosing].
func (c *Connection) Send(m Message) error {
	if c.state == StateClosed {
		return ErrClosed
	}
	if c.state != StateOpen {
		if m.Type == MessageClose {
			return nil
		}
		return ErrAlreadyClosing
	}

	switch m.Type {
	case MessageText:
		return c.writeFrame(OpcodeText, []byte(m.Text))
	case MessageBinary:
		return c.writeFrame(OpcodeBinary, m.Data)
	case MessagePing:
		return c.writeFrame(OpcodePing, m.Data)
	case MessagePong:
		return c.writeFrame(OpcodePong, m.Data)
	case MessageClose:
		code, reason := StatusNormalClosure, ""
		if m.Close != nil {
			code, reason = m.Close.Code, m.Close.Reason
		}
		return c.Close(code, reason)
	default:
		return fmt.Errorf("websocket: unknown message type %v", m.Type)
	}
}

// Close sends a Close frame and transitions Open to ClosingLocal. A
// second call returns [ErrAlreadyClosing] (if still closing) or
// [ErrClosed] (if the handshake already finished), making Close
// idempotent in effect.
func (c *Connection) Close(code StatusCode, reason string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	switch c.state {
	case StateClosed:
		return ErrClosed
	case StateOpen:
		if err := c.writeCloseLocked(code, reason); err != nil {
			c.state = StateClosed
			return err
		}
		c.logger.Debug().Stringer("code", code).Msg("sent close, awaiting echo")
		c.state = StateClosingLocal
		c.armCloseDeadline()
		return nil
	default:
		return ErrAlreadyClosing
	}
}

func (c *Connection) writeFrame(op Opcode, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writeFrameLocked(op, payload)
}

func (c *Connection) writeFrameLocked(op Opcode, payload []byte) error {
	f := Frame{Fin: true, Opcode: op, Payload: payload}
	if c.role == RoleClient {
		f.Masked = true
		if _, err := io.ReadFull(c.rng, f.MaskKey[:]); err != nil {
			return err
		}
	}
	return EncodeFrame(c.bw, f)
}

func (c *Connection) writeClose(code StatusCode, reason string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writeCloseLocked(code, reason)
}

func (c *Connection) writeCloseLocked(code StatusCode, reason string) error {
	var buf [maxControlPayload]byte
	payload := encodeClosePayload(buf[:], code, reason)
	return c.writeFrameLocked(OpcodeClose, payload)
}
