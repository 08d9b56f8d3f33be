package websocket

import (
	"errors"
	"io"

	"github.com/rs/zerolog"
)

// acceptOpt accumulates the options [Accept] was called with.
type acceptOpt struct {
	connOpts []ConnOpt
	respOpts []ResponseOpt
	logger   zerolog.Logger
}

// AcceptOpt overrides one field of [Accept]'s option accumulator.
type AcceptOpt func(*acceptOpt)

// WithAcceptConnOpt threads a [ConnOpt] through to the resulting [Connection].
func WithAcceptConnOpt(opt ConnOpt) AcceptOpt {
	return func(a *acceptOpt) { a.connOpts = append(a.connOpts, opt) }
}

// WithAcceptSubprotocol echoes the given Sec-WebSocket-Protocol value in
// the 101 response.
func WithAcceptSubprotocol(proto string) AcceptOpt {
	return func(a *acceptOpt) { a.respOpts = append(a.respOpts, WithSubprotocol(proto)) }
}

// WithAcceptLogger attaches a logger to the resulting [Connection].
func WithAcceptLogger(l zerolog.Logger) AcceptOpt {
	return func(a *acceptOpt) { a.logger = l }
}

// Accept reads one HTTP/1.1 upgrade request off stream, validates it,
// writes the matching 101 response, and returns a server-role
// [Connection] positioned right after the handshake. On failure it
// returns the error and the caller owns closing stream; only an
// [ErrWrongWSVersion] failure writes a response (a 426, see
// [NewUpgradeRequiredResponse]), every other failure writes nothing.
//
// stream is read byte-by-byte up to and including the handshake's blank
// line terminator, exactly as [Dial] does on the client side, so that no
// bytes belonging to the first WebSocket frame are consumed along with
// it.
func Accept(stream io.ReadWriter, cfg Config, opts ...AcceptOpt) (*Connection, error) {
	a := acceptOpt{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&a)
	}

	raw, err := readHeaderBlock(stream)
	if err != nil {
		return nil, err
	}

	req, err := ParseHandshakeRequest(raw)
	if err != nil {
		return nil, err
	}

	if err := req.Validate(); err != nil {
		if errors.Is(err, ErrWrongWSVersion) {
			_, _ = NewUpgradeRequiredResponse().WriteTo(stream)
		}
		return nil, err
	}

	a.logger.Debug().Str("target", req.Target).Msg("accepted WebSocket handshake")

	resp := NewHandshakeResponse(req, a.respOpts...)
	if _, err := resp.WriteTo(stream); err != nil {
		return nil, err
	}

	connOpts := append([]ConnOpt{WithLogger(a.logger)}, a.connOpts...)
	return NewConnection(stream, RoleServer, cfg, connOpts...), nil
}
