package websocket

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/url"

	"github.com/rs/zerolog"
)

// dialOpt accumulates the options [Dial] was called with.
type dialOpt struct {
	connOpts []ConnOpt
	reqOpts  []RequestOpt
	tlsConf  *tls.Config
	dialer   net.Dialer
	logger   zerolog.Logger
	rng      io.Reader
}

// DialOpt overrides one field of [Dial]'s option accumulator.
type DialOpt func(*dialOpt)

// WithConnOpt threads a [ConnOpt] through to the resulting [Connection].
func WithConnOpt(opt ConnOpt) DialOpt {
	return func(d *dialOpt) { d.connOpts = append(d.connOpts, opt) }
}

// WithHandshakeHeader adds an extra header to the outgoing handshake
// request (e.g. a subprotocol offer, a cookie, or an auth token).
func WithHandshakeHeader(key, value string) DialOpt {
	return func(d *dialOpt) { d.reqOpts = append(d.reqOpts, WithRequestHeader(key, value)) }
}

// WithTLSConfig overrides the default TLS configuration used for "wss" URLs.
func WithTLSConfig(cfg *tls.Config) DialOpt {
	return func(d *dialOpt) { d.tlsConf = cfg }
}

// WithDialLogger attaches a logger to both the dial process and the
// resulting [Connection].
func WithDialLogger(l zerolog.Logger) DialOpt {
	return func(d *dialOpt) { d.logger = l }
}

// withNonceSource overrides the random source used for the
// Sec-WebSocket-Key nonce. Unexported: it exists for this package's own
// deterministic tests, not for production callers.
func withNonceSource(r io.Reader) DialOpt {
	return func(d *dialOpt) { d.rng = r }
}

// Dial opens a TCP (or TLS, for "wss") connection to urlStr, performs the
// client-side opening handshake defined in
// https://datatracker.ietf.org/doc/html/rfc6455#section-4.1, and returns
// a [Connection] ready for [Connection.Send] and [Connection.Recv].
func Dial(ctx context.Context, urlStr string, opts ...DialOpt) (*Connection, error) {
	d := dialOpt{logger: zerolog.Nop(), rng: rand.Reader}
	for _, opt := range opts {
		opt(&d)
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid WebSocket URL: %w", err)
	}

	network, addr, useTLS, err := dialTarget(u)
	if err != nil {
		return nil, err
	}

	d.logger.Debug().Str("addr", addr).Bool("tls", useTLS).Msg("dialing WebSocket server")

	rawConn, err := d.dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	conn := net.Conn(rawConn)
	if useTLS {
		tlsConf := d.tlsConf
		if tlsConf == nil {
			tlsConf = &tls.Config{ServerName: u.Hostname()}
		}
		tlsConn := tls.Client(rawConn, tlsConf)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = rawConn.Close()
			return nil, fmt.Errorf("TLS handshake failed: %w", err)
		}
		conn = tlsConn
	}

	connection, err := clientHandshake(conn, u, d)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return connection, nil
}

func dialTarget(u *url.URL) (network, addr string, useTLS bool, err error) {
	switch u.Scheme {
	case "ws":
		useTLS = false
	case "wss":
		useTLS = true
	default:
		return "", "", false, fmt.Errorf("unsupported WebSocket scheme %q", u.Scheme)
	}

	host := u.Hostname()
	port := u.Port()
	if port == "" {
		if useTLS {
			port = "443"
		} else {
			port = "80"
		}
	}

	return "tcp", net.JoinHostPort(host, port), useTLS, nil
}

func clientHandshake(conn net.Conn, u *url.URL, d dialOpt) (*Connection, error) {
	target := u.RequestURI()
	if target == "" {
		target = "/"
	}

	req, nonce, err := NewHandshakeRequest(d.rng, u.Host, target, d.reqOpts...)
	if err != nil {
		return nil, err
	}

	if _, err := req.WriteTo(conn); err != nil {
		return nil, fmt.Errorf("failed to write handshake request: %w", err)
	}

	raw, err := readHeaderBlock(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to read handshake response: %w", err)
	}

	resp, err := ParseHandshakeResponse(raw)
	if err != nil {
		return nil, err
	}
	if err := ValidateHandshakeResponse(resp, nonce); err != nil {
		return nil, err
	}

	opts := append([]ConnOpt{WithLogger(d.logger)}, d.connOpts...)
	return NewConnection(conn, RoleClient, ClientConfig(), opts...), nil
}

// readHeaderBlock reads bytes from r one at a time until the "\r\n\r\n"
// handshake terminator, as defined in
// https://datatracker.ietf.org/doc/html/rfc6455#section-4.1. It's
// deliberately unbuffered: handshakes happen once per connection, and
// reading byte-by-byte guarantees no bytes of the frame stream that
// immediately follows are consumed along with it.
func readHeaderBlock(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	var b [1]byte
	for {
		if _, err := r.Read(b[:]); err != nil {
			return nil, err
		}
		buf.WriteByte(b[0])
		if buf.Len() >= 4 && bytes.HasSuffix(buf.Bytes(), []byte("\r\n\r\n")) {
			return buf.Bytes(), nil
		}
	}
}
