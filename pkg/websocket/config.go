package websocket

import "time"

// Role determines a [Connection]'s masking policy, as defined in
// https://datatracker.ietf.org/doc/html/rfc6455#section-5.3: clients mask
// every outgoing frame with a fresh key, servers never mask outgoing
// frames, and each side enforces the opposite rule on frames it receives.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

const (
	defaultServerMaxMessageSize = 64 << 20 // 64 MiB.
	defaultClientMaxMessageSize = 16 << 20 // 16 MiB.
	defaultMaxFrameSize         = 16 << 20 // 16 MiB.
	defaultCloseHandshakeWait   = 5 * time.Second
	defaultWriteHighWatermark   = 4 << 20 // 4 MiB.
)

// Config collects the tunable knobs of a [Connection], as specified in
// https://datatracker.ietf.org/doc/html/rfc6455. Zero-value Config is not
// meaningful on its own; build one with [ServerConfig] or
// [ClientConfig] and apply [ConfigOpt]s to override individual fields.
type Config struct {
	// MaxMessageSize bounds the total size of an assembled text/binary
	// message (across all of its fragments). Exceeding it fails the
	// connection with [StatusMessageTooBig].
	MaxMessageSize int64

	// MaxFrameSize bounds the payload length of any single incoming
	// frame, fragment or not. Exceeding it fails the connection with
	// [StatusMessageTooBig].
	MaxFrameSize int64

	// AutoPong, when true (the default), makes the connection
	// automatically queue a Pong in response to an incoming Ping, using
	// an identical payload, before any further messages are delivered to
	// the caller.
	AutoPong bool

	// SurfacePings, when true, additionally delivers incoming Pings to
	// the caller as a MessagePing, on top of (not instead of) the
	// automatic pong. Default false.
	SurfacePings bool

	// DeliverPongs, when true (the default), delivers incoming Pongs to
	// the caller as a MessagePong. When false, Pongs are dropped
	// silently; the connection keeps no record of them.
	DeliverPongs bool

	// AcceptUnmaskedFrames relaxes the server-side masking requirement,
	// for testing against peers that don't mask. Servers only; clients
	// always require an unmasked frame from the server. Default false.
	AcceptUnmaskedFrames bool

	// CloseHandshakeTimeout bounds how long a connection waits, after
	// sending or receiving a Close frame, for the closing handshake to
	// finish (the peer's echo, or the stream reaching EOF).
	CloseHandshakeTimeout time.Duration

	// WriteBufferHighWatermark is the number of bytes of outbound frame
	// data a single write will hand to the underlying stream before
	// waiting for it to accept that much and continuing with the rest.
	// A Send of a payload larger than this value is therefore suspended,
	// one watermark-sized chunk at a time, until the stream has drained
	// each chunk. Zero disables backpressure accounting.
	WriteBufferHighWatermark int64
}

// ServerConfig returns a [Config] with the defaults appropriate for a
// connection accepting inbound client connections.
func ServerConfig(opts ...ConfigOpt) Config {
	cfg := Config{
		MaxMessageSize:           defaultServerMaxMessageSize,
		MaxFrameSize:             defaultMaxFrameSize,
		AutoPong:                 true,
		DeliverPongs:             true,
		CloseHandshakeTimeout:    defaultCloseHandshakeWait,
		WriteBufferHighWatermark: defaultWriteHighWatermark,
	}
	return cfg.apply(opts)
}

// ClientConfig returns a [Config] with the defaults appropriate for a
// connection dialing out to a server.
func ClientConfig(opts ...ConfigOpt) Config {
	cfg := ServerConfig()
	cfg.MaxMessageSize = defaultClientMaxMessageSize
	return cfg.apply(opts)
}

// ConfigOpt overrides a single [Config] field; pass zero or more to
// [ServerConfig] or [ClientConfig].
type ConfigOpt func(*Config)

// WithMaxMessageSize overrides Config.MaxMessageSize.
func WithMaxMessageSize(n int64) ConfigOpt {
	return func(c *Config) { c.MaxMessageSize = n }
}

// WithMaxFrameSize overrides Config.MaxFrameSize.
func WithMaxFrameSize(n int64) ConfigOpt {
	return func(c *Config) { c.MaxFrameSize = n }
}

// WithAutoPong overrides Config.AutoPong.
func WithAutoPong(on bool) ConfigOpt {
	return func(c *Config) { c.AutoPong = on }
}

// WithSurfacePings overrides Config.SurfacePings.
func WithSurfacePings(on bool) ConfigOpt {
	return func(c *Config) { c.SurfacePings = on }
}

// WithDeliverPongs overrides Config.DeliverPongs.
func WithDeliverPongs(on bool) ConfigOpt {
	return func(c *Config) { c.DeliverPongs = on }
}

// WithAcceptUnmaskedFrames overrides Config.AcceptUnmaskedFrames.
func WithAcceptUnmaskedFrames(on bool) ConfigOpt {
	return func(c *Config) { c.AcceptUnmaskedFrames = on }
}

// WithCloseHandshakeTimeout overrides Config.CloseHandshakeTimeout.
func WithCloseHandshakeTimeout(d time.Duration) ConfigOpt {
	return func(c *Config) { c.CloseHandshakeTimeout = d }
}

// WithWriteBufferHighWatermark overrides Config.WriteBufferHighWatermark.
func WithWriteBufferHighWatermark(n int64) ConfigOpt {
	return func(c *Config) { c.WriteBufferHighWatermark = n }
}

func (c Config) apply(opts []ConfigOpt) Config {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
