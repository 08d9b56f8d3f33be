// Package websocket is a from-scratch implementation of the WebSocket
// protocol (RFC 6455): frame codec, streaming UTF-8 validation, the
// opening handshake on both the client and server side, and the
// [Connection] state machine that turns a raw byte stream into a
// sequence of [Message] values.
//
// It is designed primarily for correctness against the RFC and
// availability at scale, in that order. Additional design goals:
// minimal allocation on the hot read/write path, and a narrow
// dependency on the transport (any [io.ReadWriter] will do; [Dial] and
// [Accept] are the net.Conn-based convenience layer on top).
//
// Usage is synchronous and pull-based: call [Connection.Recv] in a loop
// from one goroutine, and [Connection.Send] from that same goroutine or
// a second one. There's no background goroutine, no fan-out channel, and
// no implicit reconnection; callers that need those build them on top,
// the way [Dial] builds a handshake on top of [NewConnection].
//
// Note: WebSocket [extensions] (e.g. permessage-deflate) and
// [subprotocol] negotiation beyond echoing a single caller-selected token
// are not supported.
//
// [extensions]: https://www.iana.org/assignments/websocket/websocket.xhtml#extension-name
// [subprotocol]: https://www.iana.org/assignments/websocket/websocket.xhtml#subprotocol-name
package websocket
