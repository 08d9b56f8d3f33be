package websocket

import (
	"encoding/binary"
	"strconv"
)

// StatusCode indicates a reason for the closure of an established
// WebSocket connection, as defined in
// https://datatracker.ietf.org/doc/html/rfc6455#section-7.4.
//
// See also https://www.iana.org/assignments/websocket/websocket.xhtml#close-code-number.
//
// Other status code ranges:
//   - 0-999: not used
//   - 3000-3999: reserved for use by libraries, frameworks, and applications
//   - 4000-4999: reserved for private use and thus can't be registered
type StatusCode uint16

const (
	// The purpose for which the connection was established has been fulfilled.
	StatusNormalClosure StatusCode = iota + 1000
	// An endpoint is "going away", such as a server going
	// down or a browser having navigated away from a page.
	StatusGoingAway
	// An endpoint is terminating the connection due to a protocol error.
	StatusProtocolError
	// An endpoint is terminating the connection because it has received a
	// type of data it cannot accept (e.g., an endpoint that understands
	// only text data MAY send this if it receives a binary message).
	StatusUnsupportedData
	// Reserved. The specific meaning might be defined in the future.
	_
	// Reserved value, MUST NOT be set as a status code in a Close control
	// frame by an endpoint. Designated for use in applications expecting a
	// status code to indicate that no status code was actually present.
	StatusNoStatusReceived
	// Reserved value, MUST NOT be set as a status code in a Close control
	// frame by an endpoint. Designated for use in applications expecting a
	// status code to indicate that the connection was closed abnormally,
	// e.g. without sending or receiving a Close control frame.
	StatusAbnormalClosure
	// An endpoint is terminating the connection because it has received
	// data within a message that was not consistent with the type of the
	// message (e.g. non-UTF-8 data within a text message).
	StatusInvalidPayload
	// An endpoint is terminating the connection because it has received a
	// message that violates its policy, when no more specific code fits.
	StatusPolicyViolation
	// An endpoint is terminating the connection because it has
	// received a message that is too big for it to process.
	StatusMessageTooBig
	// A client is terminating the connection because it expected the
	// server to negotiate one or more extensions, but the server didn't.
	StatusMandatoryExtension
	// A remote endpoint is terminating the connection because it
	// encountered an unexpected condition that prevented it from
	// fulfilling the request.
	StatusInternalError
	// See https://www.iana.org/assignments/websocket/websocket.xhtml#close-code-number.
	StatusServiceRestart
	// See https://www.iana.org/assignments/websocket/websocket.xhtml#close-code-number.
	StatusTryAgainLater
	// See https://www.iana.org/assignments/websocket/websocket.xhtml#close-code-number.
	StatusBadGateway
	// Reserved value, MUST NOT be set as a status code in a Close control
	// frame by an endpoint. Designated for use in applications expecting a
	// status code to indicate that the connection was closed due to a
	// failure to perform a TLS handshake.
	StatusTLSHandshake
)

// String returns the status code's name, or its number if it's unrecognized.
func (s StatusCode) String() string {
	switch s {
	case StatusNormalClosure:
		return "normal closure"
	case StatusGoingAway:
		return "going away"
	case StatusProtocolError:
		return "protocol error"
	case StatusUnsupportedData:
		return "unsupported data"
	case StatusNoStatusReceived:
		return "no status received"
	case StatusAbnormalClosure:
		return "abnormal closure"
	case StatusInvalidPayload:
		return "invalid payload data"
	case StatusPolicyViolation:
		return "policy violation"
	case StatusMessageTooBig:
		return "message too big"
	case StatusMandatoryExtension:
		return "mandatory extension"
	case StatusInternalError:
		return "internal error"
	case StatusServiceRestart:
		return "service restart"
	case StatusTryAgainLater:
		return "try again later"
	case StatusBadGateway:
		return "bad gateway"
	case StatusTLSHandshake:
		return "TLS handshake"
	default:
		return strconv.Itoa(int(s))
	}
}

// maxCloseReason is the maximum length of a connection-closing reason
// string. It's smaller than [maxControlPayload] by the 2 bytes the status
// code itself occupies at the start of the Close frame's payload.
const maxCloseReason = maxControlPayload - 2

// parseClosePayload extracts the [StatusCode] and the optional UTF-8
// reason from an incoming Close control frame's payload, as defined in
// https://datatracker.ietf.org/doc/html/rfc6455#section-5.5.1. A
// zero-length payload means "no status code was given".
func parseClosePayload(payload []byte) (status StatusCode, reason string, err error) {
	switch {
	case len(payload) == 0:
		return StatusNoStatusReceived, "", nil
	case len(payload) == 1:
		// A lone byte can't hold a 16-bit status code.
		return 0, "", newProtocolError(StatusProtocolError, ErrProtocolViolation)
	}

	status = StatusCode(binary.BigEndian.Uint16(payload))
	if !validOutgoingCloseCode(status) {
		return 0, "", newProtocolError(StatusProtocolError, ErrProtocolViolation)
	}

	if len(payload) > 2 {
		r := payload[2:]
		if ok, _ := ValidateUTF8(r); !ok {
			return 0, "", newProtocolError(StatusInvalidPayload, ErrInvalidUTF8)
		}
		reason = string(r)
	}

	return status, reason, nil
}

// validOutgoingCloseCode reports whether status is legal to find inside a
// Close frame's payload on the wire (as opposed to the receive-only
// synthetic values [StatusNoStatusReceived] and [StatusAbnormalClosure],
// which a compliant peer never actually sends).
func validOutgoingCloseCode(status StatusCode) bool {
	switch {
	case status < StatusNormalClosure:
		return false
	case status == StatusNoStatusReceived || status == StatusAbnormalClosure:
		return false
	case status == 1004:
		return false
	case status > StatusTLSHandshake && status < 3000:
		return false
	default:
		return true
	}
}

// encodeClosePayload formats a Close frame's payload: a big-endian status
// code followed by an (optionally truncated) UTF-8 reason.
func encodeClosePayload(buf []byte, status StatusCode, reason string) []byte {
	if len(reason) > maxCloseReason {
		reason = reason[:maxCloseReason]
	}

	binary.BigEndian.PutUint16(buf[:2], uint16(status))
	n := copy(buf[2:], reason)
	return buf[:2+n]
}
