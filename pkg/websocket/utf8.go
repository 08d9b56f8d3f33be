package websocket

import "encoding/binary"

// utf8Accept and utf8Reject are the two distinguished states of the
// byte-class DFA below. Every other state (24, 36, ..., 96) represents
// "inside a multi-byte sequence, n bytes still expected".
const (
	utf8Accept uint32 = 0
	utf8Reject uint32 = 12
)

// utf8ByteClass maps each possible input byte to one of 12 character
// classes, shrinking the transition table from 256*256 to 9*12 entries.
//
// This is Björn Höhrmann's UTF-8 decoder DFA
// (https://bjoern.hoehrmann.de/utf-8/decoder/dfa/), released into the
// public domain. It rejects overlong encodings, surrogate halves
// (U+D800-U+DFFF), and codepoints above U+10FFFF by construction of the
// table, with no extra range checks needed in the stepping code.
var utf8ByteClass = [256]byte{
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	8, 8, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2,
	10, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 4, 3, 3, 11, 6, 6, 6, 5, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8,
}

// utf8Transitions maps (state, byteClass) to the next state. It is indexed
// as utf8Transitions[state+class]; rows for states not reachable as a
// "current" state (anything but 0,12,24,...,96) are never read.
var utf8Transitions = [108]uint32{
	0, 12, 24, 36, 60, 96, 84, 12, 12, 12, 48, 72, // state 0
	12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, // state 12 (reject, sticky)
	12, 0, 12, 12, 12, 12, 12, 0, 12, 0, 12, 12, // state 24
	12, 24, 12, 12, 12, 12, 12, 24, 12, 24, 12, 12, // state 36
	12, 12, 12, 12, 12, 12, 12, 24, 12, 12, 12, 12, // state 48
	12, 24, 12, 12, 12, 12, 12, 12, 12, 24, 12, 12, // state 60
	12, 12, 12, 12, 12, 12, 12, 36, 12, 36, 12, 12, // state 72
	12, 36, 12, 12, 12, 12, 12, 36, 12, 36, 12, 12, // state 84
	12, 36, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, // state 96
}

// asciiHighBitMask has the high bit set in every byte; ANDing it with a
// little-endian uint64 of 8 bytes is nonzero iff at least one of them has
// its high bit set, i.e. is not plain ASCII.
const asciiHighBitMask = 0x8080808080808080

// Validator is a streaming UTF-8 validator: it can be fed byte slices one
// at a time (e.g. as WebSocket text fragments arrive) and reports whether
// the stream consumed so far ends on a complete codepoint boundary.
//
// The zero value is a ready-to-use validator positioned at the start of a
// new UTF-8 stream.
type Validator struct {
	state  uint32
	codep  uint32
	pos    int
	failed bool
	errAt  int
}

// Feed validates the next chunk of a UTF-8 byte stream. finished reports
// whether the validator is currently between codepoints (i.e. it would be
// safe to call Finalize right now). Once Feed returns an error, the
// Validator is permanently failed; subsequent calls keep returning the
// same error without re-scanning.
func (v *Validator) Feed(b []byte) (finished bool, err error) {
	if v.failed {
		return false, ErrInvalidUTF8
	}

	i := 0
	n := len(b)
	for i < n {
		// ASCII fast path: while between codepoints, consume runs of 8
		// bytes at a time as long as none of them have the high bit set.
		if v.state == utf8Accept {
			for i+8 <= n {
				word := binary.LittleEndian.Uint64(b[i : i+8])
				if word&asciiHighBitMask != 0 {
					break
				}
				i += 8
				v.pos += 8
			}
			if i >= n {
				break
			}
		}

		c := b[i]
		class := uint32(utf8ByteClass[c])
		if v.state != utf8Accept {
			v.codep = (uint32(c) & 0x3f) | (v.codep << 6)
		} else {
			v.codep = (0xff >> class) & uint32(c)
		}

		v.state = utf8Transitions[v.state+class]
		if v.state == utf8Reject {
			v.failed = true
			v.errAt = v.pos
			return false, ErrInvalidUTF8
		}

		i++
		v.pos++
	}

	return v.state == utf8Accept, nil
}

// Finalize reports whether the validator is between codepoints, i.e.
// whether the stream fed so far is complete, valid UTF-8 on its own. It
// returns an error if the stream ends in the middle of a multi-byte
// sequence or had already failed.
func (v *Validator) Finalize() error {
	if v.failed {
		return ErrInvalidUTF8
	}
	if v.state != utf8Accept {
		v.failed = true
		v.errAt = v.pos
		return ErrInvalidUTF8
	}
	return nil
}

// Reset returns the validator to its zero-value (start-of-stream) state,
// so it can be reused across a new message without reallocating.
func (v *Validator) Reset() {
	*v = Validator{}
}

// ValidateUTF8 is the one-shot form of [Validator], for callers that
// already hold the complete byte slice. ok is false if b is not valid
// UTF-8, in which case errIndex is the offset of the first offending
// byte, or len(b) if b ends in the middle of a multi-byte sequence;
// otherwise errIndex is -1.
func ValidateUTF8(b []byte) (ok bool, errIndex int) {
	var v Validator

	finished, err := v.Feed(b)
	if err != nil {
		return false, v.errAt
	}
	if !finished {
		if err := v.Finalize(); err != nil {
			return false, v.errAt
		}
	}

	return true, -1
}
