package websocket

import (
	"bytes"
	"testing"
)

func TestApplyMask(t *testing.T) {
	key := [4]byte{0x37, 0xfa, 0x21, 0x3d}

	tests := []struct {
		name    string
		payload []byte
		want    []byte
	}{
		{
			name:    "rfc_example_hello",
			payload: []byte("Hello"),
			want:    []byte{0x7f, 0x9f, 0x4d, 0x51, 0x58},
		},
		{
			name:    "empty",
			payload: []byte{},
			want:    []byte{},
		},
		{
			name:    "exactly_one_word",
			payload: []byte("abcdefgh"),
			want:    nil, // filled in below via round trip
		},
		{
			name:    "longer_than_one_word",
			payload: []byte("the quick brown fox jumps over the lazy dog"),
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := append([]byte(nil), tt.payload...)
			ApplyMask(buf, key, 0)

			if tt.want != nil && !bytes.Equal(buf, tt.want) {
				t.Errorf("ApplyMask() = %v, want %v", buf, tt.want)
			}

			// Masking is its own inverse.
			ApplyMask(buf, key, 0)
			if !bytes.Equal(buf, tt.payload) {
				t.Errorf("ApplyMask() twice = %v, want original %v", buf, tt.payload)
			}
		})
	}
}

func TestApplyMaskOffset(t *testing.T) {
	key := [4]byte{1, 2, 3, 4}
	payload := []byte("the quick brown fox")

	whole := append([]byte(nil), payload...)
	ApplyMask(whole, key, 0)

	// Masking the same logical stream split across two calls, tracking the
	// returned offset, must produce the same bytes as one call.
	split := append([]byte(nil), payload...)
	offset := ApplyMask(split[:7], key, 0)
	ApplyMask(split[7:], key, offset)

	if !bytes.Equal(split, whole) {
		t.Errorf("split ApplyMask() = %v, want %v", split, whole)
	}
}

func TestApplyMaskOffsetWraps(t *testing.T) {
	key := [4]byte{9, 9, 9, 9}
	got := ApplyMask(nil, key, 6)
	if want := 6 & 3; got != want {
		t.Errorf("ApplyMask() offset = %d, want %d", got, want)
	}
}
