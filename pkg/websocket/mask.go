package websocket

import "encoding/binary"

// ApplyMask XORs buf in place with the repeating 4-byte key, as defined in
// https://datatracker.ietf.org/doc/html/rfc6455#section-5.3. offset is the
// position of buf[0] within the logical, unbounded masked octet stream
// (i.e. how many bytes of the key have already been consumed by a prior
// call), which lets a streaming decoder mask incoming chunks as they
// arrive instead of buffering a whole frame first. It returns the updated
// offset, ready to be passed into the next call over the same frame.
//
// Applying the same key starting at the same offset twice in a row
// restores the original bytes: masking is its own inverse.
func ApplyMask(buf []byte, key [4]byte, offset int) int {
	if len(buf) == 0 {
		return (offset + len(buf)) & 3
	}

	i := 0
	offset &= 3

	// Byte-at-a-time until we're aligned on a key-rotation boundary,
	// so the word-at-a-time loop below can use a single rotated key.
	for offset != 0 && i < len(buf) {
		buf[i] ^= key[offset]
		offset = (offset + 1) & 3
		i++
	}

	// Word-at-a-time: XOR 8 bytes per iteration against the key repeated
	// twice, which is a performance optimization, not a correctness one.
	if i < len(buf) {
		var key8 [8]byte
		for j := range key8 {
			key8[j] = key[j&3]
		}
		k := binary.LittleEndian.Uint64(key8[:])

		for len(buf)-i >= 8 {
			v := binary.LittleEndian.Uint64(buf[i : i+8])
			binary.LittleEndian.PutUint64(buf[i:i+8], v^k)
			i += 8
		}
	}

	for ; i < len(buf); i++ {
		buf[i] ^= key[offset]
		offset = (offset + 1) & 3
	}

	return offset
}
