package mixin

import (
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// contentHashLen is the number of digest bytes kept in a content name.
const contentHashLen = 16

// ContentName returns name suffixed with a BLAKE2b-256 digest of name
// and parts. Parts are length-prefixed, so ("ab", "c") and ("a", "bc")
// give different names. Equal inputs always give the same name.
func ContentName(name string, parts ...string) string {
	h, _ := blake2b.New256(nil) // only fails for keys longer than 64 bytes
	var n [binary.MaxVarintLen64]byte
	write := func(s string) {
		h.Write(n[:binary.PutUvarint(n[:], uint64(len(s)))])
		h.Write([]byte(s))
	}
	write(name)
	for _, p := range parts {
		write(p)
	}
	sum := h.Sum(nil)
	return name + "@" + hex.EncodeToString(sum[:contentHashLen])
}
