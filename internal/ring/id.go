// Package ring implements the identifier arithmetic and address/identity
// value types shared by the Chord overlay: hashing strings onto the ring,
// testing membership in the ring's half-open/open arcs, and the node/peer
// address types routing is built on top of.
package ring

import (
	"crypto/sha1"
	"fmt"
)

// Identifier is a point on the Chord ring, in [0, 2^M).
type Identifier uint64

// Mask returns the bitmask for an M-bit identifier space: (1<<M)-1, with the
// M==64 case special-cased since 1<<64 overflows uint64.
func Mask(m int) uint64 {
	if m >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(m)) - 1
}

// HashID hashes the UTF-8 bytes of s with SHA-1 and returns the leading M/8
// bytes interpreted as a big-endian unsigned integer, masked to M bits.
// M must be a multiple of 8 in [8, 64].
func HashID(s string, m int) Identifier {
	if m%8 != 0 || m < 8 || m > 64 {
		panic(fmt.Sprintf("ring: invalid identifier width M=%d", m))
	}
	sum := sha1.Sum([]byte(s))
	nbytes := m / 8
	var v uint64
	for i := 0; i < nbytes; i++ {
		v = v<<8 | uint64(sum[i])
	}
	return Identifier(v & Mask(m))
}

// Add returns (a + delta) mod 2^m.
func Add(a Identifier, delta uint64, m int) Identifier {
	return Identifier((uint64(a) + delta) & Mask(m))
}

// InOpenOpen reports whether x lies strictly between a and b on the ring,
// handling wrap-around. Returns false when a == b (an empty arc).
func InOpenOpen(x, a, b Identifier) bool {
	if a == b {
		return false
	}
	if a < b {
		return x > a && x < b
	}
	return x > a || x < b
}

// InOpenClosed reports whether x lies in (a, b] on the ring. When a == b the
// whole ring belongs to the single owner, so it always returns true.
func InOpenClosed(x, a, b Identifier) bool {
	if a == b {
		return true
	}
	if a < b {
		return x > a && x <= b
	}
	return x > a || x <= b
}
