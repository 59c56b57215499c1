// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chainhash provides the 32-byte BLAKE3 digest type used throughout
// the consensus core, along with the domain-separated hashing helpers that
// every other package builds on.
package chainhash

import (
	"encoding/hex"
	"fmt"

	"lukechampine.com/blake3"
)

// HashSize is the size, in bytes, of a domain digest used by the consensus
// core.
const HashSize = 32

// Domain tags separate the hash of one kind of object from another so that
// no two use-sites can ever collide on the same preimage. Each tag is hashed
// as a one-byte prefix ahead of the object being hashed.
const (
	DomainTx          byte = 0x01
	DomainBlockHeader byte = 0x02
	DomainVoterSeed   byte = 0x03
	DomainStateNode   byte = 0x04
	DomainPowSeed     byte = 0x05
	DomainMerkleLeaf  byte = 0x06
	DomainMerkleInner  byte = 0x07
	DomainTicketID     byte = 0x08
	DomainMasternodeID byte = 0x09
)

// Hash is a 32-byte BLAKE3 digest.
type Hash [HashSize]byte

// ZeroHash is the Hash value consisting of all zeroes, used as the
// prev_block_hash of the genesis header.
var ZeroHash Hash

// String returns the Hash as a hexadecimal string, with the bytes in the
// same order they are stored (no byte-reversal, unlike Bitcoin).
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether the hash is the all-zero sentinel value.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// CloneBytes returns a newly allocated copy of the hash bytes.
func (h Hash) CloneBytes() []byte {
	out := make([]byte, HashSize)
	copy(out, h[:])
	return out
}

// NewHash constructs a Hash from a byte slice, which must be exactly
// HashSize bytes long.
func NewHash(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, fmt.Errorf("invalid hash length %d, expected %d", len(b), HashSize)
	}
	copy(h[:], b)
	return h, nil
}

// NewHashFromStr parses a hex-encoded string into a Hash.
func NewHashFromStr(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		var h Hash
		return h, err
	}
	return NewHash(b)
}

// sum computes the 32-byte BLAKE3 digest of the concatenation of the given
// byte slices, with a one-byte domain-separation prefix ahead of them.
func sum(domain byte, parts ...[]byte) Hash {
	h := blake3.New(HashSize, nil)
	h.Write([]byte{domain})
	for _, p := range parts {
		h.Write(p)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// HashB returns the BLAKE3 digest of b, prefixed with the given domain tag.
func HashB(domain byte, b []byte) Hash {
	return sum(domain, b)
}

// HashFunc computes the BLAKE3 digest of b with no domain separation. This
// is exposed for use-sites (such as the OxideHash scratchpad fill loop) that
// perform their own domain framing internally.
func HashFunc(b []byte) Hash {
	h := blake3.Sum256(b)
	return Hash(h)
}

// Concat hashes the concatenation of the given domain-tagged parts. It is a
// convenience wrapper over sum for callers that build up a message from
// several fields.
func Concat(domain byte, parts ...[]byte) Hash {
	return sum(domain, parts...)
}
