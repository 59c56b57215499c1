// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"crypto/ed25519"
	"crypto/sha256"

	"golang.org/x/crypto/ripemd160"
)

// hash160 computes RIPEMD160(SHA256(v)), the teacher's address-hash
// construction, used for OP_HASH160.
func hash160(v []byte) []byte {
	sh := sha256.Sum256(v)
	r := ripemd160.New()
	r.Write(sh[:])
	return r.Sum(nil)
}

// DefaultVerifier is the consensus-core default SignatureVerifier: plain
// Ed25519 over the raw 32-byte pubkey and 64-byte signature, per spec.md
// §4.1's fixed 32/64-byte signature fields. Deployments that need a
// different scheme supply their own SignatureVerifier to the Engine
// (spec.md §1 Non-goals).
type DefaultVerifier struct{}

// Verify reports whether sig is a valid Ed25519 signature by pubkey over
// message. Malformed key or signature lengths are treated as a failed
// verification rather than a panic.
func (DefaultVerifier) Verify(pubkey, message, sig []byte) bool {
	if len(pubkey) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pubkey), message, sig)
}
