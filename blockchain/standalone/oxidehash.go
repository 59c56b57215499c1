// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package standalone

import (
	"encoding/binary"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/oxidecoin/oxided/chainhash"
)

// ScratchpadSize is SCRATCHPAD = 2^30 bytes (1 GiB), spec.md §4.4.
const ScratchpadSize = 1 << 30

// Iterations is ITERS = 2^20, spec.md §4.4.
const Iterations = 1 << 20

const blockSize = chainhash.HashSize // 32-byte mix blocks

// Scratchpad is the reusable 1 GiB buffer OxideHash mixes into. Holding one
// per worker avoids a 1 GiB allocation on every hash attempt, which the miner
// and block validator both perform at high frequency.
type Scratchpad struct {
	buf    []byte
	locked bool
}

var scratchpadPool = sync.Pool{
	New: func() any {
		return newScratchpad()
	},
}

func newScratchpad() *Scratchpad {
	s := &Scratchpad{buf: make([]byte, ScratchpadSize)}
	// Best-effort: failure to lock just means the pages may be swapped,
	// which degrades the memory-hardness property but not correctness
	// (spec.md §4.4).
	if err := unix.Mlock(s.buf); err == nil {
		s.locked = true
	}
	return s
}

// AcquireScratchpad returns a Scratchpad from the shared pool, allocating a
// fresh one if the pool is empty.
func AcquireScratchpad() *Scratchpad {
	return scratchpadPool.Get().(*Scratchpad)
}

// Release returns the Scratchpad to the pool for reuse.
func (s *Scratchpad) Release() {
	scratchpadPool.Put(s)
}

// Close unlocks and releases the scratchpad's memory. Callers that acquired
// a Scratchpad outside the pool (e.g. for a one-shot verification) should
// call Close instead of Release.
func (s *Scratchpad) Close() {
	if s.locked {
		_ = unix.Munlock(s.buf)
		s.locked = false
	}
	s.buf = nil
}

// OxideHash computes the memory-hard proof-of-work digest of preimage
// (the canonical encoding of a block header including its nonce), per
// spec.md §4.4. It uses pad as scratch space, overwriting its full
// contents; pad must be exactly ScratchpadSize bytes.
func OxideHash(preimage []byte, pad *Scratchpad) [32]byte {
	buf := pad.buf

	s := chainhash.HashFunc(preimage)

	// Step 2: fill the scratchpad with block i = BLAKE3(S || i).
	var idxBuf [8]byte
	fillInput := make([]byte, 32+8)
	copy(fillInput, s[:])
	for i := 0; i < ScratchpadSize/blockSize; i++ {
		binary.LittleEndian.PutUint64(idxBuf[:], uint64(i))
		copy(fillInput[32:], idxBuf[:])
		block := chainhash.HashFunc(fillInput)
		copy(buf[i*blockSize:(i+1)*blockSize], block[:])
	}

	// Step 3: data-dependent read/mix/write loop.
	st := s
	modulus := uint64(ScratchpadSize - blockSize)
	mixInput := make([]byte, 32+8)
	xorInput := make([]byte, 32)
	for i := uint64(0); i < Iterations; i++ {
		binary.LittleEndian.PutUint64(idxBuf[:], i)
		copy(mixInput, st[:])
		copy(mixInput[32:], idxBuf[:])
		readOff := binary.LittleEndian.Uint64(chainhash.HashFunc(mixInput)[:8]) % modulus

		for b := 0; b < 32; b++ {
			xorInput[b] = st[b] ^ buf[readOff+uint64(b)]
		}
		st = chainhash.HashFunc(xorInput)

		binary.LittleEndian.PutUint64(idxBuf[:], i^0xFFFFFFFF)
		copy(mixInput, st[:])
		copy(mixInput[32:], idxBuf[:])
		writeOff := binary.LittleEndian.Uint64(chainhash.HashFunc(mixInput)[:8]) % modulus

		copy(buf[writeOff:writeOff+32], st[:])
	}

	// Step 4: output = BLAKE3(SCRATCHPAD[0..32] || st || SCRATCHPAD[end-32..]).
	final := make([]byte, 0, 32*3)
	final = append(final, buf[:32]...)
	final = append(final, st[:]...)
	final = append(final, buf[ScratchpadSize-32:]...)
	out := chainhash.HashFunc(final)
	return [32]byte(out)
}

// MeetsTarget reports whether digest, interpreted as a 256-bit big-endian
// integer, is strictly less than the target decoded from compact.
func MeetsTarget(digest [32]byte, compact uint32) bool {
	return HashToBig(digest).Cmp(CompactToBig(compact)) < 0
}
