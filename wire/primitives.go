// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"io"

	"github.com/oxidecoin/oxided/chainhash"
	"github.com/oxidecoin/oxided/coreerr"
)

// Limits from spec.md §6 / §4.3 that every decoder enforces structurally.
const (
	MaxScriptBytes  = 10000
	MaxTxIOCount    = 100000
	MaxMoney        = 21_000_000 * 100_000_000
	VotersPerBlock  = 5
	TicketVoteBytes = 129
)

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func writeUint64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func writeHash(w io.Writer, h chainhash.Hash) error {
	_, err := w.Write(h[:])
	return err
}

func readHash(r io.Reader) (chainhash.Hash, error) {
	var h chainhash.Hash
	if _, err := io.ReadFull(r, h[:]); err != nil {
		return h, err
	}
	return h, nil
}

func writeSig(w io.Writer, sig [64]byte) error {
	_, err := w.Write(sig[:])
	return err
}

func readSig(r io.Reader) ([64]byte, error) {
	var sig [64]byte
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		return sig, err
	}
	return sig, nil
}

func writePubkey(w io.Writer, pk [32]byte) error {
	_, err := w.Write(pk[:])
	return err
}

func readPubkey(r io.Reader) ([32]byte, error) {
	var pk [32]byte
	if _, err := io.ReadFull(r, pk[:]); err != nil {
		return pk, err
	}
	return pk, nil
}

// errTrailingData is returned by Decode functions that accept an io.Reader
// wrapping a fixed-size buffer when bytes remain after a complete decode.
var errTrailingData = coreerr.New(coreerr.Decoding, "trailing-data", "trailing bytes after decode")
