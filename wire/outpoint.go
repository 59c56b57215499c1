// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"

	"github.com/oxidecoin/oxided/chainhash"
)

// OutPoint uniquely identifies a transaction output: the id of the
// transaction that created it and the output's index within that
// transaction.
type OutPoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// Encode writes the canonical 36-byte encoding of the OutPoint.
func (o OutPoint) Encode(w io.Writer) error {
	if err := writeHash(w, o.Hash); err != nil {
		return err
	}
	return writeUint32(w, o.Index)
}

// Decode reads an OutPoint from its canonical encoding.
func (o *OutPoint) Decode(r io.Reader) error {
	h, err := readHash(r)
	if err != nil {
		return err
	}
	idx, err := readUint32(r)
	if err != nil {
		return err
	}
	o.Hash = h
	o.Index = idx
	return nil
}

// Bytes returns the canonical encoding of the OutPoint.
func (o OutPoint) Bytes() []byte {
	var buf bytes.Buffer
	_ = o.Encode(&buf)
	return buf.Bytes()
}

// TxOutput is a single transaction output: an amount, a spend-authorization
// script, and an optional memo.
type TxOutput struct {
	Value      int64
	LockScript []byte
	Memo       []byte // nil means absent
}

// Encode writes the canonical encoding of the output.
func (o *TxOutput) Encode(w io.Writer) error {
	if err := writeUint64(w, uint64(o.Value)); err != nil {
		return err
	}
	if err := WriteVarBytes(w, o.LockScript); err != nil {
		return err
	}
	// Optional memo: one presence byte, then a varint-prefixed payload when
	// present. This keeps the decoder's "unknown discriminator" rule
	// meaningful (any byte other than 0/1 is a decode error) without
	// resorting to a length of -1 as a sentinel.
	if o.Memo == nil {
		_, err := w.Write([]byte{0})
		return err
	}
	if _, err := w.Write([]byte{1}); err != nil {
		return err
	}
	return WriteVarBytes(w, o.Memo)
}

// Decode reads a TxOutput from its canonical encoding.
func (o *TxOutput) Decode(r io.Reader) error {
	val, err := readUint64(r)
	if err != nil {
		return err
	}
	script, err := ReadVarBytes(r, MaxScriptBytes)
	if err != nil {
		return err
	}
	var present [1]byte
	if _, err := io.ReadFull(r, present[:]); err != nil {
		return err
	}
	var memo []byte
	switch present[0] {
	case 0:
		memo = nil
	case 1:
		memo, err = ReadVarBytes(r, MaxScriptBytes)
		if err != nil {
			return err
		}
	default:
		return errUnknownDiscriminator
	}
	o.Value = int64(val)
	o.LockScript = script
	o.Memo = memo
	return nil
}

// IsDataCarrier reports whether the output is a provably-unspendable
// OP_RETURN data-carrier, exempting it from the dust-limit and
// positive-value invariants of spec.md §3.
func (o *TxOutput) IsDataCarrier() bool {
	return len(o.LockScript) > 0 && o.LockScript[0] == opReturnByte
}

const opReturnByte = 0x6a
