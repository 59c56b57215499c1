// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MaxWitnessItems bounds the number of byte arrays carried in an input's
// witness sequence.
const MaxWitnessItems = 64

// TxInput spends a previously-created, unspent output.
type TxInput struct {
	Prev         OutPoint
	UnlockScript []byte
	Sequence     uint32
	Witness      [][]byte
}

// Encode writes the canonical encoding of the input. Witness is excluded
// from the transaction id hash (see Transaction.TxID) but is still
// part of the input's own canonical encoding for wire transmission and for
// WitnessHash.
func (in *TxInput) Encode(w io.Writer) error {
	if err := in.Prev.Encode(w); err != nil {
		return err
	}
	if err := WriteVarBytes(w, in.UnlockScript); err != nil {
		return err
	}
	if err := writeUint32(w, in.Sequence); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(in.Witness))); err != nil {
		return err
	}
	for _, item := range in.Witness {
		if err := WriteVarBytes(w, item); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads a TxInput from its canonical encoding.
func (in *TxInput) Decode(r io.Reader) error {
	if err := in.Prev.Decode(r); err != nil {
		return err
	}
	script, err := ReadVarBytes(r, MaxScriptBytes)
	if err != nil {
		return err
	}
	seq, err := readUint32(r)
	if err != nil {
		return err
	}
	n, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if n > MaxWitnessItems {
		return errTooManyWitnessItems
	}
	witness := make([][]byte, 0, n)
	for i := uint64(0); i < n; i++ {
		item, err := ReadVarBytes(r, MaxScriptBytes)
		if err != nil {
			return err
		}
		witness = append(witness, item)
	}
	in.UnlockScript = script
	in.Sequence = seq
	in.Witness = witness
	return nil
}

// encodeForTxID writes the input's canonical encoding without its witness
// sequence. The transaction id is BLAKE3 over the canonical encoding
// excluding witness data (spec.md §4.2); Open Question (b) is resolved in
// SPEC_FULL.md §9 as "witness is not part of tx_id".
func (in *TxInput) encodeForTxID(w io.Writer) error {
	if err := in.Prev.Encode(w); err != nil {
		return err
	}
	if err := WriteVarBytes(w, in.UnlockScript); err != nil {
		return err
	}
	return writeUint32(w, in.Sequence)
}

// encodeForSigHash writes the input's canonical encoding with its unlock
// script blanked, for use in the per-input signature hash message (spec.md
// §4.3).
func (in *TxInput) encodeForSigHash(w io.Writer) error {
	if err := in.Prev.Encode(w); err != nil {
		return err
	}
	if err := WriteVarBytes(w, nil); err != nil {
		return err
	}
	return writeUint32(w, in.Sequence)
}
