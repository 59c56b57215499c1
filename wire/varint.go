// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/oxidecoin/oxided/coreerr"
)

// maxVarIntPayload bounds how large a length-prefixed payload this codec
// will ever allocate for, regardless of what a hostile peer claims the
// length is. Decoders must never trust a length prefix enough to call
// make([]byte, n) with an attacker-controlled n larger than this.
const maxVarIntPayload = 32 * 1024 * 1024

// WriteVarInt writes x to w as an unsigned LEB128 varint, per spec.md §6.
func WriteVarInt(w io.Writer, x uint64) error {
	var buf [10]byte
	n := 0
	for {
		b := byte(x & 0x7f)
		x >>= 7
		if x != 0 {
			b |= 0x80
		}
		buf[n] = b
		n++
		if x == 0 {
			break
		}
	}
	_, err := w.Write(buf[:n])
	return err
}

// ReadVarInt reads an unsigned LEB128 varint from r.
func ReadVarInt(r io.Reader) (uint64, error) {
	var x uint64
	var shift uint
	var b [1]byte
	for i := 0; i < 10; i++ {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		x |= uint64(b[0]&0x7f) << shift
		if b[0]&0x80 == 0 {
			return x, nil
		}
		shift += 7
	}
	return 0, coreerr.New(coreerr.Decoding, "varint-too-long", "varint exceeds 10 bytes")
}

// WriteVarBytes writes a varint length prefix followed by b's contents.
func WriteVarBytes(w io.Writer, b []byte) error {
	if err := WriteVarInt(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// ReadVarBytes reads a varint length prefix and then exactly that many
// bytes. maxAllowed further bounds the length for the specific field being
// read (e.g. MAX_SCRIPT_BYTES), independent of maxVarIntPayload.
func ReadVarBytes(r io.Reader, maxAllowed uint64) ([]byte, error) {
	n, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if n > maxAllowed || n > maxVarIntPayload {
		return nil, coreerr.Newf(coreerr.Decoding, "varbytes-too-long",
			"length prefix %d exceeds allowed maximum", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, coreerr.Newf(coreerr.Decoding, "varbytes-short-read",
			"sequence length prefix inconsistent with remaining data: %v", err)
	}
	return buf, nil
}
