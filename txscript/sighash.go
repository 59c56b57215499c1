// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import "github.com/oxidecoin/oxided/wire"

// TxSigHasher adapts a wire.Transaction to the SigHasher interface the
// Engine uses to compute OP_CHECKSIG/OP_CHECKMULTISIG message digests.
type TxSigHasher struct {
	Tx *wire.Transaction
}

// SigHash implements SigHasher.
func (h TxSigHasher) SigHash(inputIndex int, prevLockScript []byte) []byte {
	hash := h.Tx.SigHash(inputIndex, prevLockScript)
	return hash[:]
}

// VerifyInput executes input inputIndex's unlock script against
// prevLockScript, the lock script of the output it spends, using the
// transaction's own fields as signing context (lock_time and the input's
// own sequence for OP_CHECKLOCKTIMEVERIFY/OP_CHECKSEQUENCEVERIFY).
// currentHeight and blockTime are the tentative validation context.
func VerifyInput(tx *wire.Transaction, inputIndex int, prevLockScript []byte, verifier SignatureVerifier, currentHeight, blockTime uint64) error {
	in := tx.Inputs[inputIndex]
	e := NewEngine(verifier, TxSigHasher{Tx: tx}, currentHeight, blockTime, in.Sequence)
	e.SetLockTime(tx.LockTime)
	return e.Execute(in.UnlockScript, prevLockScript, inputIndex, prevLockScript)
}
