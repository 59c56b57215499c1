// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

// CountSigOps returns the number of signature operations (OP_CHECKSIG,
// OP_CHECKMULTISIG) a script contains. It is used outside the engine's own
// per-transaction budget to total a whole block's signature operations
// against MAX_SIGOPS_PER_BLOCK (spec.md §4.7 point 9).
func CountSigOps(script []byte) int {
	ops, err := parseScript(script)
	if err != nil {
		return 0
	}
	var n int
	for _, inst := range ops {
		if inst.data == nil && isSigOp(inst.op) {
			n++
		}
	}
	return n
}
