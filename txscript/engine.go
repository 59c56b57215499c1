// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import "bytes"

// SignatureVerifier abstracts the signature algorithm so the core accepts a
// pluggable verifier (spec.md §1 Non-goals: "post-quantum signature schemes
// ... the core accepts a pluggable signature verifier"). The default is
// Ed25519 (see DefaultVerifier).
type SignatureVerifier interface {
	Verify(pubkey, message, sig []byte) bool
}

// isTruthy implements spec.md §4.3's boolean rule: empty or all-zero is
// false, anything else is true.
func isTruthy(v []byte) bool {
	for _, b := range v {
		if b != 0 {
			return true
		}
	}
	return false
}

func boolBytes(b bool) []byte {
	if b {
		return []byte{1}
	}
	return []byte{}
}

// SigHasher computes the per-input signature hash message for a
// transaction, per spec.md §4.3: the transaction id computed with all
// unlock-scripts blanked and the currently-verified input's previous
// lock-script substituted in place of its (blanked) unlock script.
type SigHasher interface {
	SigHash(inputIndex int, prevLockScript []byte) []byte
}

// Engine executes a shared stack across an input's unlock-script followed
// by its referenced output's lock-script.
type Engine struct {
	stack    [][]byte
	verifier SignatureVerifier
	hasher   SigHasher
	lockTime uint32
	sequence uint32
	// currentHeight and blockTime give OP_CHECKLOCKTIMEVERIFY its
	// reference point; sequence gives OP_CHECKSEQUENCEVERIFY its relative
	// reference, per spec.md §4.6 point 6/7.
	currentHeight uint64
	blockTime     uint64
	sigOps        int
}

// NewEngine constructs an Engine ready to execute one input/output script
// pair. currentHeight/blockTime are the validation context's tentative
// block height and timestamp (used by CLTV); sequence is the spending
// input's own sequence field (used by CSV).
func NewEngine(verifier SignatureVerifier, hasher SigHasher, currentHeight, blockTime uint64, sequence uint32) *Engine {
	if verifier == nil {
		verifier = DefaultVerifier{}
	}
	return &Engine{
		verifier:      verifier,
		hasher:        hasher,
		currentHeight: currentHeight,
		blockTime:     blockTime,
		sequence:      sequence,
	}
}

func (e *Engine) push(v []byte) error {
	if len(e.stack) >= MaxStackDepth {
		return errStackTooDeep
	}
	e.stack = append(e.stack, v)
	return nil
}

func (e *Engine) pop() ([]byte, error) {
	if len(e.stack) == 0 {
		return nil, errStackUnderflow
	}
	v := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	return v, nil
}

func (e *Engine) peek() ([]byte, error) {
	if len(e.stack) == 0 {
		return nil, errStackUnderflow
	}
	return e.stack[len(e.stack)-1], nil
}

// Execute runs unlockScript then lockScript over a shared stack and
// reports whether the script validates: after both scripts run, exactly
// one truthy element remains on top (spec.md §4.3).
//
// inputIndex identifies which input is being verified, for the signature
// hash message; prevLockScript is the output script the input is
// spending, substituted into the sighash per spec.md §4.3.
func (e *Engine) Execute(unlockScript, lockScript []byte, inputIndex int, prevLockScript []byte) error {
	unlockOps, err := parseScript(unlockScript)
	if err != nil {
		return err
	}
	lockOps, err := parseScript(lockScript)
	if err != nil {
		return err
	}

	if err := e.run(unlockOps, inputIndex, prevLockScript); err != nil {
		return err
	}
	if err := e.run(lockOps, inputIndex, prevLockScript); err != nil {
		return err
	}

	if len(e.stack) != 1 {
		return errNotCleanStack
	}
	top, err := e.peek()
	if err != nil {
		return err
	}
	if !isTruthy(top) {
		return errNotCleanStack
	}
	return nil
}

func (e *Engine) run(ops []parsedOp, inputIndex int, prevLockScript []byte) error {
	for _, inst := range ops {
		if inst.data != nil || inst.op == OP_0 {
			if err := e.push(inst.data); err != nil {
				return err
			}
			continue
		}
		if err := e.step(inst.op, inputIndex, prevLockScript); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) step(op Opcode, inputIndex int, prevLockScript []byte) error {
	if op >= OP_1 && op <= OP_16 {
		n := byte(op) - byte(OP_1) + 1
		return e.push([]byte{n})
	}

	switch op {
	case OP_NOP:
		return nil
	case OP_RETURN:
		return errReturnReached
	case OP_DUP:
		v, err := e.peek()
		if err != nil {
			return err
		}
		cp := append([]byte(nil), v...)
		return e.push(cp)
	case OP_HASH160:
		v, err := e.pop()
		if err != nil {
			return err
		}
		return e.push(hash160(v))
	case OP_EQUAL, OP_EQUALVERIFY:
		b, err := e.pop()
		if err != nil {
			return err
		}
		a, err := e.pop()
		if err != nil {
			return err
		}
		eq := bytes.Equal(a, b)
		if op == OP_EQUALVERIFY {
			if !eq {
				return errVerifyFailed
			}
			return nil
		}
		return e.push(boolBytes(eq))
	case OP_VERIFY:
		v, err := e.pop()
		if err != nil {
			return err
		}
		if !isTruthy(v) {
			return errVerifyFailed
		}
		return nil
	case OP_CHECKSIG:
		return e.checkSig(inputIndex, prevLockScript)
	case OP_CHECKMULTISIG:
		return e.checkMultiSig(inputIndex, prevLockScript)
	case OP_CHECKLOCKTIMEVERIFY:
		return e.checkLockTimeVerify()
	case OP_CHECKSEQUENCEVERIFY:
		return e.checkSequenceVerify()
	default:
		return errUnknownOpcode
	}
}

func (e *Engine) checkSig(inputIndex int, prevLockScript []byte) error {
	e.sigOps++
	if e.sigOps > MaxSigOpsPerTx {
		return errTooManySigOps
	}
	pubkey, err := e.pop()
	if err != nil {
		return err
	}
	sig, err := e.pop()
	if err != nil {
		return err
	}
	msg := e.hasher.SigHash(inputIndex, prevLockScript)
	ok := e.verifier.Verify(pubkey, msg, sig)
	return e.push(boolBytes(ok))
}

func popInt(e *Engine) (int, error) {
	v, err := e.pop()
	if err != nil {
		return 0, err
	}
	n := 0
	for i, b := range v {
		if i > 3 {
			break
		}
		n |= int(b) << (8 * i)
	}
	return n, nil
}

func (e *Engine) checkMultiSig(inputIndex int, prevLockScript []byte) error {
	nPub, err := popInt(e)
	if err != nil {
		return err
	}
	if nPub < 0 || nPub > MaxStackDepth {
		return errStackTooDeep
	}
	pubkeys := make([][]byte, nPub)
	for i := nPub - 1; i >= 0; i-- {
		pk, err := e.pop()
		if err != nil {
			return err
		}
		pubkeys[i] = pk
	}
	nSig, err := popInt(e)
	if err != nil {
		return err
	}
	if nSig < 0 || nSig > nPub {
		return errStackUnderflow
	}
	sigs := make([][]byte, nSig)
	for i := nSig - 1; i >= 0; i-- {
		s, err := e.pop()
		if err != nil {
			return err
		}
		sigs[i] = s
	}

	e.sigOps += nSig
	if e.sigOps > MaxSigOpsPerTx {
		return errTooManySigOps
	}

	msg := e.hasher.SigHash(inputIndex, prevLockScript)
	pi := 0
	matched := 0
	for _, sig := range sigs {
		found := false
		for pi < len(pubkeys) {
			if e.verifier.Verify(pubkeys[pi], msg, sig) {
				found = true
				pi++
				break
			}
			pi++
		}
		if found {
			matched++
		}
	}
	return e.push(boolBytes(matched == nSig && nSig > 0))
}

func (e *Engine) checkLockTimeVerify() error {
	v, err := e.peek()
	if err != nil {
		return err
	}
	locktime := bytesToUint64(v)
	const lockTimeThreshold = 5e8
	if (locktime < lockTimeThreshold) != (uint64(e.lockTime) < lockTimeThreshold) {
		return errLockTimeUnmet
	}
	if locktime < lockTimeThreshold {
		if e.currentHeight < locktime {
			return errLockTimeUnmet
		}
	} else if e.blockTime < locktime {
		return errLockTimeUnmet
	}
	if e.sequence == 0xFFFFFFFF {
		return errLockTimeUnmet
	}
	return nil
}

func (e *Engine) checkSequenceVerify() error {
	v, err := e.peek()
	if err != nil {
		return err
	}
	required := bytesToUint64(v)
	// BIP-68-style relative lock: disabled when bit 31 of sequence is set.
	const sequenceDisableFlag = 1 << 31
	if e.sequence&sequenceDisableFlag != 0 {
		return errSequenceUnmet
	}
	const sequenceMask = 0x0000ffff
	if required&sequenceDisableFlag != 0 {
		return nil
	}
	if uint64(e.sequence&sequenceMask) < (required & sequenceMask) {
		return errSequenceUnmet
	}
	return nil
}

func bytesToUint64(v []byte) uint64 {
	var n uint64
	for i, b := range v {
		if i > 7 {
			break
		}
		n |= uint64(b) << (8 * i)
	}
	return n
}

// SetLockTime configures the spending transaction's lock_time, used by
// OP_CHECKLOCKTIMEVERIFY.
func (e *Engine) SetLockTime(lockTime uint32) { e.lockTime = lockTime }
