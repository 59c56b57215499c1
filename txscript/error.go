// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import "github.com/oxidecoin/oxided/coreerr"

func scriptErr(code, desc string) *coreerr.RuleError {
	return coreerr.New(coreerr.ConsensusInvalid, code, desc)
}

var (
	errStackUnderflow  = scriptErr("stack-underflow", "script_failure: stack underflow")
	errUnknownOpcode   = scriptErr("unknown-opcode", "script_failure: unknown opcode")
	errOversizedPush   = scriptErr("oversized-push", "script_failure: push exceeds MaxScriptBytes")
	errScriptTooLong   = scriptErr("script-too-long", "script_failure: script exceeds MaxScriptBytes")
	errTooManyOpcodes  = scriptErr("too-many-opcodes", "script_failure: opcode count exceeds MaxOpcodeCount")
	errStackTooDeep    = scriptErr("stack-too-deep", "script_failure: stack depth exceeds MaxStackDepth")
	errVerifyFailed    = scriptErr("verify-failed", "script_failure: OP_VERIFY/OP_EQUALVERIFY on falsy value")
	errSigVerifyFailed = scriptErr("sig-verify-failed", "script_failure: signature verification failed")
	errNotCleanStack   = scriptErr("not-clean-stack", "script_failure: did not end with exactly one truthy element")
	errReturnReached   = scriptErr("op-return", "script_failure: OP_RETURN reached")
	errTooManySigOps   = scriptErr("too-many-sigops", "script_failure: signature operation budget exceeded")
	errLockTimeUnmet   = scriptErr("locktime-unmet", "script_failure: OP_CHECKLOCKTIMEVERIFY not satisfied")
	errSequenceUnmet   = scriptErr("sequence-unmet", "script_failure: OP_CHECKSEQUENCEVERIFY not satisfied")
)
