// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"encoding/binary"

	"github.com/oxidecoin/oxided/blockchain/standalone"
	"github.com/oxidecoin/oxided/chaincfg"
	"github.com/oxidecoin/oxided/chainhash"
	"github.com/oxidecoin/oxided/coreerr"
	"github.com/oxidecoin/oxided/database"
	"github.com/oxidecoin/oxided/txscript"
	"github.com/oxidecoin/oxided/wire"
)

// TxValidationContext carries the chain-state-dependent inputs a single
// transaction's validation needs: the height and timestamp the transaction
// would be confirmed at, the UTXO view it validates its inputs against,
// the retargeted ticket price a ticket purchase must lock exactly, and
// the database transaction a kind-specific payload check (ticket/
// masternode/slash lookups) reads against.
type TxValidationContext struct {
	Height             uint64
	Time               uint64
	View               *UTXOView
	Params             *chaincfg.Params
	Verifier           txscript.SignatureVerifier
	CurrentTicketPrice int64
	Tx                 database.Tx
}

func ruleErr(code, desc string) *coreerr.RuleError {
	return coreerr.New(coreerr.ConsensusInvalid, code, desc)
}

// checkTransactionExceptScripts runs every check of CheckTransaction other
// than the kind-specific payload checks (checkPayload, which the block
// validator calls separately) and the final per-input script execution
// (point 7 below), returning the
// resolved previous-output scripts so a caller validating many transactions
// at once — the block validator's concurrent script-check pass in
// workers.go — can defer that CPU-bound step instead of paying for it
// serially tx-by-tx. A coinbase transaction has no scripts to check; its
// nil, nil return means the caller is done with it.
func checkTransactionExceptScripts(tx *wire.Transaction, ctx *TxValidationContext) ([][]byte, error) {
	if err := standalone.CheckTransactionSanity(tx, uint64(ctx.Params.HardMaxBlockSize)); err != nil {
		return nil, err
	}
	if len(tx.Inputs) > wire.MaxTxIOCount || len(tx.Outputs) > wire.MaxTxIOCount {
		return nil, ruleErr("too-many-tx-io", "transaction exceeds the maximum input/output count")
	}

	if tx.IsCoinbase() {
		return nil, checkCoinbaseOutputs(tx, ctx)
	}

	var totalIn int64
	prevScripts := make([][]byte, len(tx.Inputs))
	for i := range tx.Inputs {
		in := &tx.Inputs[i]
		entry, err := ctx.View.Entry(in.Prev)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			return nil, ruleErr("missing-prevout", "referenced previous output does not exist or is already spent")
		}
		if entry.IsCoinbase && ctx.Height < entry.CreationHeight+ctx.Params.CoinbaseMaturity {
			return nil, ruleErr("immature-coinbase", "transaction spends a coinbase output before maturity")
		}
		if !checkLockTime(in.Sequence, ctx.Height, entry.CreationHeight) {
			return nil, ruleErr("premature-spend", "input's relative lock time has not matured")
		}
		totalIn += entry.Output.Value
		prevScripts[i] = entry.Output.LockScript
	}

	totalOut := tx.SumOutputs()
	if totalOut > totalIn {
		return nil, ruleErr("value-not-conserved", "transaction outputs exceed its inputs")
	}
	fee := totalIn - totalOut
	minFee := int64(tx.SerializeSize()) * ctx.Params.MinRelayFeePerByte
	if fee < minFee {
		return nil, coreerr.New(coreerr.Policy, "fee-too-low", "transaction fee is below the minimum relay rate")
	}

	for i := range tx.Outputs {
		out := &tx.Outputs[i]
		if out.IsDataCarrier() {
			continue
		}
		if out.Value < ctx.Params.DustLimit {
			return nil, ruleErr("dust-output", "output value is below the dust limit")
		}
	}

	if !checkAbsoluteLockTime(tx.LockTime, ctx.Height, ctx.Time) {
		return nil, ruleErr("premature-tx", "transaction lock time has not matured")
	}

	return prevScripts, nil
}

// CheckTransaction runs the seven-point transaction validator of spec.md
// §4.6 plus the kind-specific payload checks, against the UTXO view and
// chain parameters carried in ctx.
//
//  1. decode/version (assumed already done by the caller; Kind.valid() is
//     enforced at decode time)
//  2. input/output counts and no duplicate previous outpoints
//  3. every previous output exists in the UTXO view, and coinbase inputs
//     have reached maturity
//  4. value is conserved and the fee clears the minimum relay rate
//  5. every non-data-carrier output clears the dust limit
//  6. lock_time and each input's sequence are satisfied
//  7. every input's script executes successfully
func CheckTransaction(tx *wire.Transaction, ctx *TxValidationContext) error {
	prevScripts, err := checkTransactionExceptScripts(tx, ctx)
	if err != nil {
		return err
	}
	if tx.IsCoinbase() {
		return nil
	}

	for i := range tx.Inputs {
		if err := txscript.VerifyInput(tx, i, prevScripts[i], ctx.Verifier, ctx.Height, ctx.Time); err != nil {
			return ruleErr("script-failure", err.Error())
		}
	}

	return checkPayload(tx, ctx)
}

// checkCoinbaseOutputs accepts a coinbase transaction's structural shape
// without conservation/fee/script checks, which the block validator
// replaces with its subsidy-plus-fees accounting (spec.md §4.7 point 7).
func checkCoinbaseOutputs(tx *wire.Transaction, ctx *TxValidationContext) error {
	for i := range tx.Outputs {
		out := &tx.Outputs[i]
		if !out.IsDataCarrier() && out.Value < ctx.Params.DustLimit {
			return ruleErr("dust-output", "coinbase output value is below the dust limit")
		}
	}
	return nil
}

// checkLockTime implements the BIP-68-style relative lock: a sequence
// with bit 31 set is not relative-locked at all; otherwise the low 16 bits
// are a required number of confirmations since creationHeight.
func checkLockTime(sequence uint32, height, creationHeight uint64) bool {
	const disableFlag = 1 << 31
	if sequence&disableFlag != 0 {
		return true
	}
	required := uint64(sequence & 0x0000ffff)
	return height >= creationHeight+required
}

// checkAbsoluteLockTime implements spec.md §4.6 point 6's height-vs-
// timestamp lock_time semantics: a value below the threshold is a block
// height, at or above it a Unix timestamp.
func checkAbsoluteLockTime(lockTime uint32, height, blockTime uint64) bool {
	const lockTimeThreshold = 5e8
	if lockTime == 0 {
		return true
	}
	if uint64(lockTime) < lockTimeThreshold {
		return height >= uint64(lockTime)
	}
	return blockTime >= uint64(lockTime)
}

// checkPayload applies the kind-specific rules spec.md §4.6 layers on top
// of the generic checks: exact ticket price, exact masternode collateral,
// and evidence-based slashing admissibility.
func checkPayload(tx *wire.Transaction, ctx *TxValidationContext) error {
	switch tx.Kind {
	case wire.KindTicketPurchase:
		return checkTicketPurchase(tx, ctx)
	case wire.KindMasternodeRegister:
		return checkMasternodeRegister(tx, ctx)
	case wire.KindGovernanceVote:
		return checkGovernanceVote(tx, ctx)
	case wire.KindSlashNonParticipation:
		return checkSlashNonParticipation(tx, ctx)
	case wire.KindSlashEquivocation:
		return checkSlashEquivocation(tx, ctx)
	default:
		return nil
	}
}

// checkTicketPurchase confirms the payload references a real output locking
// exactly ctx.CurrentTicketPrice (spec.md §4.6: "ticket purchase must lock
// exactly current_ticket_price"). That price is the chain-wide retargeted
// value carried in ctx, since this function has no history of recent block
// occupancy of its own to retarget from.
func checkTicketPurchase(tx *wire.Transaction, ctx *TxValidationContext) error {
	p := tx.TicketPurchase
	if p == nil {
		return ruleErr("missing-ticket-payload", "ticket purchase transaction has no payload")
	}
	if int(p.TicketOutputIndex) >= len(tx.Outputs) {
		return ruleErr("bad-ticket-output-index", "ticket output index is out of range")
	}
	if tx.Outputs[p.TicketOutputIndex].Value != ctx.CurrentTicketPrice {
		return ruleErr("bad-ticket-price", "ticket output does not lock exactly the current ticket price")
	}
	return nil
}

func checkMasternodeRegister(tx *wire.Transaction, ctx *TxValidationContext) error {
	p := tx.MasternodeRegister
	if p == nil {
		return ruleErr("missing-masternode-payload", "masternode register transaction has no payload")
	}
	if int(p.CollateralOutputIndex) >= len(tx.Outputs) {
		return ruleErr("bad-collateral-output-index", "collateral output index is out of range")
	}
	if tx.Outputs[p.CollateralOutputIndex].Value != ctx.Params.MasternodeCollateral {
		return ruleErr("bad-collateral-amount", "masternode collateral does not match the required amount exactly")
	}
	return nil
}

// checkGovernanceVote confirms the payload is present and, against the
// proposal/vote-record buckets in ctx.Tx, that the proposal exists, that
// its voting deadline height has not passed, and that the voter key has
// not already cast a ballot on it.
func checkGovernanceVote(tx *wire.Transaction, ctx *TxValidationContext) error {
	p := tx.GovernanceVote
	if p == nil {
		return ruleErr("missing-vote-payload", "governance vote transaction has no payload")
	}
	proposal, err := GetProposal(ctx.Tx, p.ProposalID)
	if err != nil {
		return err
	}
	if proposal == nil {
		return ruleErr("unknown-proposal", "governance vote names a proposal that does not exist")
	}
	if ctx.Height > proposal.VotingDeadlineHeight {
		return ruleErr("vote-after-deadline", "governance vote arrives after the proposal's voting deadline")
	}
	if HasVoted(ctx.Tx, p.ProposalID, p.VoterPubkey) {
		return ruleErr("duplicate-ballot", "voter key has already cast a ballot on this proposal")
	}
	return nil
}

// checkSlashNonParticipation verifies spec.md §4.12(a): the ticket named by
// the certificate must actually have been selected to vote at MissedHeight
// and have no valid vote recorded there. WasMissedVoter answers that against
// the missed-voter record connectBlock persists for every height alongside
// the rest of that block's non-UTXO effects, since a transaction validator
// has no way to re-run the DPRF voter selection for an arbitrary past
// height on its own.
func checkSlashNonParticipation(tx *wire.Transaction, ctx *TxValidationContext) error {
	p := tx.SlashNonParticipation
	if p == nil {
		return ruleErr("missing-slash-payload", "non-participation slash transaction has no payload")
	}
	if ctx.Height < p.MissedHeight+gracePeriodBlocks {
		return ruleErr("slash-not-admissible", "non-participation certificate is not yet admissible")
	}
	missed, err := WasMissedVoter(ctx.Tx, p.MissedHeight, p.TicketID)
	if err != nil {
		return err
	}
	if !missed {
		return ruleErr("not-a-missed-voter", "ticket was not selected to vote at missed_height, or cast a valid vote there")
	}
	return nil
}

// checkSlashEquivocation verifies spec.md §4.12: the certificate's two
// signatures must each be the named ticket's own Ed25519 signature, over
// the same height but two distinct block hashes. Without this, anyone could
// submit a slash naming an arbitrary victim ticket and two arbitrary
// distinct hashes.
func checkSlashEquivocation(tx *wire.Transaction, ctx *TxValidationContext) error {
	p := tx.SlashEquivocation
	if p == nil {
		return ruleErr("missing-slash-payload", "equivocation slash transaction has no payload")
	}
	if p.BlockHashA == p.BlockHashB {
		return ruleErr("not-equivocation", "equivocation proof's two block hashes are identical")
	}

	t, err := GetTicket(ctx.Tx, p.TicketID)
	if err != nil {
		return err
	}
	if t == nil {
		return ruleErr("unknown-slash-target", "equivocation proof targets a ticket this store has no record of")
	}
	if t.Status == TicketRevoked {
		return ruleErr("already-revoked", "ticket is already blacklisted by a prior slash")
	}

	if !ctx.Verifier.Verify(t.OwnerPubkey[:], equivocationSigMessage(p.Height, p.BlockHashA), p.SigA[:]) {
		return ruleErr("bad-equivocation-signature", "first signature does not verify against the ticket's owner key")
	}
	if !ctx.Verifier.Verify(t.OwnerPubkey[:], equivocationSigMessage(p.Height, p.BlockHashB), p.SigB[:]) {
		return ruleErr("bad-equivocation-signature", "second signature does not verify against the ticket's owner key")
	}

	return nil
}

// equivocationSigMessage is the message an equivocation certificate's two
// signatures must each cover: height and the specific conflicting block
// hash bound together, so a certificate can't mix signatures produced at
// different heights into one proof.
func equivocationSigMessage(height uint64, blockHash chainhash.Hash) []byte {
	msg := make([]byte, 8+chainhash.HashSize)
	binary.BigEndian.PutUint64(msg[:8], height)
	copy(msg[8:], blockHash[:])
	return msg
}

// gracePeriodBlocks is GRACE from spec.md §4.12: the number of blocks a
// non-participation certificate must wait before it becomes admissible.
const gracePeriodBlocks = 10
