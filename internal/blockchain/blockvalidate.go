// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"bytes"

	"github.com/oxidecoin/oxided/blockchain/standalone"
	"github.com/oxidecoin/oxided/chaincfg"
	"github.com/oxidecoin/oxided/chainhash"
	"github.com/oxidecoin/oxided/coreerr"
	"github.com/oxidecoin/oxided/database"
	"github.com/oxidecoin/oxided/internal/mining"
	"github.com/oxidecoin/oxided/txscript"
	"github.com/oxidecoin/oxided/wire"
)

// BlockValidationContext carries everything CheckBlock needs about the
// chain state the candidate block extends: the parent header, the
// retargeted parameters that govern this height, the live ticket set
// selection is drawn from, and the database transaction the resulting
// state is checked (but not committed) against.
type BlockValidationContext struct {
	Params *chaincfg.Params

	ParentHeader *wire.BlockHeader
	ParentHash   chainhash.Hash

	ExpectedDifficultyTarget uint32
	MaxBlockSize             uint32
	LiveTickets              []*Ticket

	Now      uint64
	Verifier txscript.SignatureVerifier

	// CurrentTicketPrice is the retargeted price every ticket purchase in
	// this block must lock exactly (spec.md §4.6).
	CurrentTicketPrice int64

	Tx database.Tx
}

// blockRuleErr builds a ConsensusInvalid RuleError, the kind spec.md §7
// assigns to every one of the nine block-validity checks below.
func blockRuleErr(code, desc string) *coreerr.RuleError {
	return coreerr.New(coreerr.ConsensusInvalid, code, desc)
}

// CheckBlock runs the nine-point block validator of spec.md §4.7 against a
// fully decoded candidate block. It writes the block's non-UTXO effects
// (tickets, masternodes, governance, slashing) directly to ctx.Tx as it
// goes, so callers must only ever invoke it inside a transaction they are
// prepared to abandon entirely on error (Store.ApplyBlock's recording
// transaction satisfies this). The UTXO view it returns still needs a
// separate Flush to commit the block's spends and new outputs.
func CheckBlock(blk *wire.Block, ctx *BlockValidationContext) (*UTXOView, error) {
	if err := checkHeaderShape(blk, ctx); err != nil {
		return nil, err
	}
	if blk.Header.DifficultyTarget != ctx.ExpectedDifficultyTarget {
		return nil, blockRuleErr("bad-difficulty-target", "header's difficulty target does not match the expected retargeted value")
	}
	if err := checkProofOfWork(blk); err != nil {
		return nil, err
	}
	if blk.Header.MerkleRoot != blk.ComputeMerkleRoot() {
		return nil, blockRuleErr("bad-merkle-root", "header's merkle root does not match the block's transactions")
	}
	if uint32(blk.SerializeSize()) > ctx.MaxBlockSize {
		return nil, blockRuleErr("block-too-big", "block exceeds the adaptive maximum block size")
	}
	if err := checkVoterSet(blk, ctx); err != nil {
		return nil, err
	}

	view := NewUTXOView(ctx.Tx)
	fees, sigOps, err := applyAndSumFees(blk, ctx, view)
	if err != nil {
		return nil, err
	}

	if err := checkCoinbaseReward(blk, ctx, fees); err != nil {
		return nil, err
	}

	// Non-UTXO effects (ticket purchases/redemptions, masternode
	// registration, governance ballots, slashing burns) are written
	// straight to ctx.Tx rather than staged in view: CheckBlock always runs
	// inside the same atomic transaction a caller will abandon on any
	// later error, so writing them early is safe and lets checkStateRoot
	// see them without reimplementing UTXOView's overlay for four more
	// domains.
	for _, tx := range blk.Transactions {
		if err := ApplyTransactionEffects(ctx.Tx, tx, blk.Header.Height, ctx.Params); err != nil {
			return nil, err
		}
	}
	if err := AdvanceTicketLifecycle(ctx.Tx, blk.Header.Height, ctx.Params); err != nil {
		return nil, err
	}

	if err := checkStateRoot(blk, ctx, view); err != nil {
		return nil, err
	}

	maxSigOps := mining.MaxSigOpsForBlockSize(ctx.MaxBlockSize, ctx.Params.SigOpByteCost)
	if sigOps > maxSigOps {
		return nil, blockRuleErr("too-many-sigops", "block's total signature operations exceed the adaptive budget")
	}

	return view, nil
}

func checkHeaderShape(blk *wire.Block, ctx *BlockValidationContext) error {
	h := &blk.Header
	if h.Height != ctx.ParentHeader.Height+1 {
		return blockRuleErr("bad-height", "header height does not follow its parent")
	}
	if h.PrevBlockHash != ctx.ParentHash {
		return blockRuleErr("bad-prev-hash", "header's previous block hash does not match the parent")
	}
	if h.Timestamp <= ctx.ParentHeader.Timestamp {
		return blockRuleErr("bad-timestamp", "header timestamp does not advance past its parent")
	}
	maxDrift := ctx.Now + uint64(ctx.Params.MaxClockDrift)
	if h.Timestamp > maxDrift {
		return blockRuleErr("timestamp-too-new", "header timestamp is too far ahead of the validator's clock")
	}
	return nil
}

func checkProofOfWork(blk *wire.Block) error {
	pad := standalone.AcquireScratchpad()
	defer pad.Release()
	digest := standalone.OxideHash(blk.Header.Bytes(), pad)
	if !standalone.MeetsTarget(digest, blk.Header.DifficultyTarget) {
		return blockRuleErr("bad-pow", "block's OxideHash digest does not meet its difficulty target")
	}
	return nil
}

// checkVoterSet verifies spec.md §4.7 point 6: the block carries exactly
// VotersPerBlock votes, whose ticket IDs match the DPRF selection over the
// live ticket set, each validly signed over the parent block hash, with at
// least MinValidVotes satisfying both conditions.
func checkVoterSet(blk *wire.Block, ctx *BlockValidationContext) error {
	if len(blk.TicketVotes) != ctx.Params.VotersPerBlock {
		return blockRuleErr("bad-vote-count", "block does not carry exactly VOTERS_PER_BLOCK votes")
	}

	seed := VoterSeed(ctx.ParentHash)
	selected := SelectVoters(ctx.LiveTickets, seed, ctx.Params.VotersPerBlock)
	expected := make(map[chainhash.Hash]*Ticket, len(selected))
	for _, t := range selected {
		expected[t.ID] = t
	}

	valid := 0
	seen := make(map[chainhash.Hash]bool, len(blk.TicketVotes))
	for i := range blk.TicketVotes {
		v := &blk.TicketVotes[i]
		if seen[v.TicketID] {
			return blockRuleErr("duplicate-vote", "block carries more than one vote from the same ticket")
		}
		seen[v.TicketID] = true

		ticket, ok := expected[v.TicketID]
		if !ok {
			return blockRuleErr("unselected-voter", "block carries a vote from a ticket the DPRF did not select")
		}
		if v.BlockHash != ctx.ParentHash {
			return blockRuleErr("bad-vote-target", "vote does not target the parent block")
		}
		if ctx.Verifier.Verify(ticket.OwnerPubkey[:], v.SigMessage(), v.Signature[:]) {
			valid++
		}
	}
	if valid < ctx.Params.MinValidVotes {
		return blockRuleErr("insufficient-valid-votes", "block does not carry MIN_VALID_VOTES validly signed votes")
	}
	return nil
}

// applyAndSumFees runs CheckTransaction over every non-coinbase transaction
// in the block against view, returning the total fees collected and the
// total signature operation count across all scripts. Every transaction's
// structural and conservation checks, and the UTXO view's updates, still
// run serially in block order (a transaction may spend an output an
// earlier transaction in the same block creates); only the expensive
// per-input script executions are deferred and run across the validator
// pool once the whole block's inputs have been resolved.
func applyAndSumFees(blk *wire.Block, ctx *BlockValidationContext, view *UTXOView) (int64, int, error) {
	var totalFees int64
	var sigOps int
	var scriptWork []txScriptWork

	for i, tx := range blk.Transactions {
		if i == 0 {
			if !tx.IsCoinbase() {
				return 0, 0, blockRuleErr("missing-coinbase", "block's first transaction is not a coinbase")
			}
			view.ApplyTransaction(tx, blk.Header.Height)
			continue
		}
		if tx.IsCoinbase() {
			return 0, 0, blockRuleErr("extra-coinbase", "block carries more than one coinbase transaction")
		}

		var totalIn int64
		for j := range tx.Inputs {
			entry, err := view.Entry(tx.Inputs[j].Prev)
			if err != nil {
				return 0, 0, err
			}
			if entry != nil {
				totalIn += entry.Output.Value
				sigOps += txscript.CountSigOps(entry.Output.LockScript)
			}
		}
		totalFees += totalIn - tx.SumOutputs()

		txCtx := &TxValidationContext{
			Height:             blk.Header.Height,
			Time:               blk.Header.Timestamp,
			View:               view,
			Params:             ctx.Params,
			Verifier:           ctx.Verifier,
			CurrentTicketPrice: ctx.CurrentTicketPrice,
			Tx:                 ctx.Tx,
		}
		prevScripts, err := checkTransactionExceptScripts(tx, txCtx)
		if err != nil {
			return 0, 0, err
		}
		if err := checkPayload(tx, txCtx); err != nil {
			return 0, 0, err
		}
		scriptWork = append(scriptWork, txScriptWork{
			tx:          tx,
			prevScripts: prevScripts,
			height:      txCtx.Height,
			time:        txCtx.Time,
			verifier:    txCtx.Verifier,
		})
		view.ApplyTransaction(tx, blk.Header.Height)
	}

	if err := verifyScriptsConcurrently(scriptWork); err != nil {
		return 0, 0, err
	}

	return totalFees, sigOps, nil
}

// checkCoinbaseReward verifies spec.md §4.7 point 7: the coinbase pays out
// no more than the block subsidy plus collected fees, split miner/voters/
// masternodes by the network's reward permille fields, each its own output
// in that order.
func checkCoinbaseReward(blk *wire.Block, ctx *BlockValidationContext, fees int64) error {
	subsidy := BlockSubsidy(ctx.Params, blk.Header.Height)
	total := subsidy + fees

	coinbase := blk.Transactions[0]
	if coinbase.SumOutputs() > total {
		return blockRuleErr("bad-coinbase-value", "coinbase pays more than the subsidy plus collected fees")
	}
	if len(coinbase.Outputs) < 3 {
		return blockRuleErr("bad-coinbase-split", "coinbase does not carry separate miner, voter, and masternode outputs")
	}

	minerShare, voterShare, masternodeShare := SplitCoinbaseReward(ctx.Params, total)
	if coinbase.Outputs[0].Value != minerShare {
		return blockRuleErr("bad-coinbase-split", "coinbase's miner output does not match MinerRewardPermille's share")
	}
	if coinbase.Outputs[1].Value != voterShare {
		return blockRuleErr("bad-coinbase-split", "coinbase's voter output does not match VoterRewardPermille's share")
	}
	if coinbase.Outputs[2].Value != masternodeShare {
		return blockRuleErr("bad-coinbase-split", "coinbase's masternode output does not match MasternodeRewardPermille's share")
	}
	return nil
}

// SplitCoinbaseReward divides total parts-per-thousand across the three
// reward classes spec.md §4.7 point 7 names (miner/voters/masternodes).
// Any remainder left by permille rounding goes to the miner, so the three
// shares always sum back to total exactly.
func SplitCoinbaseReward(params *chaincfg.Params, total int64) (miner, voter, masternode int64) {
	voter = total * params.VoterRewardPermille / 1000
	masternode = total * params.MasternodeRewardPermille / 1000
	miner = total - voter - masternode
	return miner, voter, masternode
}

// BlockSubsidy computes the block reward at height: InitialSubsidy halved
// every SubsidyReductionInterval blocks.
func BlockSubsidy(params *chaincfg.Params, height uint64) int64 {
	halvings := height / params.SubsidyReductionInterval
	if halvings >= 64 {
		return 0
	}
	return params.InitialSubsidy >> halvings
}

// checkStateRoot verifies spec.md §4.7 point 8: applying the block's
// transactions to the parent state yields the state root the header
// claims, computed from the committed buckets overlaid with view's
// pending spends and additions rather than by actually committing them.
func checkStateRoot(blk *wire.Block, ctx *BlockValidationContext, view *UTXOView) error {
	got := StateRootWithOverlay(ctx.Tx, view)
	if !bytes.Equal(got[:], blk.Header.StateRoot[:]) {
		return blockRuleErr("bad-state-root", "applying the block's transactions does not yield the claimed state root")
	}
	return nil
}
