// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"github.com/oxidecoin/oxided/chaincfg"
	"github.com/oxidecoin/oxided/database"
	"github.com/oxidecoin/oxided/wire"
)

// ApplyTransactionEffects mutates the ticket pool, masternode registry, and
// governance tallies for wtx's kind-specific payload. It runs once per
// transaction inside the same recording transaction ApplyBlock uses for
// the UTXO view's Flush, so a reorg's RevertBlock undoes these effects
// exactly as it undoes any other bucket write.
//
// UTXO effects (spend/create) are handled separately by UTXOView; this
// function only covers the non-UTXO state the tagged-variant payloads
// drive: a purchased ticket entering Pending, a redemption retiring one,
// a masternode's registration or retirement, a governance ballot, and a
// slashing transaction's burn/blacklist (delegated to ApplySlash).
func ApplyTransactionEffects(tx database.Tx, wtx *wire.Transaction, height uint64, params *chaincfg.Params) error {
	switch wtx.Kind {
	case wire.KindTicketPurchase:
		return applyTicketPurchase(tx, wtx, height)
	case wire.KindTicketRedemption:
		return applyTicketRedemption(tx, wtx)
	case wire.KindMasternodeRegister:
		return applyMasternodeRegister(tx, wtx, height)
	case wire.KindMasternodeCollateralSpend:
		return DeleteMasternode(tx, wtx.MasternodeCollateralSpend.MasternodeID)
	case wire.KindGovernanceProposal:
		return applyGovernanceProposal(tx, wtx)
	case wire.KindGovernanceVote:
		return applyGovernanceVote(tx, wtx)
	case wire.KindSlashNonParticipation:
		return ApplySlashNonParticipation(tx, wtx.SlashNonParticipation, height, params)
	case wire.KindSlashEquivocation:
		return ApplySlashEquivocation(tx, wtx.SlashEquivocation)
	default:
		return nil
	}
}

func applyTicketPurchase(tx database.Tx, wtx *wire.Transaction, height uint64) error {
	p := wtx.TicketPurchase
	txid := wtx.TxID()
	op := wire.OutPoint{Hash: txid, Index: p.TicketOutputIndex}
	t := &Ticket{
		ID:             TicketIDFromOutpoint(op),
		OwnerPubkey:    p.OwnerPubkey,
		PurchaseHeight: height,
		Price:          wtx.Outputs[p.TicketOutputIndex].Value,
		Status:         TicketPending,
	}
	return PutTicket(tx, t)
}

// applyTicketRedemption retires the ticket whose locked output the
// redemption's sole input spends: its id is derived from that outpoint the
// same way the purchase derived it (spec.md §3: "id: hash = (tx_id,
// vout)"). A redemption of a ticket this store never saw purchased (e.g.
// one inherited from a snapshot sync) is a no-op rather than an error.
func applyTicketRedemption(tx database.Tx, wtx *wire.Transaction) error {
	if len(wtx.Inputs) == 0 {
		return nil
	}
	id := TicketIDFromOutpoint(wtx.Inputs[0].Prev)
	t, err := GetTicket(tx, id)
	if err != nil || t == nil {
		return err
	}
	t.Status = TicketSpent
	return PutTicket(tx, t)
}

func applyMasternodeRegister(tx database.Tx, wtx *wire.Transaction, height uint64) error {
	p := wtx.MasternodeRegister
	txid := wtx.TxID()
	op := wire.OutPoint{Hash: txid, Index: p.CollateralOutputIndex}
	m := &MasternodeEntry{
		ID:               MasternodeIDFromOutpoint(op),
		OperatorPubkey:   p.OperatorPubkey,
		CollateralOutput: op,
		RegisterHeight:   height,
		Status:           MasternodeActive,
	}
	return PutMasternode(tx, m)
}

func applyGovernanceProposal(tx database.Tx, wtx *wire.Transaction) error {
	p := wtx.GovernanceProposal
	return PutProposal(tx, &Proposal{
		ID:                   p.ProposalID,
		Description:          p.Description,
		VotingDeadlineHeight: p.VotingDeadlineHeight,
		Status:               ProposalOpen,
	})
}

func applyGovernanceVote(tx database.Tx, wtx *wire.Transaction) error {
	p := wtx.GovernanceVote
	proposal, err := GetProposal(tx, p.ProposalID)
	if err != nil {
		return err
	}
	if proposal == nil {
		// The proposal vanished from the view the block validator checked
		// against (it should never have admitted this vote); apply is a
		// no-op rather than failing a block that already committed.
		return nil
	}
	return RecordVote(tx, proposal, p.VoterPubkey, p.Approve)
}

// AdvanceTicketLifecycle transitions every ticket whose state depends on
// the current height rather than on a specific transaction (spec.md §3's
// "Ownership & lifecycle"): Pending tickets confirmed POS_FINALITY_DEPTH
// blocks ago become Live, and Live tickets become Expired once
// TICKET_EXPIRY blocks have passed since their purchase height. It runs
// once per block, after all of the block's transactions
// have applied their own effects.
func AdvanceTicketLifecycle(tx database.Tx, height uint64, params *chaincfg.Params) error {
	bucket := tx.Metadata().Bucket([]byte(bucketTickets))
	if bucket == nil {
		return nil
	}
	var toUpdate []*Ticket
	err := bucket.ForEach(func(_, v []byte) error {
		t, err := decodeTicket(v)
		if err != nil {
			return err
		}
		switch {
		case t.Status == TicketPending && height >= t.PurchaseHeight+params.PosFinalityDepth:
			t.Status = TicketLive
			toUpdate = append(toUpdate, t)
		case t.Status == TicketLive && height >= t.PurchaseHeight+params.TicketExpiry:
			t.Status = TicketExpired
			toUpdate = append(toUpdate, t)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, t := range toUpdate {
		if err := PutTicket(tx, t); err != nil {
			return err
		}
	}
	return nil
}
