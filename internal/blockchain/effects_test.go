// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"testing"

	"github.com/oxidecoin/oxided/chaincfg"
	"github.com/oxidecoin/oxided/chainhash"
	"github.com/oxidecoin/oxided/database"
	"github.com/oxidecoin/oxided/wire"
)

func TestApplyTransactionEffectsTicketPurchase(t *testing.T) {
	store := openTestStore(t)
	params := chaincfg.SimNetParams()

	wtx := &wire.Transaction{
		Kind:    wire.KindTicketPurchase,
		Version: 1,
		Outputs: []wire.TxOutput{{Value: params.InitialTicketPrice, LockScript: []byte{0x51}}},
		TicketPurchase: &wire.TicketPurchasePayload{
			TicketOutputIndex: 0,
			OwnerPubkey:       [32]byte{1, 2, 3},
		},
	}
	op := wire.OutPoint{Hash: wtx.TxID(), Index: 0}
	wantID := TicketIDFromOutpoint(op)

	err := store.Update(func(tx database.Tx) error {
		return ApplyTransactionEffects(tx, wtx, 50, params)
	})
	if err != nil {
		t.Fatalf("ApplyTransactionEffects: %v", err)
	}

	err = store.View(func(tx database.Tx) error {
		ticket, err := GetTicket(tx, wantID)
		if err != nil {
			return err
		}
		if ticket == nil {
			t.Fatal("ticket was not recorded")
		}
		if ticket.Status != TicketPending {
			t.Fatalf("Status = %v, want TicketPending", ticket.Status)
		}
		if ticket.PurchaseHeight != 50 {
			t.Fatalf("PurchaseHeight = %d, want 50", ticket.PurchaseHeight)
		}
		if ticket.Price != params.InitialTicketPrice {
			t.Fatalf("Price = %d, want %d", ticket.Price, params.InitialTicketPrice)
		}
		if ticket.OwnerPubkey != ([32]byte{1, 2, 3}) {
			t.Fatalf("OwnerPubkey = %v, want {1,2,3,...}", ticket.OwnerPubkey)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestApplyTransactionEffectsTicketRedemption(t *testing.T) {
	store := openTestStore(t)
	params := chaincfg.SimNetParams()

	purchaseOp := wire.OutPoint{Hash: chainhash.HashB(chainhash.DomainTx, []byte("purchase")), Index: 2}
	id := TicketIDFromOutpoint(purchaseOp)

	err := store.Update(func(tx database.Tx) error {
		return PutTicket(tx, &Ticket{ID: id, Status: TicketLive, Price: 1000})
	})
	if err != nil {
		t.Fatal(err)
	}

	wtx := &wire.Transaction{
		Kind:    wire.KindTicketRedemption,
		Version: 1,
		Inputs:  []wire.TxInput{{Prev: purchaseOp}},
	}
	err = store.Update(func(tx database.Tx) error {
		return ApplyTransactionEffects(tx, wtx, 100, params)
	})
	if err != nil {
		t.Fatalf("ApplyTransactionEffects: %v", err)
	}

	err = store.View(func(tx database.Tx) error {
		ticket, err := GetTicket(tx, id)
		if err != nil {
			return err
		}
		if ticket.Status != TicketSpent {
			t.Fatalf("Status = %v, want TicketSpent", ticket.Status)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestApplyTransactionEffectsTicketRedemptionUnknownIsNoOp(t *testing.T) {
	store := openTestStore(t)
	params := chaincfg.SimNetParams()

	wtx := &wire.Transaction{
		Kind:   wire.KindTicketRedemption,
		Inputs: []wire.TxInput{{Prev: wire.OutPoint{Hash: chainhash.HashB(chainhash.DomainTx, []byte("ghost")), Index: 0}}},
	}
	err := store.Update(func(tx database.Tx) error {
		return ApplyTransactionEffects(tx, wtx, 1, params)
	})
	if err != nil {
		t.Fatalf("redeeming an unknown ticket should be a no-op, got error: %v", err)
	}
}

func TestApplyTransactionEffectsMasternodeRegisterAndRetire(t *testing.T) {
	store := openTestStore(t)
	params := chaincfg.SimNetParams()

	register := &wire.Transaction{
		Kind:    wire.KindMasternodeRegister,
		Version: 1,
		Outputs: []wire.TxOutput{{Value: params.MasternodeCollateral, LockScript: []byte{0x51}}},
		MasternodeRegister: &wire.MasternodeRegisterPayload{
			CollateralOutputIndex: 0,
			OperatorPubkey:        [32]byte{9, 9, 9},
		},
	}
	collateralOp := wire.OutPoint{Hash: register.TxID(), Index: 0}
	id := MasternodeIDFromOutpoint(collateralOp)

	err := store.Update(func(tx database.Tx) error {
		return ApplyTransactionEffects(tx, register, 10, params)
	})
	if err != nil {
		t.Fatalf("registering masternode: %v", err)
	}

	err = store.View(func(tx database.Tx) error {
		m, err := GetMasternode(tx, id)
		if err != nil {
			return err
		}
		if m == nil || m.Status != MasternodeActive {
			t.Fatalf("masternode = %+v, want active", m)
		}
		if m.CollateralOutput != collateralOp {
			t.Fatalf("CollateralOutput = %v, want %v", m.CollateralOutput, collateralOp)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	spend := &wire.Transaction{
		Kind:                      wire.KindMasternodeCollateralSpend,
		Version:                   1,
		MasternodeCollateralSpend: &wire.MasternodeCollateralSpendPayload{MasternodeID: id},
	}
	err = store.Update(func(tx database.Tx) error {
		return ApplyTransactionEffects(tx, spend, 20, params)
	})
	if err != nil {
		t.Fatalf("spending collateral: %v", err)
	}

	err = store.View(func(tx database.Tx) error {
		m, err := GetMasternode(tx, id)
		if err != nil {
			return err
		}
		if m != nil {
			t.Fatalf("masternode entry still present after collateral spend: %+v", m)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestApplyTransactionEffectsGovernanceProposalAndVote(t *testing.T) {
	store := openTestStore(t)
	params := chaincfg.SimNetParams()

	proposalID := chainhash.HashB(chainhash.DomainTx, []byte("proposal-1"))
	proposeTx := &wire.Transaction{
		Kind: wire.KindGovernanceProposal,
		GovernanceProposal: &wire.GovernanceProposalPayload{
			ProposalID:           proposalID,
			Description:          []byte("raise the block size"),
			VotingDeadlineHeight: 1000,
		},
	}
	err := store.Update(func(tx database.Tx) error {
		return ApplyTransactionEffects(tx, proposeTx, 5, params)
	})
	if err != nil {
		t.Fatalf("applying proposal: %v", err)
	}

	voteTx := &wire.Transaction{
		Kind: wire.KindGovernanceVote,
		GovernanceVote: &wire.GovernanceVotePayload{
			ProposalID:  proposalID,
			VoterPubkey: [32]byte{7},
			Approve:     true,
		},
	}
	err = store.Update(func(tx database.Tx) error {
		return ApplyTransactionEffects(tx, voteTx, 6, params)
	})
	if err != nil {
		t.Fatalf("applying vote: %v", err)
	}

	err = store.View(func(tx database.Tx) error {
		proposal, err := GetProposal(tx, proposalID)
		if err != nil {
			return err
		}
		if proposal == nil {
			t.Fatal("proposal was not recorded")
		}
		if proposal.YesVotes != 1 || proposal.NoVotes != 0 {
			t.Fatalf("tally = %+v, want 1 yes / 0 no", proposal)
		}
		if !HasVoted(tx, proposalID, [32]byte{7}) {
			t.Fatal("HasVoted = false, want true after a recorded vote")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestApplyTransactionEffectsVoteOnVanishedProposalIsNoOp(t *testing.T) {
	store := openTestStore(t)
	params := chaincfg.SimNetParams()

	voteTx := &wire.Transaction{
		Kind: wire.KindGovernanceVote,
		GovernanceVote: &wire.GovernanceVotePayload{
			ProposalID:  chainhash.HashB(chainhash.DomainTx, []byte("ghost-proposal")),
			VoterPubkey: [32]byte{1},
			Approve:     true,
		},
	}
	err := store.Update(func(tx database.Tx) error {
		return ApplyTransactionEffects(tx, voteTx, 1, params)
	})
	if err != nil {
		t.Fatalf("voting on a vanished proposal should be a no-op, got error: %v", err)
	}
}

func TestAdvanceTicketLifecyclePendingToLive(t *testing.T) {
	store := openTestStore(t)
	params := chaincfg.SimNetParams()
	id := chainhash.HashB(chainhash.DomainTicketID, []byte("pending-ticket"))

	err := store.Update(func(tx database.Tx) error {
		return PutTicket(tx, &Ticket{ID: id, Status: TicketPending, PurchaseHeight: 10, Price: 1000})
	})
	if err != nil {
		t.Fatal(err)
	}

	// Not yet finalized: still pending one block short of the threshold.
	threshold := 10 + params.PosFinalityDepth
	err = store.Update(func(tx database.Tx) error {
		return AdvanceTicketLifecycle(tx, threshold-1, params)
	})
	if err != nil {
		t.Fatal(err)
	}
	err = store.View(func(tx database.Tx) error {
		ticket, err := GetTicket(tx, id)
		if err != nil {
			return err
		}
		if ticket.Status != TicketPending {
			t.Fatalf("Status before threshold = %v, want still TicketPending", ticket.Status)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = store.Update(func(tx database.Tx) error {
		return AdvanceTicketLifecycle(tx, threshold, params)
	})
	if err != nil {
		t.Fatal(err)
	}
	err = store.View(func(tx database.Tx) error {
		ticket, err := GetTicket(tx, id)
		if err != nil {
			return err
		}
		if ticket.Status != TicketLive {
			t.Fatalf("Status at threshold = %v, want TicketLive", ticket.Status)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestAdvanceTicketLifecycleLiveToExpired(t *testing.T) {
	store := openTestStore(t)
	params := chaincfg.SimNetParams()
	id := chainhash.HashB(chainhash.DomainTicketID, []byte("live-ticket"))

	err := store.Update(func(tx database.Tx) error {
		return PutTicket(tx, &Ticket{ID: id, Status: TicketLive, PurchaseHeight: 0, Price: 1000})
	})
	if err != nil {
		t.Fatal(err)
	}

	err = store.Update(func(tx database.Tx) error {
		return AdvanceTicketLifecycle(tx, params.TicketExpiry, params)
	})
	if err != nil {
		t.Fatal(err)
	}

	err = store.View(func(tx database.Tx) error {
		ticket, err := GetTicket(tx, id)
		if err != nil {
			return err
		}
		if ticket.Status != TicketExpired {
			t.Fatalf("Status at expiry = %v, want TicketExpired", ticket.Status)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
