// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"crypto/ed25519"
	"testing"

	"github.com/oxidecoin/oxided/chaincfg"
	"github.com/oxidecoin/oxided/chainhash"
	"github.com/oxidecoin/oxided/database"
	"github.com/oxidecoin/oxided/txscript"
	"github.com/oxidecoin/oxided/wire"
)

func newTestChain(t *testing.T) (*Chain, *Store, *chaincfg.Params) {
	t.Helper()
	db, err := database.Open(t.TempDir())
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(db)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	params := chaincfg.SimNetParams()
	chain, err := NewChain(store, params, txscript.DefaultVerifier{})
	if err != nil {
		t.Fatalf("opening chain: %v", err)
	}
	return chain, store, params
}

type testVoter struct {
	priv   ed25519.PrivateKey
	ticket *Ticket
}

// genTestVoters generates n ed25519 keypairs plus a live ticket for each,
// independent of any store: the same voter set can seed the live test
// chain and any scratch store used to pre-compute a header's state root.
func genTestVoters(t *testing.T, n int) []testVoter {
	t.Helper()
	voters := make([]testVoter, n)
	for i := 0; i < n; i++ {
		pub, priv, err := ed25519.GenerateKey(nil)
		if err != nil {
			t.Fatalf("generating voter key: %v", err)
		}
		op := wire.OutPoint{Hash: chainhash.HashB(chainhash.DomainTicketID, []byte{byte(i)}), Index: uint32(i)}
		ticket := &Ticket{
			ID:             TicketIDFromOutpoint(op),
			PurchaseHeight: 0,
			Price:          2 * 100_000_000,
			Status:         TicketLive,
		}
		copy(ticket.OwnerPubkey[:], pub)
		voters[i] = testVoter{priv: priv, ticket: ticket}
	}
	return voters
}

func insertTickets(t *testing.T, store *Store, voters []testVoter) {
	t.Helper()
	err := store.Update(func(tx database.Tx) error {
		for _, v := range voters {
			if err := PutTicket(tx, v.ticket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seeding tickets: %v", err)
	}
}

// signVotes has every voter sign a vote targeting parentHash, which is the
// only thing a TicketVote's signature covers.
func signVotes(t *testing.T, voters []testVoter, parentHash chainhash.Hash) []wire.TicketVote {
	t.Helper()
	votes := make([]wire.TicketVote, len(voters))
	for i, v := range voters {
		vote := wire.TicketVote{TicketID: v.ticket.ID, BlockHash: parentHash, Vote: wire.VoteYes}
		sig := ed25519.Sign(v.priv, vote.SigMessage())
		copy(vote.Signature[:], sig)
		votes[i] = vote
	}
	return votes
}

func coinbaseTx(params *chaincfg.Params, subsidy int64, extra byte) *wire.Transaction {
	miner, voter, masternode := SplitCoinbaseReward(params, subsidy)
	return &wire.Transaction{
		Kind:    wire.KindCoinbase,
		Version: 1,
		Inputs: []wire.TxInput{{
			Prev:     wire.OutPoint{Hash: chainhash.ZeroHash, Index: ^uint32(0)},
			Sequence: 0xffffffff,
		}},
		// extra distinguishes otherwise-identical coinbases on competing
		// branches at the same height, so they don't collide on txid.
		Outputs: []wire.TxOutput{
			{Value: miner, LockScript: []byte{0x51}, Memo: []byte{extra}},
			{Value: voter, LockScript: []byte{0x51}},
			{Value: masternode, LockScript: []byte{0x51}},
		},
	}
}

// computeBranchStateRoot computes the state root a block with newTxs would
// claim, given that it extends a branch whose own transaction history
// (since genesis) is priorBranchTxs, over the ticket set voters. It
// replays that history into a disposable scratch store rather than
// reading the live test chain's store, so a sibling branch's already-
// connected effects never leak into another branch's claimed root.
func computeBranchStateRoot(t *testing.T, params *chaincfg.Params, voters []testVoter, priorBranchTxs [][]*wire.Transaction, newTxs []*wire.Transaction, newHeight uint64) chainhash.Hash {
	t.Helper()
	db, err := database.Open(t.TempDir())
	if err != nil {
		t.Fatalf("opening scratch database: %v", err)
	}
	defer db.Close()
	store, err := NewStore(db)
	if err != nil {
		t.Fatalf("opening scratch store: %v", err)
	}
	if _, err := NewChain(store, params, txscript.DefaultVerifier{}); err != nil {
		t.Fatalf("bootstrapping scratch genesis: %v", err)
	}
	insertTickets(t, store, voters)

	for i, txs := range priorBranchTxs {
		height := uint64(i + 1)
		err := store.Update(func(tx database.Tx) error {
			view := NewUTXOView(tx)
			for _, wtx := range txs {
				view.ApplyTransaction(wtx, height)
			}
			return view.Flush()
		})
		if err != nil {
			t.Fatalf("replaying prior block %d into scratch store: %v", i, err)
		}
	}

	var root chainhash.Hash
	err = store.View(func(tx database.Tx) error {
		view := NewUTXOView(tx)
		for _, wtx := range newTxs {
			view.ApplyTransaction(wtx, newHeight)
		}
		root = StateRootWithOverlay(tx, view)
		return nil
	})
	if err != nil {
		t.Fatalf("computing scratch state root: %v", err)
	}
	return root
}

// buildBlock assembles and fully seals (votes, merkle root, state root,
// a nonce meeting the difficulty target) a
// block extending parentHash at parentHeader, on a branch whose prior
// transaction history is priorBranchTxs (nil if parentHeader is genesis).
func buildBlock(t *testing.T, params *chaincfg.Params, voters []testVoter, parentHeader *wire.BlockHeader, parentHash chainhash.Hash, priorBranchTxs [][]*wire.Transaction, extra byte, timestampOffset uint64) *wire.Block {
	t.Helper()
	height := parentHeader.Height + 1
	txs := []*wire.Transaction{coinbaseTx(params, BlockSubsidy(params, height), extra)}
	votes := signVotes(t, voters, parentHash)

	blk := &wire.Block{
		Header: wire.BlockHeader{
			Version:          1,
			Height:           height,
			PrevBlockHash:    parentHash,
			Timestamp:        parentHeader.Timestamp + timestampOffset,
			DifficultyTarget: params.PowLimitBits,
		},
		TicketVotes:  votes,
		Transactions: txs,
	}
	blk.Header.MerkleRoot = blk.ComputeMerkleRoot()
	blk.Header.StateRoot = computeBranchStateRoot(t, params, voters, priorBranchTxs, txs, height)
	for checkProofOfWork(blk) != nil {
		blk.Header.Nonce++
	}
	return blk
}

func TestNewChainBootstrapsGenesis(t *testing.T) {
	chain, _, params := newTestChain(t)
	hash, height := chain.BestTip()
	if height != 0 {
		t.Fatalf("genesis height = %d, want 0", height)
	}
	if hash != params.GenesisHash {
		t.Fatalf("genesis hash = %s, want %s", hash, params.GenesisHash)
	}
}

func TestAcceptBlockExtendsTip(t *testing.T) {
	chain, store, params := newTestChain(t)
	voters := genTestVoters(t, params.VotersPerBlock)
	insertTickets(t, store, voters)

	blk := buildBlock(t, params, voters, &params.GenesisBlock.Header, params.GenesisHash, nil, 0x01, 1)

	res, err := chain.AcceptBlock(blk)
	if err != nil {
		t.Fatalf("AcceptBlock: %v", err)
	}
	if !res.Connected || res.Reorg {
		t.Fatalf("res = %+v, want a direct connect", res)
	}
	if res.NewHeight != 1 {
		t.Fatalf("NewHeight = %d, want 1", res.NewHeight)
	}
	gotHash, gotHeight := chain.BestTip()
	if gotHash != blk.BlockHash() || gotHeight != 1 {
		t.Fatalf("BestTip = (%s, %d), want (%s, 1)", gotHash, gotHeight, blk.BlockHash())
	}
}

func TestAcceptBlockRejectsDuplicate(t *testing.T) {
	chain, store, params := newTestChain(t)
	voters := genTestVoters(t, params.VotersPerBlock)
	insertTickets(t, store, voters)
	blk := buildBlock(t, params, voters, &params.GenesisBlock.Header, params.GenesisHash, nil, 0x01, 1)

	if _, err := chain.AcceptBlock(blk); err != nil {
		t.Fatalf("first AcceptBlock: %v", err)
	}
	if _, err := chain.AcceptBlock(blk); err == nil {
		t.Fatal("second AcceptBlock of the same block succeeded, want duplicate-block error")
	}
}

// TestAcceptBlockReorgsToMoreWork builds a 2-deep branch off genesis after
// a 1-deep branch is already the tip: since both branches use the same
// difficulty target, the 2-deep branch has strictly more cumulative work
// regardless of either branch's actual digest, so the chain must reorg to
// it.
func TestAcceptBlockReorgsToMoreWork(t *testing.T) {
	chain, store, params := newTestChain(t)
	voters := genTestVoters(t, params.VotersPerBlock)
	insertTickets(t, store, voters)

	a1 := buildBlock(t, params, voters, &params.GenesisBlock.Header, params.GenesisHash, nil, 0xA1, 1)
	if _, err := chain.AcceptBlock(a1); err != nil {
		t.Fatalf("accepting a1: %v", err)
	}
	if hash, height := chain.BestTip(); hash != a1.BlockHash() || height != 1 {
		t.Fatalf("tip after a1 = (%s, %d), want (%s, 1)", hash, height, a1.BlockHash())
	}

	b1 := buildBlock(t, params, voters, &params.GenesisBlock.Header, params.GenesisHash, nil, 0xB1, 2)
	res, err := chain.AcceptBlock(b1)
	if err != nil {
		t.Fatalf("accepting b1: %v", err)
	}
	if res.Connected {
		t.Fatal("b1 connected despite having no more work than the active tip")
	}
	if hash, _ := chain.BestTip(); hash != a1.BlockHash() {
		t.Fatalf("tip moved to b1 before it had more cumulative work")
	}

	b1Hash := b1.BlockHash()
	b2 := buildBlock(t, params, voters, &b1.Header, b1Hash, [][]*wire.Transaction{b1.Transactions}, 0xB2, 1)
	res, err = chain.AcceptBlock(b2)
	if err != nil {
		t.Fatalf("accepting b2: %v", err)
	}
	if !res.Connected || !res.Reorg {
		t.Fatalf("res = %+v, want a reorg", res)
	}
	if len(res.DisconnectedBlocks) != 1 || res.DisconnectedBlocks[0] != a1.BlockHash() {
		t.Fatalf("DisconnectedBlocks = %v, want [a1]", res.DisconnectedBlocks)
	}
	if len(res.ConnectedBlocks) != 2 {
		t.Fatalf("ConnectedBlocks = %v, want 2 entries", res.ConnectedBlocks)
	}
	gotHash, gotHeight := chain.BestTip()
	if gotHash != b2.BlockHash() || gotHeight != 2 {
		t.Fatalf("BestTip after reorg = (%s, %d), want (%s, 2)", gotHash, gotHeight, b2.BlockHash())
	}
}

// TestCommonAncestorAndChainBetween exercises the pure fork-choice helpers
// directly over a manufactured headerNode tree, independent of the store.
func TestCommonAncestorAndChainBetween(t *testing.T) {
	root := &headerNode{hash: chainhash.HashB(chainhash.DomainBlockHeader, []byte("root")), header: &wire.BlockHeader{Height: 0}}
	mid := &headerNode{hash: chainhash.HashB(chainhash.DomainBlockHeader, []byte("mid")), header: &wire.BlockHeader{Height: 1}, parent: root}
	leftTip := &headerNode{hash: chainhash.HashB(chainhash.DomainBlockHeader, []byte("left")), header: &wire.BlockHeader{Height: 2}, parent: mid}
	rightA := &headerNode{hash: chainhash.HashB(chainhash.DomainBlockHeader, []byte("rightA")), header: &wire.BlockHeader{Height: 2}, parent: mid}
	rightTip := &headerNode{hash: chainhash.HashB(chainhash.DomainBlockHeader, []byte("rightB")), header: &wire.BlockHeader{Height: 3}, parent: rightA}

	anc := commonAncestor(leftTip, rightTip)
	if anc != mid {
		t.Fatalf("commonAncestor = %v, want mid", anc.hash)
	}

	chain := chainBetween(mid, rightTip)
	if len(chain) != 2 || chain[0] != rightA || chain[1] != rightTip {
		t.Fatalf("chainBetween(mid, rightTip) = %v, want [rightA, rightTip]", chain)
	}
}

func TestUpdateFinality(t *testing.T) {
	params := chaincfg.SimNetParams()
	root := &headerNode{hash: chainhash.HashB(chainhash.DomainBlockHeader, []byte("h0")), header: &wire.BlockHeader{Height: 0}}
	n1 := &headerNode{hash: chainhash.HashB(chainhash.DomainBlockHeader, []byte("h1")), header: &wire.BlockHeader{Height: 1}, parent: root}
	n2 := &headerNode{hash: chainhash.HashB(chainhash.DomainBlockHeader, []byte("h2")), header: &wire.BlockHeader{Height: 2}, parent: n1}

	c := &Chain{params: params, tip: n2}
	c.updateFinality()
	if c.finalizedHeight != n2.header.Height-params.PosFinalityDepth {
		t.Fatalf("finalizedHeight = %d, want %d", c.finalizedHeight, n2.header.Height-params.PosFinalityDepth)
	}
	if c.finalizedHash != n1.hash {
		t.Fatalf("finalizedHash = %s, want n1's hash", c.finalizedHash)
	}
}

// TestReorgRejectsFinalityViolation exercises reorganizeTo's finality guard
// directly: its check runs before any store access, so a Chain with no
// backing store can still be driven through it.
func TestReorgRejectsFinalityViolation(t *testing.T) {
	params := chaincfg.SimNetParams()
	root := &headerNode{hash: chainhash.HashB(chainhash.DomainBlockHeader, []byte("h0")), header: &wire.BlockHeader{Height: 0}}
	n1 := &headerNode{hash: chainhash.HashB(chainhash.DomainBlockHeader, []byte("h1")), header: &wire.BlockHeader{Height: 1}, parent: root}
	n2 := &headerNode{hash: chainhash.HashB(chainhash.DomainBlockHeader, []byte("h2")), header: &wire.BlockHeader{Height: 2}, parent: n1}
	fork := &headerNode{hash: chainhash.HashB(chainhash.DomainBlockHeader, []byte("fork")), header: &wire.BlockHeader{Height: 1}, parent: root}

	c := &Chain{params: params, tip: n2, finalizedHeight: 1, finalizedHash: n1.hash}
	if _, err := c.reorganizeTo(fork); err == nil {
		t.Fatal("reorganizeTo succeeded past a finalized ancestor, want finality-violation error")
	}
}

func TestReorgRejectsTooDeep(t *testing.T) {
	params := chaincfg.SimNetParams()
	root := &headerNode{hash: chainhash.HashB(chainhash.DomainBlockHeader, []byte("h0")), header: &wire.BlockHeader{Height: 0}}
	parent := root
	for i := uint64(1); i <= params.MaxReorgDepth+1; i++ {
		parent = &headerNode{hash: chainhash.HashB(chainhash.DomainBlockHeader, []byte{byte(i), byte(i >> 8)}), header: &wire.BlockHeader{Height: i}, parent: parent}
	}
	fork := &headerNode{hash: chainhash.HashB(chainhash.DomainBlockHeader, []byte("fork")), header: &wire.BlockHeader{Height: 1}, parent: root}

	c := &Chain{params: params, tip: parent}
	if _, err := c.reorganizeTo(fork); err == nil {
		t.Fatal("reorganizeTo succeeded past the max reorg depth, want reorg-too-deep error")
	}
}
