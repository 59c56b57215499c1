// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"crypto/ed25519"
	"testing"

	"github.com/oxidecoin/oxided/blockchain/standalone"
	"github.com/oxidecoin/oxided/chaincfg"
	"github.com/oxidecoin/oxided/chainhash"
	"github.com/oxidecoin/oxided/database"
	"github.com/oxidecoin/oxided/internal/blockchain"
	"github.com/oxidecoin/oxided/internal/fees"
	"github.com/oxidecoin/oxided/internal/mining"
	"github.com/oxidecoin/oxided/txscript"
	"github.com/oxidecoin/oxided/wire"
)

type testVoter struct {
	priv   ed25519.PrivateKey
	ticket *blockchain.Ticket
}

func genVoters(t *testing.T, n int) []testVoter {
	t.Helper()
	voters := make([]testVoter, n)
	for i := 0; i < n; i++ {
		pub, priv, err := ed25519.GenerateKey(nil)
		if err != nil {
			t.Fatalf("generating voter key: %v", err)
		}
		op := wire.OutPoint{Hash: chainhash.HashB(chainhash.DomainTicketID, []byte{byte(i)}), Index: uint32(i)}
		ticket := &blockchain.Ticket{
			ID:             blockchain.TicketIDFromOutpoint(op),
			PurchaseHeight: 0,
			Price:          2 * 100_000_000,
			Status:         blockchain.TicketLive,
		}
		copy(ticket.OwnerPubkey[:], pub)
		voters[i] = testVoter{priv: priv, ticket: ticket}
	}
	return voters
}

func signVotes(voters []testVoter, parentHash chainhash.Hash) []wire.TicketVote {
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
	miner, voter, masternode := blockchain.SplitCoinbaseReward(params, subsidy)
	return &wire.Transaction{
		Kind:    wire.KindCoinbase,
		Version: 1,
		Inputs: []wire.TxInput{{
			Prev:     wire.OutPoint{Hash: chainhash.ZeroHash, Index: ^uint32(0)},
			Sequence: 0xffffffff,
		}},
		Outputs: []wire.TxOutput{
			{Value: miner, LockScript: []byte{0x51}, Memo: []byte{extra}},
			{Value: voter, LockScript: []byte{0x51}},
			{Value: masternode, LockScript: []byte{0x51}},
		},
	}
}

// testChain is a linear SimNet chain mined far enough past CoinbaseMaturity
// for genesis's coinbase to be spendable, with a pool wired over it.
type testChain struct {
	chain  *blockchain.Chain
	store  *blockchain.Store
	params *chaincfg.Params
	voters []testVoter
}

func newTestChain(t *testing.T, height int) *testChain {
	t.Helper()
	db, err := database.Open(t.TempDir())
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := blockchain.NewStore(db)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	params := chaincfg.SimNetParams()
	chain, err := blockchain.NewChain(store, params, txscript.DefaultVerifier{})
	if err != nil {
		t.Fatalf("opening chain: %v", err)
	}

	voters := genVoters(t, params.VotersPerBlock)
	err = store.Update(func(tx database.Tx) error {
		for _, v := range voters {
			if err := blockchain.PutTicket(tx, v.ticket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seeding tickets: %v", err)
	}

	tc := &testChain{chain: chain, store: store, params: params, voters: voters}
	parentHeader := &params.GenesisBlock.Header
	parentHash := params.GenesisHash
	for i := 0; i < height; i++ {
		blk := tc.mineBlock(t, parentHeader, parentHash, byte(i+1))
		parentHeader, parentHash = &blk.Header, blk.BlockHash()
	}
	return tc
}

// mineBlock extends parentHash with a coinbase-only block. Since the
// chain is mined linearly (never forked), the live store's currently
// committed state is exactly the right baseline for the next block's
// claimed state root.
func (tc *testChain) mineBlock(t *testing.T, parentHeader *wire.BlockHeader, parentHash chainhash.Hash, extra byte) *wire.Block {
	t.Helper()
	height := parentHeader.Height + 1
	txs := []*wire.Transaction{coinbaseTx(tc.params, blockchain.BlockSubsidy(tc.params, height), extra)}
	votes := signVotes(tc.voters, parentHash)

	blk := &wire.Block{
		Header: wire.BlockHeader{
			Version:          1,
			Height:           height,
			PrevBlockHash:    parentHash,
			Timestamp:        parentHeader.Timestamp + 1,
			DifficultyTarget: tc.params.PowLimitBits,
		},
		TicketVotes:  votes,
		Transactions: txs,
	}
	blk.Header.MerkleRoot = blk.ComputeMerkleRoot()

	err := tc.store.View(func(tx database.Tx) error {
		view := blockchain.NewUTXOView(tx)
		for _, wtx := range txs {
			view.ApplyTransaction(wtx, height)
		}
		blk.Header.StateRoot = blockchain.StateRootWithOverlay(tx, view)
		return nil
	})
	if err != nil {
		t.Fatalf("computing state root: %v", err)
	}

	pad := standalone.AcquireScratchpad()
	for !standalone.MeetsTarget(standalone.OxideHash(blk.Header.Bytes(), pad), blk.Header.DifficultyTarget) {
		blk.Header.Nonce++
	}
	pad.Release()

	if _, err := tc.chain.AcceptBlock(blk); err != nil {
		t.Fatalf("mining block at height %d: %v", height, err)
	}
	return blk
}

func newTestPool(t *testing.T, tc *testChain) *Pool {
	t.Helper()
	return NewPool(Config{
		Chain:         tc.chain,
		FeeEstimator:  fees.NewEstimator(tc.params),
		Verifier:      txscript.DefaultVerifier{},
		TieBreakKey0:  1,
		TieBreakKey1:  2,
	})
}

// spendTx spends prev (an anyone-can-spend output) paying fee atoms to
// the chain, with extra distinguishing otherwise-identical spends of the
// same input so competing versions don't collide on txid.
func spendTx(prev wire.OutPoint, value, fee int64, extra byte) *wire.Transaction {
	return &wire.Transaction{
		Kind:    wire.KindStandard,
		Version: 1,
		Inputs: []wire.TxInput{{
			Prev:     prev,
			Sequence: 0xffffffff,
		}},
		Outputs: []wire.TxOutput{{Value: value - fee, LockScript: []byte{0x51}, Memo: []byte{extra}}},
	}
}

func genesisCoinbaseOutpoint(tc *testChain) wire.OutPoint {
	return wire.OutPoint{Hash: tc.params.GenesisBlock.Transactions[0].TxID(), Index: 0}
}

func TestAcceptTransactionAdmitsMaturedSpend(t *testing.T) {
	tc := newTestChain(t, int(chaincfg.SimNetParams().CoinbaseMaturity))
	pool := newTestPool(t, tc)

	tx := spendTx(genesisCoinbaseOutpoint(tc), tc.params.GenesisBlock.Transactions[0].Outputs[0].Value, 5000, 1)
	if err := pool.AcceptTransaction(tx); err != nil {
		t.Fatalf("AcceptTransaction: %v", err)
	}
	if pool.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", pool.Size())
	}
	if !pool.Has(tx.TxID()) {
		t.Fatal("pool does not have the accepted transaction")
	}
}

func TestAcceptTransactionRejectsImmatureSpend(t *testing.T) {
	tc := newTestChain(t, 1)
	pool := newTestPool(t, tc)

	tx := spendTx(genesisCoinbaseOutpoint(tc), tc.params.GenesisBlock.Transactions[0].Outputs[0].Value, 5000, 1)
	if err := pool.AcceptTransaction(tx); err == nil {
		t.Fatal("AcceptTransaction admitted a spend of an immature coinbase")
	}
}

func TestAcceptTransactionRejectsDuplicate(t *testing.T) {
	tc := newTestChain(t, int(chaincfg.SimNetParams().CoinbaseMaturity))
	pool := newTestPool(t, tc)

	tx := spendTx(genesisCoinbaseOutpoint(tc), tc.params.GenesisBlock.Transactions[0].Outputs[0].Value, 5000, 1)
	if err := pool.AcceptTransaction(tx); err != nil {
		t.Fatalf("first AcceptTransaction: %v", err)
	}
	if err := pool.AcceptTransaction(tx); err == nil {
		t.Fatal("second AcceptTransaction of the same transaction succeeded")
	}
}

func TestAcceptTransactionReplaceByFee(t *testing.T) {
	tc := newTestChain(t, int(chaincfg.SimNetParams().CoinbaseMaturity))
	pool := newTestPool(t, tc)
	op := genesisCoinbaseOutpoint(tc)
	value := tc.params.GenesisBlock.Transactions[0].Outputs[0].Value

	low := spendTx(op, value, 2000, 1)
	if err := pool.AcceptTransaction(low); err != nil {
		t.Fatalf("accepting low-fee tx: %v", err)
	}

	// Same fee rate (not a strict improvement): must be rejected.
	same := spendTx(op, value, 2000, 2)
	if err := pool.AcceptTransaction(same); err == nil {
		t.Fatal("accepted a same-fee-rate conflict, want rbf rejection")
	}

	high := spendTx(op, value, 5000, 3)
	if err := pool.AcceptTransaction(high); err != nil {
		t.Fatalf("accepting replacement tx: %v", err)
	}
	if pool.Has(low.TxID()) {
		t.Fatal("replaced transaction is still in the pool")
	}
	if !pool.Has(high.TxID()) {
		t.Fatal("replacement transaction was not admitted")
	}
	if pool.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", pool.Size())
	}
}

func TestRemoveConfirmedDropsMinedAndConflicting(t *testing.T) {
	tc := newTestChain(t, int(chaincfg.SimNetParams().CoinbaseMaturity))
	pool := newTestPool(t, tc)
	op := genesisCoinbaseOutpoint(tc)
	value := tc.params.GenesisBlock.Transactions[0].Outputs[0].Value

	tx := spendTx(op, value, 5000, 1)
	if err := pool.AcceptTransaction(tx); err != nil {
		t.Fatalf("AcceptTransaction: %v", err)
	}

	pool.RemoveConfirmed([]*wire.Transaction{tx})
	if pool.Has(tx.TxID()) {
		t.Fatal("confirmed transaction is still in the pool")
	}

	// A held spend of an input that a confirmed transaction also spends is
	// dropped as well.
	conflicting := spendTx(op, value, 6000, 2)
	if err := pool.AcceptTransaction(conflicting); err != nil {
		t.Fatalf("AcceptTransaction of conflicting spend: %v", err)
	}
	pool.RemoveConfirmed([]*wire.Transaction{spendTx(op, value, 5500, 3)})
	if pool.Has(conflicting.TxID()) {
		t.Fatal("transaction conflicting with a confirmed one is still in the pool")
	}
}

func TestBuildTemplateIncludesHeldTransaction(t *testing.T) {
	tc := newTestChain(t, int(chaincfg.SimNetParams().CoinbaseMaturity))
	pool := newTestPool(t, tc)

	// Genesis has a single coinbase output, so the pool holds one spend of
	// it; the template must carry that transaction and its fee.
	op1 := genesisCoinbaseOutpoint(tc)
	lowFee := spendTx(op1, tc.params.GenesisBlock.Transactions[0].Outputs[0].Value, 1000, 1)
	if err := pool.AcceptTransaction(lowFee); err != nil {
		t.Fatalf("accepting low fee tx: %v", err)
	}

	snap, err := tc.chain.TipSnapshot()
	if err != nil {
		t.Fatalf("TipSnapshot: %v", err)
	}
	allocator := mining.NewBlockSpaceAllocator(snap.MaxBlockSize, tc.params)
	tpl := pool.BuildTemplate(allocator)
	if len(tpl.Transactions) != 1 {
		t.Fatalf("BuildTemplate returned %d transactions, want 1", len(tpl.Transactions))
	}
	if tpl.TotalFees != 1000 {
		t.Fatalf("TotalFees = %d, want 1000", tpl.TotalFees)
	}
}
