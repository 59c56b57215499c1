// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"bytes"
	"crypto/ed25519"
	"testing"

	"github.com/oxidecoin/oxided/blockchain/standalone"
	"github.com/oxidecoin/oxided/chaincfg"
	"github.com/oxidecoin/oxided/chainhash"
	"github.com/oxidecoin/oxided/database"
	"github.com/oxidecoin/oxided/internal/blockchain"
	"github.com/oxidecoin/oxided/internal/fees"
	"github.com/oxidecoin/oxided/txscript"
	"github.com/oxidecoin/oxided/wire"
)

type testVoter struct {
	priv   ed25519.PrivateKey
	ticket *blockchain.Ticket
}

// newTestCore opens a fresh SimNet Core with a live ticket pool large
// enough that SelectVoters always has more candidates than
// VotersPerBlock needs, so a single seeded set serves every block this
// test mines.
func newTestCore(t *testing.T) (*Core, []testVoter, *chaincfg.Params) {
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

	voters := make([]testVoter, params.VotersPerBlock)
	err = store.Update(func(tx database.Tx) error {
		for i := range voters {
			pub, priv, kerr := ed25519.GenerateKey(nil)
			if kerr != nil {
				return kerr
			}
			op := wire.OutPoint{Hash: chainhash.HashB(chainhash.DomainTicketID, []byte{byte(i)}), Index: uint32(i)}
			ticket := &blockchain.Ticket{ID: blockchain.TicketIDFromOutpoint(op), Status: blockchain.TicketLive, Price: 2 * 100_000_000}
			copy(ticket.OwnerPubkey[:], pub)
			voters[i] = testVoter{priv: priv, ticket: ticket}
			if err := blockchain.PutTicket(tx, ticket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seeding tickets: %v", err)
	}

	core, err := New(Config{
		Store:        store,
		Params:       params,
		Verifier:     txscript.DefaultVerifier{},
		FeeEstimator: fees.NewEstimator(params),
	})
	if err != nil {
		t.Fatalf("opening core: %v", err)
	}
	return core, voters, params
}

func signAllVotes(voters []testVoter, parentHash chainhash.Hash) []wire.TicketVote {
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

// mineRawBlock assembles and encodes a coinbase-only block extending
// parentHeader/parentHash, in the same shape Core.SubmitBlock expects to
// decode.
func mineRawBlock(t *testing.T, core *Core, params *chaincfg.Params, voters []testVoter, parentHeader *wire.BlockHeader, parentHash chainhash.Hash, extra byte) *wire.Block {
	t.Helper()
	height := parentHeader.Height + 1
	txs := []*wire.Transaction{coinbaseTx(params, blockchain.BlockSubsidy(params, height), extra)}
	votes := signAllVotes(voters, parentHash)

	blk := &wire.Block{
		Header: wire.BlockHeader{
			Version:          1,
			Height:           height,
			PrevBlockHash:    parentHash,
			Timestamp:        parentHeader.Timestamp + 1,
			DifficultyTarget: params.PowLimitBits,
		},
		TicketVotes:  votes,
		Transactions: txs,
	}
	blk.Header.MerkleRoot = blk.ComputeMerkleRoot()

	err := core.chain.Store().View(func(tx database.Tx) error {
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
	solveBlock(blk)
	return blk
}

// solveBlock searches blk's nonce until its OxideHash digest meets the
// header's difficulty target.
func solveBlock(blk *wire.Block) {
	pad := standalone.AcquireScratchpad()
	defer pad.Release()
	for !standalone.MeetsTarget(standalone.OxideHash(blk.Header.Bytes(), pad), blk.Header.DifficultyTarget) {
		blk.Header.Nonce++
	}
}

func encodeBlock(t *testing.T, blk *wire.Block) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := blk.Encode(&buf); err != nil {
		t.Fatalf("encoding block: %v", err)
	}
	return buf.Bytes()
}

func TestNewBootstrapsGenesis(t *testing.T) {
	core, _, params := newTestCore(t)
	hash, height := core.BestTip()
	if height != 0 {
		t.Fatalf("height = %d, want 0", height)
	}
	if hash != params.GenesisHash {
		t.Fatalf("hash = %v, want genesis hash %v", hash, params.GenesisHash)
	}
}

func TestSubmitBlockExtendsTipAndPublishesEvent(t *testing.T) {
	core, voters, params := newTestCore(t)
	sub := core.Subscribe()
	defer core.Unsubscribe(sub)

	parentHeader := &params.GenesisBlock.Header
	blk := mineRawBlock(t, core, params, voters, parentHeader, params.GenesisHash, 1)

	if err := core.SubmitBlock(encodeBlock(t, blk)); err != nil {
		t.Fatalf("SubmitBlock: %v", err)
	}

	hash, height := core.BestTip()
	if height != 1 {
		t.Fatalf("height = %d, want 1", height)
	}
	if hash != blk.BlockHash() {
		t.Fatalf("tip = %v, want %v", hash, blk.BlockHash())
	}

	select {
	case ev := <-sub:
		if ev.Kind != EventNewBlock {
			t.Fatalf("event kind = %v, want EventNewBlock", ev.Kind)
		}
		if ev.BlockHash != blk.BlockHash() {
			t.Fatalf("event hash = %v, want %v", ev.BlockHash, blk.BlockHash())
		}
	default:
		t.Fatal("no event delivered to subscriber")
	}
}

func TestSubmitBlockRejectsGarbage(t *testing.T) {
	core, _, _ := newTestCore(t)
	if err := core.SubmitBlock([]byte{0xff, 0x00, 0x01}); err == nil {
		t.Fatal("SubmitBlock accepted undecodable bytes")
	}
}

func TestSubmitTransactionAdmitsAndPublishes(t *testing.T) {
	core, voters, params := newTestCore(t)

	parentHeader := &params.GenesisBlock.Header
	parentHash := params.GenesisHash
	for i := uint64(0); i < params.CoinbaseMaturity; i++ {
		blk := mineRawBlock(t, core, params, voters, parentHeader, parentHash, byte(i+1))
		if err := core.SubmitBlock(encodeBlock(t, blk)); err != nil {
			t.Fatalf("mining block %d: %v", i+1, err)
		}
		parentHeader, parentHash = &blk.Header, blk.BlockHash()
	}

	sub := core.Subscribe()
	defer core.Unsubscribe(sub)

	coinbaseOp := wire.OutPoint{Hash: params.GenesisBlock.Transactions[0].TxID(), Index: 0}
	value := params.GenesisBlock.Transactions[0].Outputs[0].Value
	spend := &wire.Transaction{
		Kind:    wire.KindStandard,
		Version: 1,
		Inputs:  []wire.TxInput{{Prev: coinbaseOp, Sequence: 0xffffffff}},
		Outputs: []wire.TxOutput{{Value: value - 5000, LockScript: []byte{0x51}, Memo: []byte{9}}},
	}

	var buf bytes.Buffer
	if err := spend.Encode(&buf); err != nil {
		t.Fatalf("encoding transaction: %v", err)
	}
	if err := core.SubmitTransaction(buf.Bytes()); err != nil {
		t.Fatalf("SubmitTransaction: %v", err)
	}

	select {
	case ev := <-sub:
		if ev.Kind != EventNewTx {
			t.Fatalf("event kind = %v, want EventNewTx", ev.Kind)
		}
		if ev.Tx.TxID() != spend.TxID() {
			t.Fatal("event carries the wrong transaction")
		}
	default:
		t.Fatal("no event delivered to subscriber")
	}
}

func TestUTXOReportsSpendStatus(t *testing.T) {
	core, _, params := newTestCore(t)
	op := wire.OutPoint{Hash: params.GenesisBlock.Transactions[0].TxID(), Index: 0}

	entry, ok, err := core.UTXO(op)
	if err != nil {
		t.Fatalf("UTXO: %v", err)
	}
	if !ok {
		t.Fatal("genesis coinbase output reported as spent/missing")
	}
	if entry.Output.Value != params.GenesisBlock.Transactions[0].Outputs[0].Value {
		t.Fatalf("entry.Output.Value = %d, want %d", entry.Output.Value, params.GenesisBlock.Transactions[0].Outputs[0].Value)
	}

	_, ok, err = core.UTXO(wire.OutPoint{Hash: chainhash.HashB(chainhash.DomainTx, []byte("nope")), Index: 0})
	if err != nil {
		t.Fatalf("UTXO: %v", err)
	}
	if ok {
		t.Fatal("nonexistent outpoint reported as unspent")
	}
}

func TestStateRootOnlyAvailableAtTip(t *testing.T) {
	core, _, _ := newTestCore(t)

	root, err := core.StateRoot(0)
	if err != nil {
		t.Fatalf("StateRoot at genesis: %v", err)
	}
	var want chainhash.Hash
	err = core.chain.Store().View(func(tx database.Tx) error {
		want = blockchain.StateRoot(tx)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if root != want {
		t.Fatalf("StateRoot(0) = %v, want %v", root, want)
	}

	if _, err := core.StateRoot(1); err == nil {
		t.Fatal("StateRoot at a non-tip height should fail")
	}
}

func TestBuildBlockTemplateProducesSubmittableBlock(t *testing.T) {
	core, voters, params := newTestCore(t)

	// Advance past coinbase maturity so the genesis output can be spent
	// by a transaction the template assembles.
	parentHeader := &params.GenesisBlock.Header
	parentHash := params.GenesisHash
	for i := uint64(0); i < params.CoinbaseMaturity; i++ {
		blk := mineRawBlock(t, core, params, voters, parentHeader, parentHash, byte(i+1))
		if err := core.SubmitBlock(encodeBlock(t, blk)); err != nil {
			t.Fatalf("mining block %d: %v", i+1, err)
		}
		parentHeader, parentHash = &blk.Header, blk.BlockHash()
	}

	coinbaseOp := wire.OutPoint{Hash: params.GenesisBlock.Transactions[0].TxID(), Index: 0}
	value := params.GenesisBlock.Transactions[0].Outputs[0].Value
	spend := &wire.Transaction{
		Kind:    wire.KindStandard,
		Version: 1,
		Inputs:  []wire.TxInput{{Prev: coinbaseOp, Sequence: 0xffffffff}},
		Outputs: []wire.TxOutput{{Value: value - 5000, LockScript: []byte{0x51}, Memo: []byte{9}}},
	}
	var buf bytes.Buffer
	if err := spend.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	if err := core.SubmitTransaction(buf.Bytes()); err != nil {
		t.Fatalf("SubmitTransaction: %v", err)
	}

	for _, v := range voters {
		core.NotifyVoterSignature(v.ticket.ID, parentHash, func() [64]byte {
			vote := wire.TicketVote{TicketID: v.ticket.ID, BlockHash: parentHash, Vote: wire.VoteYes}
			var sig [64]byte
			copy(sig[:], ed25519.Sign(v.priv, vote.SigMessage()))
			return sig
		}())
	}

	tpl, err := core.BuildBlockTemplate([]byte{0x51, 0xaa})
	if err != nil {
		t.Fatalf("BuildBlockTemplate: %v", err)
	}
	if len(tpl.Transactions) != 2 {
		t.Fatalf("template has %d transactions, want 2 (coinbase + spend)", len(tpl.Transactions))
	}

	solveBlock(tpl)
	if err := core.SubmitBlock(encodeBlock(t, tpl)); err != nil {
		t.Fatalf("submitting the assembled template failed: %v", err)
	}
	_, height := core.BestTip()
	if height != params.CoinbaseMaturity+1 {
		t.Fatalf("height after submitting template = %d, want %d", height, params.CoinbaseMaturity+1)
	}
}
