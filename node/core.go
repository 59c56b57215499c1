// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package node wires the authenticated state store, chain manager, and
// mempool into the single consumer-facing surface spec.md §6 describes:
// the API a P2P layer, RPC server, or wallet collaborator submits blocks
// and transactions through, queries chain state from, and subscribes to
// new-block/new-tx notifications on.
package node

import (
	"bytes"
	"errors"
	"sync"

	"github.com/oxidecoin/oxided/chaincfg"
	"github.com/oxidecoin/oxided/chainhash"
	"github.com/oxidecoin/oxided/coreerr"
	"github.com/oxidecoin/oxided/database"
	"github.com/oxidecoin/oxided/internal/blockchain"
	"github.com/oxidecoin/oxided/internal/fees"
	"github.com/oxidecoin/oxided/internal/mempool"
	"github.com/oxidecoin/oxided/internal/mining"
	"github.com/oxidecoin/oxided/txscript"
	"github.com/oxidecoin/oxided/wire"
)

// subscriberBuffer is how many undelivered events a subscriber channel
// holds before new events are dropped for it; a slow subscriber falls
// behind rather than blocking block acceptance.
const subscriberBuffer = 64

// Config configures a new Core.
type Config struct {
	Store        *blockchain.Store
	Params       *chaincfg.Params
	Verifier     txscript.SignatureVerifier
	FeeEstimator *fees.Estimator
}

// Core is the node's single consumer-facing entry point (spec.md §6): it
// implements submit_block, submit_transaction, get_best_tip, get_block,
// get_block_by_height, get_utxo, get_state_root, prove_utxo, subscribe,
// build_block_template, and notify_voter_signature as exported methods.
type Core struct {
	chain  *blockchain.Chain
	pool   *mempool.Pool
	params *chaincfg.Params

	mu          sync.Mutex
	subscribers []chan Event

	votesMu sync.Mutex
	votes   map[chainhash.Hash][]wire.TicketVote
}

// New opens a Core over an already-opened Store, bootstrapping the chain
// manager (which in turn bootstraps the genesis block if the store is
// empty) and an empty mempool.
func New(cfg Config) (*Core, error) {
	chain, err := blockchain.NewChain(cfg.Store, cfg.Params, cfg.Verifier)
	if err != nil {
		return nil, err
	}
	pool := mempool.NewPool(mempool.Config{
		Chain:        chain,
		FeeEstimator: cfg.FeeEstimator,
		Verifier:     cfg.Verifier,
	})
	return &Core{
		chain:  chain,
		pool:   pool,
		params: cfg.Params,
		votes:  make(map[chainhash.Hash][]wire.TicketVote),
	}, nil
}

// SubmitBlock decodes and validates raw, attaching it to the chain if it
// is valid and extends (directly or via reorg) the best branch. A
// structurally or consensus invalid block is returned as an error the
// caller can inspect with coreerr.Is; it is never silently dropped
// (spec.md §7's propagation policy).
func (c *Core) SubmitBlock(raw []byte) error {
	blk := new(wire.Block)
	if err := blk.Decode(bytes.NewReader(raw)); err != nil {
		return coreerr.New(coreerr.Decoding, "bad-block-encoding", err.Error())
	}

	res, err := c.chain.AcceptBlock(blk)
	if err != nil {
		return err
	}
	if res.Connected {
		c.pool.RemoveConfirmed(blk.Transactions)
		c.clearVotesUpTo(res)
		c.publish(eventsFromAcceptance(blk, res)...)
	}
	return nil
}

// SubmitTransaction decodes and admits raw to the mempool.
func (c *Core) SubmitTransaction(raw []byte) error {
	tx := new(wire.Transaction)
	if err := tx.Decode(bytes.NewReader(raw)); err != nil {
		return coreerr.New(coreerr.Decoding, "bad-tx-encoding", err.Error())
	}
	if err := c.pool.AcceptTransaction(tx); err != nil {
		return err
	}
	c.publish(Event{Kind: EventNewTx, Tx: tx})
	return nil
}

// BestTip returns the active chain's tip hash and height.
func (c *Core) BestTip() (chainhash.Hash, uint64) {
	return c.chain.BestTip()
}

// Block returns the full block identified by hash.
func (c *Core) Block(hash chainhash.Hash) (*wire.Block, error) {
	return c.chain.BlockByHash(hash)
}

// BlockByHeight returns the active chain's block at height.
func (c *Core) BlockByHeight(height uint64) (*wire.Block, error) {
	return c.chain.BlockByHeight(height)
}

// UTXO returns the unspent output at op, or ok=false if it is spent or
// never existed.
func (c *Core) UTXO(op wire.OutPoint) (entry *blockchain.UTXOEntry, ok bool, err error) {
	err = c.chain.Store().View(func(tx database.Tx) error {
		view := blockchain.NewUTXOView(tx)
		e, err := view.Entry(op)
		if err != nil {
			return err
		}
		if e != nil {
			entry, ok = e, true
		}
		return nil
	})
	return entry, ok, err
}

// StateRoot returns the state root committed at height. Only the active
// chain's current tip height is available: the store holds live state
// plus a bounded rollback journal, not a persisted root for every past
// height, so a height other than the current tip returns an error.
func (c *Core) StateRoot(height uint64) (chainhash.Hash, error) {
	_, tipHeight := c.chain.BestTip()
	if height != tipHeight {
		return chainhash.Hash{}, coreerr.New(coreerr.Transient, "state-root-unavailable",
			"only the current tip height's state root is available")
	}
	var root chainhash.Hash
	err := c.chain.Store().View(func(tx database.Tx) error {
		root = blockchain.StateRoot(tx)
		return nil
	})
	return root, err
}

// ProveUTXO returns a Merkle inclusion proof that op was a live UTXO at
// height, subject to the same current-tip-only restriction as StateRoot.
func (c *Core) ProveUTXO(op wire.OutPoint, height uint64) (proof chainhash.MerkleProof, ok bool, err error) {
	_, tipHeight := c.chain.BestTip()
	if height != tipHeight {
		return chainhash.MerkleProof{}, false, coreerr.New(coreerr.Transient, "proof-unavailable",
			"only the current tip height's state can be proven")
	}
	err = c.chain.Store().View(func(tx database.Tx) error {
		var e error
		proof, _, ok, e = blockchain.ProveUTXO(tx, op)
		return e
	})
	return proof, ok, err
}

// Subscribe returns a channel delivering every subsequent new-block,
// reorg, and new-tx event. The channel is closed when Unsubscribe is
// called with the same channel; a subscriber that doesn't keep up with
// subscriberBuffer pending events silently misses the overflow rather
// than stalling block acceptance.
func (c *Core) Subscribe() <-chan Event {
	ch := make(chan Event, subscriberBuffer)
	c.mu.Lock()
	c.subscribers = append(c.subscribers, ch)
	c.mu.Unlock()
	return ch
}

// Unsubscribe stops delivery to a channel previously returned by
// Subscribe and closes it.
func (c *Core) Unsubscribe(ch <-chan Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, sub := range c.subscribers {
		if sub == ch {
			c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

func (c *Core) publish(events ...Event) {
	if len(events) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sub := range c.subscribers {
		for _, ev := range events {
			select {
			case sub <- ev:
			default:
			}
		}
	}
}

// NotifyVoterSignature records a PoS producer's vote for blockHash so a
// later BuildBlockTemplate call for the block extending it can include
// the vote (spec.md §6's callback surface for PoS producers: ticket_id,
// block_hash, sig). It does not itself validate the signature;
// checkVoterSet does that once the vote is actually embedded in a
// submitted block.
func (c *Core) NotifyVoterSignature(ticketID, blockHash chainhash.Hash, sig [64]byte) {
	c.votesMu.Lock()
	defer c.votesMu.Unlock()
	c.votes[blockHash] = append(c.votes[blockHash], wire.TicketVote{
		TicketID:  ticketID,
		BlockHash: blockHash,
		Vote:      wire.VoteYes,
		Signature: sig,
	})
}

// clearVotesUpTo drops the collected-vote buffers for every block res
// connected, now that they have either been embedded in a block or
// become irrelevant to future template assembly.
func (c *Core) clearVotesUpTo(res *blockchain.BlockAcceptanceResult) {
	c.votesMu.Lock()
	defer c.votesMu.Unlock()
	for _, h := range res.ConnectedBlocks {
		delete(c.votes, h)
	}
}

// BuildBlockTemplate assembles a candidate block extending the current
// tip: the collected votes for the tip, a coinbase splitting the block
// subsidy plus fees miner/voter/masternode by SplitCoinbaseReward (all
// three outputs currently pay coinbaseScript, since this node has no
// separate voter/masternode payout address of its own to route them to),
// and the mempool's highest fee-rate transactions that fit the adaptive
// block-space allocation. The caller (a PoW worker) still has to find a
// nonce satisfying the header's difficulty target.
func (c *Core) BuildBlockTemplate(coinbaseScript []byte) (*wire.Block, error) {
	snap, err := c.chain.TipSnapshot()
	if err != nil {
		return nil, err
	}

	c.votesMu.Lock()
	votes := append([]wire.TicketVote(nil), c.votes[snap.Tip]...)
	c.votesMu.Unlock()

	allocator := mining.NewBlockSpaceAllocator(snap.MaxBlockSize, c.params)
	tpl := c.pool.BuildTemplate(allocator)

	subsidy := blockchain.BlockSubsidy(c.params, snap.Height+1)
	miner, voter, masternode := blockchain.SplitCoinbaseReward(c.params, subsidy+tpl.TotalFees)
	coinbase := &wire.Transaction{
		Kind:    wire.KindCoinbase,
		Version: 1,
		Inputs: []wire.TxInput{{
			Prev:     wire.OutPoint{Hash: chainhash.ZeroHash, Index: ^uint32(0)},
			Sequence: 0xffffffff,
		}},
		Outputs: []wire.TxOutput{
			{Value: miner, LockScript: coinbaseScript},
			{Value: voter, LockScript: coinbaseScript},
			{Value: masternode, LockScript: coinbaseScript},
		},
	}

	txs := make([]*wire.Transaction, 0, len(tpl.Transactions)+1)
	txs = append(txs, coinbase)
	txs = append(txs, tpl.Transactions...)

	height := snap.Height + 1
	blk := &wire.Block{
		Header: wire.BlockHeader{
			Version:          1,
			Height:           height,
			PrevBlockHash:    snap.Tip,
			DifficultyTarget: snap.DifficultyTarget,
			Timestamp:        snap.Header.Timestamp + 1,
		},
		TicketVotes:  votes,
		Transactions: txs,
	}
	blk.Header.MerkleRoot = blk.ComputeMerkleRoot()

	root, err := c.candidateStateRoot(txs, height)
	if err != nil {
		return nil, err
	}
	blk.Header.StateRoot = root
	return blk, nil
}

// candidateStateRoot computes the state root a block assembling txs at
// height would need to claim, by applying every transaction's UTXO and
// non-UTXO effects inside a read-write transaction over the current tip's
// state that is always rolled back, so this never mutates the store
// itself.
func (c *Core) candidateStateRoot(txs []*wire.Transaction, height uint64) (chainhash.Hash, error) {
	errRollback := errors.New("candidate state root: roll back")
	var root chainhash.Hash
	err := c.chain.Store().Update(func(tx database.Tx) error {
		view := blockchain.NewUTXOView(tx)
		for _, wtx := range txs {
			view.ApplyTransaction(wtx, height)
			if err := blockchain.ApplyTransactionEffects(tx, wtx, height, c.params); err != nil {
				return err
			}
		}
		if err := blockchain.AdvanceTicketLifecycle(tx, height, c.params); err != nil {
			return err
		}
		root = blockchain.StateRootWithOverlay(tx, view)
		return errRollback
	})
	if err == errRollback {
		err = nil
	}
	return root, err
}
