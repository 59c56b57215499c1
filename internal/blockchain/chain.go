// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"encoding/binary"
	"math/big"
	"sync"
	"time"

	"github.com/oxidecoin/oxided/blockchain/standalone"
	"github.com/oxidecoin/oxided/chaincfg"
	"github.com/oxidecoin/oxided/chainhash"
	"github.com/oxidecoin/oxided/coreerr"
	"github.com/oxidecoin/oxided/database"
	"github.com/oxidecoin/oxided/internal/mining"
	"github.com/oxidecoin/oxided/txscript"
	"github.com/oxidecoin/oxided/wire"
)

// headerNode is one block's place in the in-memory chain index: its
// header, its individual proof-of-work, the cumulative work of the chain
// ending at it, and a link to its parent. Every known block gets a node,
// whether or not it is on the active chain, so fork choice can compare
// branches without re-reading headers from disk.
type headerNode struct {
	hash    chainhash.Hash
	header  *wire.BlockHeader
	work    *big.Int
	cumWork *big.Int
	parent  *headerNode
}

// BlockAcceptanceResult describes what AcceptBlock did with a submitted
// block: whether it extended, reorganized, or merely recorded (without
// connecting) the active chain, and which tickets the DPRF selected but
// that never voted in a newly connected block.
type BlockAcceptanceResult struct {
	Connected          bool
	Reorg              bool
	NewTip             chainhash.Hash
	NewHeight          uint64
	DisconnectedBlocks []chainhash.Hash
	ConnectedBlocks    []chainhash.Hash
	MissedVoters       []*Ticket
}

// TipSnapshot is a consistent, read-only view of the chain manager's state
// at the current tip: everything a mempool's admission check or a miner's
// block-template assembly needs about the height a new block would extend.
type TipSnapshot struct {
	Tip              chainhash.Hash
	Height           uint64
	Header           *wire.BlockHeader
	DifficultyTarget uint32
	MaxBlockSize     uint32
	TicketPrice      int64
	LiveTickets      []*Ticket
}

// Chain is the chain manager (spec.md §4.10): it tracks every known block's
// place in the cumulative-work fork-choice order, keeps the authenticated
// Store's active chain in sync with whichever branch currently has the
// most work, and enforces the PoS finality gate and maximum reorg depth
// that bound how far back a reorg may ever revert.
type Chain struct {
	mu       sync.RWMutex
	store    *Store
	params   *chaincfg.Params
	verifier txscript.SignatureVerifier
	clock    func() uint64

	nodes map[chainhash.Hash]*headerNode
	tip   *headerNode

	finalizedHeight uint64
	finalizedHash   chainhash.Hash

	currentDifficultyBits uint32
	currentMaxBlockSize   uint32
	currentTicketPrice    int64

	// epochSizes and epochLiveCounts accumulate the serialized size and
	// live-ticket count of every block this process has connected since
	// the last retarget. A restart mid-epoch loses this history and
	// starts accumulating again from whatever blocks it next observes,
	// rather than replaying the whole epoch from stored bodies — this
	// trades a slightly noisier block-size/ticket-price retarget right
	// after a restart for not needing a dedicated persisted stats bucket.
	epochSizes          []uint32
	epochLiveCounts     []int64
	epochStartTimestamp int64
}

const (
	metaKeyTip          = "tip"
	metaKeyDifficulty   = "difficulty"
	metaKeyMaxBlockSize = "max_block_size"
	metaKeyTicketPrice  = "ticket_price"
)

// NewChain opens the chain manager backed by store: if store has never
// seen a block, it bootstraps params' genesis block; otherwise it rebuilds
// the in-memory header index from store's headers and height index.
func NewChain(store *Store, params *chaincfg.Params, verifier txscript.SignatureVerifier) (*Chain, error) {
	c := &Chain{
		store:    store,
		params:   params,
		verifier: verifier,
		clock:    func() uint64 { return uint64(time.Now().Unix()) },
		nodes:    make(map[chainhash.Hash]*headerNode),
	}

	var tipHash chainhash.Hash
	var haveTip bool
	err := store.View(func(tx database.Tx) error {
		meta := tx.Metadata().Bucket([]byte(bucketMeta))
		if meta == nil {
			return nil
		}
		raw := meta.Get([]byte(metaKeyTip))
		if raw == nil {
			return nil
		}
		h, err := chainhash.NewHash(raw)
		if err != nil {
			return err
		}
		tipHash, haveTip = h, true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !haveTip {
		if err := c.bootstrapGenesis(); err != nil {
			return nil, err
		}
		return c, nil
	}
	if err := c.loadChain(tipHash); err != nil {
		return nil, err
	}
	return c, nil
}

// bootstrapGenesis seeds an empty store with params' genesis block. The
// genesis block carries no votes and its header commits a zero state root
// by convention rather than the empty-trie sentinel, so it is written
// directly instead of going through CheckBlock.
func (c *Chain) bootstrapGenesis() error {
	genesis := c.params.GenesisBlock
	hash := c.params.GenesisHash

	err := c.store.ApplyBlock(hash, func(tx database.Tx) error {
		view := NewUTXOView(tx)
		for _, wtx := range genesis.Transactions {
			view.ApplyTransaction(wtx, 0)
		}
		if err := view.Flush(); err != nil {
			return err
		}
		if err := putHeader(tx, hash, &genesis.Header); err != nil {
			return err
		}
		if err := putBody(tx, hash, genesis); err != nil {
			return err
		}
		if err := putHeightIndex(tx, 0, hash); err != nil {
			return err
		}
		meta, err := tx.Metadata().CreateBucketIfNotExists([]byte(bucketMeta))
		if err != nil {
			return err
		}
		if err := meta.Put([]byte(metaKeyTip), hash[:]); err != nil {
			return err
		}
		if err := putUint32Meta(meta, metaKeyDifficulty, c.params.PowLimitBits); err != nil {
			return err
		}
		if err := putUint32Meta(meta, metaKeyMaxBlockSize, uint32(c.params.InitialMaxBlockSize)); err != nil {
			return err
		}
		return putInt64Meta(meta, metaKeyTicketPrice, c.params.InitialTicketPrice)
	})
	if err != nil {
		return err
	}

	work := workFromBits(genesis.Header.DifficultyTarget)
	node := &headerNode{hash: hash, header: &genesis.Header, work: work, cumWork: new(big.Int).Set(work)}
	c.nodes[hash] = node
	c.tip = node
	c.currentDifficultyBits = c.params.PowLimitBits
	c.currentMaxBlockSize = uint32(c.params.InitialMaxBlockSize)
	c.currentTicketPrice = c.params.InitialTicketPrice
	c.epochStartTimestamp = int64(genesis.Header.Timestamp)
	c.updateFinality()
	return nil
}

// loadChain rebuilds the in-memory node index from every height up to
// tipHash's, and restores the retargeted parameters currently in effect.
func (c *Chain) loadChain(tipHash chainhash.Hash) error {
	return c.store.View(func(tx database.Tx) error {
		tipHeader, err := getHeader(tx, tipHash)
		if err != nil {
			return err
		}

		var parent *headerNode
		for h := uint64(0); h <= tipHeader.Height; h++ {
			hash, err := getHeightIndex(tx, h)
			if err != nil {
				return err
			}
			header, err := getHeader(tx, hash)
			if err != nil {
				return err
			}
			work := workFromBits(header.DifficultyTarget)
			cum := new(big.Int).Set(work)
			if parent != nil {
				cum.Add(cum, parent.cumWork)
			}
			node := &headerNode{hash: hash, header: header, work: work, cumWork: cum, parent: parent}
			c.nodes[hash] = node
			parent = node
		}
		c.tip = parent
		c.epochStartTimestamp = int64(parent.header.Timestamp)

		meta := tx.Metadata().Bucket([]byte(bucketMeta))
		if meta == nil {
			return coreerr.New(coreerr.StorageFault, "missing-meta", "chain meta bucket missing")
		}
		if c.currentDifficultyBits, err = getUint32Meta(meta, metaKeyDifficulty); err != nil {
			return err
		}
		if c.currentMaxBlockSize, err = getUint32Meta(meta, metaKeyMaxBlockSize); err != nil {
			return err
		}
		if c.currentTicketPrice, err = getInt64Meta(meta, metaKeyTicketPrice); err != nil {
			return err
		}
		c.updateFinality()
		return nil
	})
}

// AcceptBlock is the chain manager's single entry point for a fully
// decoded candidate block, whether it extends the active tip, forks off
// it, or extends a fork past the active tip's work (triggering a reorg).
func (c *Chain) AcceptBlock(blk *wire.Block) (*BlockAcceptanceResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	blockHash := blk.BlockHash()
	if _, ok := c.nodes[blockHash]; ok {
		return nil, coreerr.New(coreerr.Transient, "duplicate-block", "block is already known")
	}
	parent, ok := c.nodes[blk.Header.PrevBlockHash]
	if !ok {
		return nil, coreerr.New(coreerr.StructuralInvalid, "unknown-parent", "block's parent is not known to this chain")
	}

	// Cheap, state-independent checks run on every incoming block, tip-
	// extending or not, so a side branch cannot poison fork choice with a
	// header that could never have passed full validation.
	headerCtx := &BlockValidationContext{Params: c.params, ParentHeader: parent.header, ParentHash: parent.hash, Now: c.clock()}
	if err := checkHeaderShape(blk, headerCtx); err != nil {
		return nil, err
	}
	if err := checkProofOfWork(blk); err != nil {
		return nil, err
	}

	if parent == c.tip {
		return c.extendTip(blk, parent)
	}

	work := workFromBits(blk.Header.DifficultyTarget)
	node := &headerNode{hash: blockHash, header: &blk.Header, work: work, cumWork: new(big.Int).Add(parent.cumWork, work), parent: parent}
	err := c.store.ApplyBlock(blockHash, func(tx database.Tx) error {
		if err := putHeader(tx, blockHash, &blk.Header); err != nil {
			return err
		}
		return putBody(tx, blockHash, blk)
	})
	if err != nil {
		return nil, err
	}
	c.nodes[blockHash] = node

	if node.cumWork.Cmp(c.tip.cumWork) <= 0 {
		return &BlockAcceptanceResult{NewTip: c.tip.hash, NewHeight: c.tip.header.Height}, nil
	}
	return c.reorganizeTo(node)
}

// extendTip validates and connects blk directly onto the active tip.
func (c *Chain) extendTip(blk *wire.Block, parent *headerNode) (*BlockAcceptanceResult, error) {
	c.maybeRetarget(blk.Header.Height, parent.header.Timestamp)

	node, missed, err := c.connectBlock(blk, parent)
	if err != nil {
		return nil, err
	}
	c.tip = node
	c.updateFinality()

	return &BlockAcceptanceResult{
		Connected:       true,
		NewTip:          node.hash,
		NewHeight:       node.header.Height,
		ConnectedBlocks: []chainhash.Hash{node.hash},
		MissedVoters:    missed,
	}, nil
}

// reorganizeTo switches the active chain to newTip's branch: it reverts
// the current branch down to the common ancestor and replays the new
// branch's already-stored bodies back through full validation. A failure
// partway through the replay unwinds whatever connected and restores the
// original branch exactly, so AcceptBlock never leaves the store on a
// branch that failed validation.
func (c *Chain) reorganizeTo(newTip *headerNode) (*BlockAcceptanceResult, error) {
	ancestor := commonAncestor(c.tip, newTip)

	if ancestor.header.Height < c.finalizedHeight {
		return nil, coreerr.New(coreerr.ConsensusInvalid, "finality-violation", "reorg would revert a block already covered by PoS finality")
	}
	if c.tip.header.Height-ancestor.header.Height > c.params.MaxReorgDepth {
		return nil, coreerr.New(coreerr.ConsensusInvalid, "reorg-too-deep", "reorg exceeds the maximum allowed depth")
	}

	oldChain := chainBetween(ancestor, c.tip)
	newChain := chainBetween(ancestor, newTip)

	for i := len(oldChain) - 1; i >= 0; i-- {
		if err := c.store.RevertBlock(oldChain[i].hash); err != nil {
			return nil, coreerr.Newf(coreerr.StorageFault, "reorg-revert-failed", "%v", err)
		}
	}

	savedDiff, savedSize, savedPrice := c.currentDifficultyBits, c.currentMaxBlockSize, c.currentTicketPrice
	savedSizes := append([]uint32(nil), c.epochSizes...)
	savedLive := append([]int64(nil), c.epochLiveCounts...)
	savedStart := c.epochStartTimestamp

	var connected []chainhash.Hash
	var missed []*Ticket
	parent := ancestor
	var replayErr error
	for _, node := range newChain {
		blk, err := c.loadBody(node.hash)
		if err != nil {
			replayErr = err
			break
		}
		c.maybeRetarget(blk.Header.Height, parent.header.Timestamp)
		connectedNode, m, err := c.connectBlock(blk, parent)
		if err != nil {
			replayErr = err
			break
		}
		parent = connectedNode
		connected = append(connected, connectedNode.hash)
		missed = append(missed, m...)
	}

	if replayErr != nil {
		for i := len(connected) - 1; i >= 0; i-- {
			_ = c.store.RevertBlock(connected[i])
		}
		c.currentDifficultyBits, c.currentMaxBlockSize, c.currentTicketPrice = savedDiff, savedSize, savedPrice
		c.epochSizes, c.epochLiveCounts, c.epochStartTimestamp = savedSizes, savedLive, savedStart

		restoreParent := ancestor
		for _, node := range oldChain {
			blk, err := c.loadBody(node.hash)
			if err != nil {
				return nil, coreerr.Newf(coreerr.StorageFault, "reorg-restore-failed", "%v", err)
			}
			restored, _, err := c.connectBlock(blk, restoreParent)
			if err != nil {
				return nil, coreerr.Newf(coreerr.StorageFault, "reorg-restore-failed", "%v", err)
			}
			restoreParent = restored
		}
		c.tip = restoreParent
		c.updateFinality()
		return nil, replayErr
	}

	c.tip = parent
	c.updateFinality()

	disconnected := make([]chainhash.Hash, len(oldChain))
	for i, n := range oldChain {
		disconnected[len(oldChain)-1-i] = n.hash
	}
	return &BlockAcceptanceResult{
		Connected:          true,
		Reorg:              true,
		NewTip:             c.tip.hash,
		NewHeight:          c.tip.header.Height,
		DisconnectedBlocks: disconnected,
		ConnectedBlocks:    connected,
		MissedVoters:       missed,
	}, nil
}

// connectBlock runs the full block validator against parent's state,
// commits its UTXO view and non-UTXO effects, and records its header, body,
// and height index, all inside the one recording transaction a failed
// reorg replay or a later revert can undo as a unit.
func (c *Chain) connectBlock(blk *wire.Block, parent *headerNode) (*headerNode, []*Ticket, error) {
	blockHash := blk.BlockHash()
	var missed []*Ticket
	var liveCount int

	err := c.store.ApplyBlock(blockHash, func(tx database.Tx) error {
		live, err := LiveTickets(tx)
		if err != nil {
			return err
		}
		liveCount = len(live)

		ctx := &BlockValidationContext{
			Params:                   c.params,
			ParentHeader:             parent.header,
			ParentHash:               parent.hash,
			ExpectedDifficultyTarget: c.currentDifficultyBits,
			MaxBlockSize:             c.currentMaxBlockSize,
			LiveTickets:              live,
			Now:                      c.clock(),
			Verifier:                 c.verifier,
			CurrentTicketPrice:       c.currentTicketPrice,
			Tx:                       tx,
		}
		view, err := CheckBlock(blk, ctx)
		if err != nil {
			return err
		}
		missed = ComputeMissedVoters(blk, ctx)
		if err := putMissedVoters(tx, blk.Header.Height, missed); err != nil {
			return err
		}

		if err := view.Flush(); err != nil {
			return err
		}
		if err := putHeader(tx, blockHash, &blk.Header); err != nil {
			return err
		}
		if err := putBody(tx, blockHash, blk); err != nil {
			return err
		}
		if err := putHeightIndex(tx, blk.Header.Height, blockHash); err != nil {
			return err
		}
		meta, err := tx.Metadata().CreateBucketIfNotExists([]byte(bucketMeta))
		if err != nil {
			return err
		}
		return meta.Put([]byte(metaKeyTip), blockHash[:])
	})
	if err != nil {
		return nil, nil, err
	}

	work := workFromBits(blk.Header.DifficultyTarget)
	node := &headerNode{hash: blockHash, header: &blk.Header, work: work, cumWork: new(big.Int).Add(parent.cumWork, work), parent: parent}
	c.nodes[blockHash] = node

	c.epochSizes = append(c.epochSizes, uint32(blk.SerializeSize()))
	c.epochLiveCounts = append(c.epochLiveCounts, int64(liveCount))

	return node, missed, nil
}

// maybeRetarget recomputes the difficulty target, adaptive block size, and
// ticket price for the epoch starting at height, if height begins one
// (spec.md §4.9), from the blocks accumulated since the last retarget.
func (c *Chain) maybeRetarget(height uint64, priorTimestamp uint64) {
	if height == 0 || height%c.params.Epoch != 0 {
		return
	}
	elapsed := int64(priorTimestamp) - c.epochStartTimestamp
	c.currentDifficultyBits = RetargetDifficulty(c.params, c.currentDifficultyBits, elapsed)
	c.currentMaxBlockSize = mining.RetargetBlockSize(c.currentMaxBlockSize, c.epochSizes)
	c.currentTicketPrice = RetargetTicketPrice(c.params, c.currentTicketPrice, MeanLiveTickets(c.epochLiveCounts))
	c.epochSizes = nil
	c.epochLiveCounts = nil
	c.epochStartTimestamp = int64(priorTimestamp)
}

// updateFinality advances the PoS finality point to PosFinalityDepth
// blocks behind the current tip (spec.md §4.10): CheckBlock already
// enforces the vote quorum every connected block carries, so depth alone
// is what "finalized" means here.
func (c *Chain) updateFinality() {
	if c.tip.header.Height < c.params.PosFinalityDepth {
		return
	}
	newHeight := c.tip.header.Height - c.params.PosFinalityDepth
	if !c.finalizedHash.IsZero() && newHeight <= c.finalizedHeight {
		return
	}
	node := c.tip
	for node.header.Height > newHeight {
		node = node.parent
	}
	c.finalizedHeight = newHeight
	c.finalizedHash = node.hash
}

func commonAncestor(a, b *headerNode) *headerNode {
	for a.header.Height > b.header.Height {
		a = a.parent
	}
	for b.header.Height > a.header.Height {
		b = b.parent
	}
	for a != b {
		a = a.parent
		b = b.parent
	}
	return a
}

// chainBetween returns the nodes strictly after ancestor up to and
// including tip, in increasing height order.
func chainBetween(ancestor, tip *headerNode) []*headerNode {
	var chain []*headerNode
	for n := tip; n != ancestor; n = n.parent {
		chain = append(chain, n)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// workFromBits converts a compact difficulty target into the amount of
// expected work (2^256 / (target+1)) a block meeting it represents.
func workFromBits(bits uint32) *big.Int {
	target := standalone.CompactToBig(bits)
	denom := new(big.Int).Add(target, big.NewInt(1))
	return new(big.Int).Div(maxWorkDividend, denom)
}

var maxWorkDividend = new(big.Int).Lsh(big.NewInt(1), 256)

func (c *Chain) loadBody(hash chainhash.Hash) (*wire.Block, error) {
	var blk *wire.Block
	err := c.store.View(func(tx database.Tx) error {
		b, err := getBody(tx, hash)
		if err != nil {
			return err
		}
		blk = b
		return nil
	})
	return blk, err
}

// BestTip returns the active chain's tip hash and height.
func (c *Chain) BestTip() (chainhash.Hash, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tip.hash, c.tip.header.Height
}

// TipHeader returns a copy of the active tip's header.
func (c *Chain) TipHeader() *wire.BlockHeader {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h := *c.tip.header
	return &h
}

// BlockByHash returns the full block for hash, whether or not it is on
// the active chain.
func (c *Chain) BlockByHash(hash chainhash.Hash) (*wire.Block, error) {
	c.mu.RLock()
	_, known := c.nodes[hash]
	c.mu.RUnlock()
	if !known {
		return nil, coreerr.New(coreerr.StructuralInvalid, "unknown-block", "no block known for hash")
	}
	return c.loadBody(hash)
}

// BlockByHeight returns the active chain's block at height.
func (c *Chain) BlockByHeight(height uint64) (*wire.Block, error) {
	c.mu.RLock()
	tipHeight := c.tip.header.Height
	c.mu.RUnlock()
	if height > tipHeight {
		return nil, coreerr.New(coreerr.StructuralInvalid, "height-not-reached", "requested height is beyond the current tip")
	}
	var hash chainhash.Hash
	err := c.store.View(func(tx database.Tx) error {
		h, err := getHeightIndex(tx, height)
		if err != nil {
			return err
		}
		hash = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.loadBody(hash)
}

// TipSnapshot captures a consistent view of the chain's tip, retargeted
// parameters, and live ticket pool for mempool admission and block
// template assembly.
func (c *Chain) TipSnapshot() (*TipSnapshot, error) {
	c.mu.RLock()
	tip := c.tip
	diff := c.currentDifficultyBits
	maxSize := c.currentMaxBlockSize
	price := c.currentTicketPrice
	c.mu.RUnlock()

	var live []*Ticket
	err := c.store.View(func(tx database.Tx) error {
		l, err := LiveTickets(tx)
		if err != nil {
			return err
		}
		live = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	header := *tip.header
	return &TipSnapshot{
		Tip:              tip.hash,
		Height:           tip.header.Height,
		Header:           &header,
		DifficultyTarget: diff,
		MaxBlockSize:     maxSize,
		TicketPrice:      price,
		LiveTickets:      live,
	}, nil
}

// Store returns the underlying authenticated state store, for callers
// (the node package, ProveUTXO) that need direct read access beyond what
// the chain manager exposes.
func (c *Chain) Store() *Store { return c.store }

// Params returns the network parameters the chain was opened with.
func (c *Chain) Params() *chaincfg.Params { return c.params }

func putHeader(tx database.Tx, hash chainhash.Hash, h *wire.BlockHeader) error {
	bucket, err := tx.Metadata().CreateBucketIfNotExists([]byte(bucketHeaders))
	if err != nil {
		return err
	}
	return bucket.Put(hash[:], h.Bytes())
}

func getHeader(tx database.Tx, hash chainhash.Hash) (*wire.BlockHeader, error) {
	bucket := tx.Metadata().Bucket([]byte(bucketHeaders))
	if bucket == nil {
		return nil, coreerr.New(coreerr.StorageFault, "missing-headers-bucket", "headers bucket missing")
	}
	raw := bucket.Get(hash[:])
	if raw == nil {
		return nil, coreerr.New(coreerr.StorageFault, "unknown-header", "no header stored for hash")
	}
	return wire.DecodeBlockHeader(raw)
}

func putBody(tx database.Tx, hash chainhash.Hash, blk *wire.Block) error {
	bucket, err := tx.Metadata().CreateBucketIfNotExists([]byte(bucketBodies))
	if err != nil {
		return err
	}
	return bucket.Put(hash[:], blk.Bytes())
}

func getBody(tx database.Tx, hash chainhash.Hash) (*wire.Block, error) {
	bucket := tx.Metadata().Bucket([]byte(bucketBodies))
	if bucket == nil {
		return nil, coreerr.New(coreerr.StorageFault, "missing-bodies-bucket", "bodies bucket missing")
	}
	raw := bucket.Get(hash[:])
	if raw == nil {
		return nil, coreerr.New(coreerr.StorageFault, "unknown-body", "no body stored for hash")
	}
	return wire.DecodeBlock(raw)
}

func heightKey(h uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], h)
	return b[:]
}

func putHeightIndex(tx database.Tx, height uint64, hash chainhash.Hash) error {
	bucket, err := tx.Metadata().CreateBucketIfNotExists([]byte(bucketHeightIndex))
	if err != nil {
		return err
	}
	return bucket.Put(heightKey(height), hash[:])
}

func getHeightIndex(tx database.Tx, height uint64) (chainhash.Hash, error) {
	bucket := tx.Metadata().Bucket([]byte(bucketHeightIndex))
	if bucket == nil {
		return chainhash.Hash{}, coreerr.New(coreerr.StorageFault, "missing-heightindex-bucket", "height index bucket missing")
	}
	raw := bucket.Get(heightKey(height))
	if raw == nil {
		return chainhash.Hash{}, coreerr.New(coreerr.StorageFault, "unknown-height", "no block stored at height")
	}
	return chainhash.NewHash(raw)
}

func putUint32Meta(b database.Bucket, key string, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return b.Put([]byte(key), buf[:])
}

func getUint32Meta(b database.Bucket, key string) (uint32, error) {
	raw := b.Get([]byte(key))
	if raw == nil {
		return 0, coreerr.Newf(coreerr.StorageFault, "missing-meta-key", "meta key %q missing", key)
	}
	return binary.LittleEndian.Uint32(raw), nil
}

func putInt64Meta(b database.Bucket, key string, v int64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	return b.Put([]byte(key), buf[:])
}

func getInt64Meta(b database.Bucket, key string) (int64, error) {
	raw := b.Get([]byte(key))
	if raw == nil {
		return 0, coreerr.Newf(coreerr.StorageFault, "missing-meta-key", "meta key %q missing", key)
	}
	return int64(binary.LittleEndian.Uint64(raw)), nil
}
