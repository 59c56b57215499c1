// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package mempool holds transactions that have passed consensus validation
// against the chain tip but are not yet confirmed (spec.md §4.11): the
// pool a node relays from and a miner assembles block templates out of.
package mempool

import (
	"container/heap"
	"crypto/rand"
	"encoding/binary"
	"sort"
	"sync"
	"time"

	"github.com/dchest/siphash"
	"github.com/decred/dcrd/container/apbf"
	"github.com/decred/dcrd/lru"

	"github.com/oxidecoin/oxided/chainhash"
	"github.com/oxidecoin/oxided/coreerr"
	"github.com/oxidecoin/oxided/database"
	"github.com/oxidecoin/oxided/internal/blockchain"
	"github.com/oxidecoin/oxided/internal/fees"
	"github.com/oxidecoin/oxided/internal/mining"
	"github.com/oxidecoin/oxided/txscript"
	"github.com/oxidecoin/oxided/wire"
)

// Defaults for a Config that leaves its size/filter fields at zero.
const (
	defaultMaxSize                  = 5000
	defaultMaxBytes                 = 64 << 20
	defaultRejectFilterMaxElements  = 50000
	defaultRejectFilterFalsePosRate = 0.0001
	defaultEvictedCacheLimit        = 2000
)

// replaceByFeeMarginPermille is the minimum fee-rate improvement, in
// parts per thousand, a replacement transaction must offer over every
// transaction it conflicts with (spec.md §4.11's replace-by-fee policy).
const replaceByFeeMarginPermille = 100

// Config configures a new Pool.
type Config struct {
	Chain        *blockchain.Chain
	FeeEstimator *fees.Estimator
	Verifier     txscript.SignatureVerifier

	MaxSize  int   // maximum number of held transactions, 0 means defaultMaxSize
	MaxBytes int64 // maximum total serialized bytes held, 0 means defaultMaxBytes

	// TieBreakKey0/1 fix the siphash key used to break fee-rate ties in
	// the eviction and template-ordering heaps. Tests that need a
	// deterministic order should set these; a production Pool leaves
	// them zero and NewPool draws a random key, so an attacker who
	// floods same-fee-rate transactions cannot predict eviction order.
	TieBreakKey0, TieBreakKey1 uint64
}

// entry is one transaction admitted to the pool, with everything needed
// to order and evict it without re-deriving it on every comparison.
type entry struct {
	tx       *wire.Transaction
	txid     chainhash.Hash
	size     int64
	fee      int64
	feeRate  float64 // atoms per byte
	tieBreak uint64
	addedAt  time.Time
}

// Pool is the mempool: transactions that passed blockchain.CheckTransaction
// against the chain tip overlaid with every other transaction already in
// the pool, ordered by fee rate for relay and block template assembly.
type Pool struct {
	mu sync.RWMutex

	chain        *blockchain.Chain
	feeEstimator *fees.Estimator
	verifier     txscript.SignatureVerifier
	maxSize      int
	maxBytes     int64
	sipKey0      uint64
	sipKey1      uint64

	byTxID     map[chainhash.Hash]*entry
	byOutpoint map[wire.OutPoint]chainhash.Hash

	totalBytes int64

	recentRejects   *apbf.Filter
	recentlyEvicted *lru.Cache[chainhash.Hash]

	now func() time.Time
}

// NewPool constructs an empty Pool per cfg.
func NewPool(cfg Config) *Pool {
	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	k0, k1 := cfg.TieBreakKey0, cfg.TieBreakKey1
	if k0 == 0 && k1 == 0 {
		var seed [16]byte
		_, _ = rand.Read(seed[:])
		k0 = binary.LittleEndian.Uint64(seed[0:8])
		k1 = binary.LittleEndian.Uint64(seed[8:16])
	}
	return &Pool{
		chain:           cfg.Chain,
		feeEstimator:    cfg.FeeEstimator,
		verifier:        cfg.Verifier,
		maxSize:         maxSize,
		maxBytes:        maxBytes,
		sipKey0:         k0,
		sipKey1:         k1,
		byTxID:          make(map[chainhash.Hash]*entry),
		byOutpoint:      make(map[wire.OutPoint]chainhash.Hash),
		recentRejects:   apbf.NewFilter(defaultRejectFilterMaxElements, defaultRejectFilterFalsePosRate),
		recentlyEvicted: lru.NewCache[chainhash.Hash](defaultEvictedCacheLimit),
		now:             time.Now,
	}
}

// Size returns the number of transactions currently held.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byTxID)
}

// Has reports whether txid is currently held.
func (p *Pool) Has(txid chainhash.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.byTxID[txid]
	return ok
}

// Get returns the held transaction with the given id, if any.
func (p *Pool) Get(txid chainhash.Hash) (*wire.Transaction, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.byTxID[txid]
	if !ok {
		return nil, false
	}
	return e.tx, true
}

// AcceptTransaction validates tx against the chain tip overlaid with every
// transaction already held, admitting it if valid. A transaction that
// double-spends a held transaction's input is only admitted if it pays a
// high enough fee rate to replace every conflict (spec.md §4.11's
// replace-by-fee rule), in which case the conflicts are evicted.
func (p *Pool) AcceptTransaction(tx *wire.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	txid := tx.TxID()
	if _, ok := p.byTxID[txid]; ok {
		return coreerr.New(coreerr.Transient, "duplicate-tx", "transaction is already in the mempool")
	}
	if p.recentRejects.Contains(txid[:]) {
		return coreerr.New(coreerr.Policy, "recently-rejected", "transaction was recently rejected and has not changed")
	}

	snap, err := p.chain.TipSnapshot()
	if err != nil {
		return err
	}

	newEntry, err := p.buildEntry(tx, txid, snap)
	if err != nil {
		p.recentRejects.Add(txid[:])
		return err
	}

	conflicts := p.findConflicts(tx)
	if len(conflicts) > 0 {
		if err := checkReplaceByFee(newEntry, conflicts); err != nil {
			p.recentRejects.Add(txid[:])
			return err
		}
		for _, c := range conflicts {
			p.removeEntry(c)
		}
	}

	p.insertEntry(newEntry)
	p.enforceLimits()
	p.feeEstimator.UpdateUtilization(len(p.byTxID), p.totalBytes, 0)
	return nil
}

// buildEntry runs CheckTransaction for tx against a UTXOView seeded from
// the chain tip and overlaid with every transaction already in the pool,
// inside the same database.Tx its kind-specific payload checks (ticket/
// masternode/slash lookups) read against.
func (p *Pool) buildEntry(tx *wire.Transaction, txid chainhash.Hash, snap *blockchain.TipSnapshot) (*entry, error) {
	size := int64(tx.SerializeSize())
	var fee int64
	err := p.chain.Store().View(func(dbtx database.Tx) error {
		view := blockchain.NewUTXOView(dbtx)
		for _, held := range p.byTxID {
			view.ApplyTransaction(held.tx, snap.Height+1)
		}

		var totalIn int64
		for i := range tx.Inputs {
			out, err := view.Entry(tx.Inputs[i].Prev)
			if err != nil {
				return err
			}
			if out != nil {
				totalIn += out.Output.Value
			}
		}
		fee = totalIn - tx.SumOutputs()

		ctx := &blockchain.TxValidationContext{
			Height:             snap.Height + 1,
			Time:               uint64(p.now().Unix()),
			View:               view,
			Params:             p.chain.Params(),
			Verifier:           p.verifier,
			CurrentTicketPrice: snap.TicketPrice,
			Tx:                 dbtx,
		}
		return blockchain.CheckTransaction(tx, ctx)
	})
	if err != nil {
		return nil, err
	}

	if err := p.feeEstimator.ValidateTransactionFee(fee, size, false); err != nil {
		return nil, coreerr.New(coreerr.Policy, "fee-too-low", err.Error())
	}

	feeRate := float64(fee) / float64(size)
	return &entry{
		tx:       tx,
		txid:     txid,
		size:     size,
		fee:      fee,
		feeRate:  feeRate,
		tieBreak: siphash.Hash(p.sipKey0, p.sipKey1, txid[:]),
		addedAt:  p.now(),
	}, nil
}

// findConflicts returns the held transactions that spend at least one of
// the same inputs as tx.
func (p *Pool) findConflicts(tx *wire.Transaction) []*entry {
	seen := make(map[chainhash.Hash]*entry)
	for i := range tx.Inputs {
		id, ok := p.byOutpoint[tx.Inputs[i].Prev]
		if !ok {
			continue
		}
		if e, ok := p.byTxID[id]; ok {
			seen[id] = e
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]*entry, 0, len(seen))
	for _, e := range seen {
		out = append(out, e)
	}
	return out
}

// checkReplaceByFee enforces spec.md §4.11's replace-by-fee rule: the
// replacement must clear every conflict's fee rate by the required
// margin and pay a strictly higher absolute fee than the sum of what it
// replaces, so replacement can never be used to reduce the fee paid for
// the same set of spent outputs.
func checkReplaceByFee(newEntry *entry, conflicts []*entry) error {
	var maxConflictRate float64
	var totalConflictFee int64
	for _, c := range conflicts {
		if c.feeRate > maxConflictRate {
			maxConflictRate = c.feeRate
		}
		totalConflictFee += c.fee
	}
	required := maxConflictRate * float64(1000+replaceByFeeMarginPermille) / 1000
	if newEntry.feeRate < required {
		return coreerr.New(coreerr.Policy, "rbf-insufficient-fee-rate",
			"replacement transaction's fee rate does not exceed the replaced transactions' by the required margin")
	}
	if newEntry.fee <= totalConflictFee {
		return coreerr.New(coreerr.Policy, "rbf-insufficient-absolute-fee",
			"replacement transaction's absolute fee does not exceed the sum of the fees it replaces")
	}
	return nil
}

func (p *Pool) insertEntry(e *entry) {
	p.byTxID[e.txid] = e
	for i := range e.tx.Inputs {
		p.byOutpoint[e.tx.Inputs[i].Prev] = e.txid
	}
	p.totalBytes += e.size
}

func (p *Pool) removeEntry(e *entry) {
	delete(p.byTxID, e.txid)
	for i := range e.tx.Inputs {
		if p.byOutpoint[e.tx.Inputs[i].Prev] == e.txid {
			delete(p.byOutpoint, e.tx.Inputs[i].Prev)
		}
	}
	p.totalBytes -= e.size
	p.recentlyEvicted.Add(e.txid)
}

// evictionHeap orders entries lowest-fee-rate-first, with siphash
// tie-break so an attacker flooding same-fee-rate transactions cannot
// predict (and so game) which one is evicted.
type evictionHeap []*entry

func (h evictionHeap) Len() int { return len(h) }
func (h evictionHeap) Less(i, j int) bool {
	if h[i].feeRate != h[j].feeRate {
		return h[i].feeRate < h[j].feeRate
	}
	return h[i].tieBreak < h[j].tieBreak
}
func (h evictionHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *evictionHeap) Push(x any)   { *h = append(*h, x.(*entry)) }
func (h *evictionHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// enforceLimits evicts the lowest fee-rate entries until the pool is back
// within its configured size and byte bounds.
func (p *Pool) enforceLimits() {
	if len(p.byTxID) <= p.maxSize && p.totalBytes <= p.maxBytes {
		return
	}
	h := make(evictionHeap, 0, len(p.byTxID))
	for _, e := range p.byTxID {
		h = append(h, e)
	}
	heap.Init(&h)
	for (len(p.byTxID) > p.maxSize || p.totalBytes > p.maxBytes) && h.Len() > 0 {
		victim := heap.Pop(&h).(*entry)
		p.removeEntry(victim)
	}
}

// RemoveConfirmed drops every held transaction that appears in confirmed
// (now mined) or that is left double-spending one of confirmed's now-spent
// inputs. Called by the node package after a block is accepted.
func (p *Pool) RemoveConfirmed(confirmed []*wire.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()

	spent := make(map[wire.OutPoint]bool)
	for _, tx := range confirmed {
		if e, ok := p.byTxID[tx.TxID()]; ok {
			p.removeEntry(e)
		}
		for i := range tx.Inputs {
			spent[tx.Inputs[i].Prev] = true
		}
	}
	for op := range spent {
		id, ok := p.byOutpoint[op]
		if !ok {
			continue
		}
		if e, ok := p.byTxID[id]; ok {
			p.removeEntry(e)
		}
	}
}

// Template is an ordered set of candidate transactions for a new block,
// within the per-class space mining.BlockSpaceAllocator grants them.
type Template struct {
	Transactions   []*wire.Transaction
	TotalFees      int64
	SerializedSize uint32
}

// BuildTemplate orders every held transaction by descending fee rate and
// greedily packs it into the space allocator grants its class, skipping
// (not stopping at) a transaction whose class is already full so a large
// low-priority transaction cannot block smaller ones behind it.
func (p *Pool) BuildTemplate(allocator *mining.BlockSpaceAllocator) *Template {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ordered := make([]*entry, 0, len(p.byTxID))
	for _, e := range p.byTxID {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].feeRate != ordered[j].feeRate {
			return ordered[i].feeRate > ordered[j].feeRate
		}
		return ordered[i].tieBreak > ordered[j].tieBreak
	})

	tracker := mining.NewTransactionSizeTracker(allocator)
	tpl := &Template{}
	for _, e := range ordered {
		size := uint32(e.size)
		if !tracker.CanAdd(e.tx.Kind, size) {
			continue
		}
		tracker.Add(e.tx.Kind, size)
		tpl.Transactions = append(tpl.Transactions, e.tx)
		tpl.TotalFees += e.fee
		tpl.SerializedSize += size
	}
	return tpl
}
