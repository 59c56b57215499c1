// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"github.com/oxidecoin/oxided/coreerr"
	"github.com/oxidecoin/oxided/database"
	"github.com/oxidecoin/oxided/wire"
)

// UTXOView is a read/write overlay over the committed UTXO set: lookups
// fall through to the underlying bucket, but every spend and every new
// output is held in memory until the caller decides to flush it. A block
// or mempool transaction validates one transaction at a time against the
// same view, so double-spends within a single candidate block are caught
// by the overlay itself without touching the database.
type UTXOView struct {
	tx database.Tx

	// overlay holds outpoints this view has added (entry != nil) or spent
	// (entry == nil, key present) since it was opened.
	overlay map[wire.OutPoint]*UTXOEntry
}

// NewUTXOView opens a view rooted at tx.
func NewUTXOView(tx database.Tx) *UTXOView {
	return &UTXOView{tx: tx, overlay: make(map[wire.OutPoint]*UTXOEntry)}
}

func utxoKey(op wire.OutPoint) []byte {
	return op.Bytes()
}

// Entry returns the UTXO entry for op, or nil if it does not exist or has
// been spent within this view.
func (v *UTXOView) Entry(op wire.OutPoint) (*UTXOEntry, error) {
	if e, ok := v.overlay[op]; ok {
		return e, nil
	}
	bucket := v.tx.Metadata().Bucket([]byte(bucketUTXO))
	if bucket == nil {
		return nil, nil
	}
	raw := bucket.Get(utxoKey(op))
	if raw == nil {
		return nil, nil
	}
	entry, err := decodeUTXOEntry(raw)
	if err != nil {
		return nil, coreerr.Newf(coreerr.StorageFault, "utxo-decode", "%v", err)
	}
	return entry, nil
}

// Spend marks op as spent within this view. It does not check that op
// currently exists; callers validate existence via Entry first.
func (v *UTXOView) Spend(op wire.OutPoint) {
	v.overlay[op] = nil
}

// AddOutput records a newly created output as spendable within this view.
func (v *UTXOView) AddOutput(op wire.OutPoint, out wire.TxOutput, creationHeight uint64, isCoinbase bool) {
	v.overlay[op] = &UTXOEntry{Output: out, CreationHeight: creationHeight, IsCoinbase: isCoinbase}
}

// ApplyTransaction updates the view for a single validated transaction:
// its inputs are spent (skipped for coinbase, which has no real prior
// outputs) and its outputs become newly spendable.
func (v *UTXOView) ApplyTransaction(tx *wire.Transaction, height uint64) {
	if !tx.IsCoinbase() {
		for i := range tx.Inputs {
			v.Spend(tx.Inputs[i].Prev)
		}
	}
	txid := tx.TxID()
	for i := range tx.Outputs {
		op := wire.OutPoint{Hash: txid, Index: uint32(i)}
		v.AddOutput(op, tx.Outputs[i], height, tx.IsCoinbase())
	}
}

// Flush writes every entry touched by this view to the committed bucket:
// added entries are encoded and put, spent entries are deleted.
func (v *UTXOView) Flush() error {
	bucket, err := v.tx.Metadata().CreateBucketIfNotExists([]byte(bucketUTXO))
	if err != nil {
		return err
	}
	for op, entry := range v.overlay {
		key := utxoKey(op)
		if entry == nil {
			if err := bucket.Delete(key); err != nil {
				return err
			}
			continue
		}
		if err := bucket.Put(key, encodeUTXOEntry(entry)); err != nil {
			return err
		}
	}
	return nil
}
