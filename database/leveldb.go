// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package database

import (
	"bytes"
	"errors"
	"sort"
	"strings"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Reserved bytes that frame a bucket's keyspace. A bucket path is a
// sequence of segments each followed by segSep; a leaf entry's key is the
// owning bucket's path followed by leafMarker and the caller's key; a
// bucket's own existence is recorded at its path followed by bucketMarker.
// Column family names are fixed literals chosen by this codebase, so the
// invariant that no segment begins with leafMarker or bucketMarker is
// trivially maintained.
const (
	segSep       byte = 0x00
	leafMarker   byte = 0xff
	bucketMarker byte = 0xfe
)

// storeReader is the read surface both *leveldb.DB (for read-write
// transactions) and *leveldb.Snapshot (for read-only transactions) satisfy.
type storeReader interface {
	Get(key []byte, ro *opt.ReadOptions) ([]byte, error)
	NewIterator(slice *util.Range, ro *opt.ReadOptions) iterator.Iterator
}

// goLevelDB adapts *leveldb.DB to the DB interface.
type goLevelDB struct {
	ldb *leveldb.DB
}

// Open opens (creating if necessary) a goleveldb store at path.
func Open(path string) (DB, error) {
	ldb, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &goLevelDB{ldb: ldb}, nil
}

func (d *goLevelDB) Close() error {
	return d.ldb.Close()
}

func (d *goLevelDB) View(fn func(tx Tx) error) error {
	snap, err := d.ldb.GetSnapshot()
	if err != nil {
		return err
	}
	defer snap.Release()
	t := &ldbTx{store: snap, writable: false}
	return fn(t)
}

func (d *goLevelDB) Update(fn func(tx Tx) error) error {
	batch := new(leveldb.Batch)
	t := &ldbTx{
		store:    d.ldb,
		writable: true,
		batch:    batch,
		overlay:  make(map[string][]byte),
		deleted:  make(map[string]bool),
	}
	if err := fn(t); err != nil {
		return err
	}
	return d.ldb.Write(batch, nil)
}

// ldbTx implements Tx. Writable transactions buffer their writes in batch
// and track pending puts/deletes in overlay/deleted so reads within the
// same transaction observe prior writes before the batch commits.
type ldbTx struct {
	store    storeReader
	writable bool
	batch    *leveldb.Batch
	overlay  map[string][]byte
	deleted  map[string]bool
}

func (t *ldbTx) getFromStore(key []byte) []byte {
	v, err := t.store.Get(key, nil)
	if err != nil {
		return nil
	}
	return v
}

func (t *ldbTx) newStoreIterator(rng *util.Range) iterator.Iterator {
	return t.store.NewIterator(rng, nil)
}

func (t *ldbTx) Metadata() Bucket {
	return &ldbBucket{tx: t, prefix: nil}
}

type ldbBucket struct {
	tx     *ldbTx
	prefix []byte
}

func childPrefix(prefix, segment []byte) []byte {
	out := make([]byte, 0, len(prefix)+len(segment)+1)
	out = append(out, prefix...)
	out = append(out, segment...)
	out = append(out, segSep)
	return out
}

func leafKey(prefix, key []byte) []byte {
	out := make([]byte, 0, len(prefix)+len(key)+1)
	out = append(out, prefix...)
	out = append(out, leafMarker)
	out = append(out, key...)
	return out
}

func markerKey(prefix []byte) []byte {
	out := make([]byte, 0, len(prefix)+1)
	out = append(out, prefix...)
	out = append(out, bucketMarker)
	return out
}

// rawGet resolves a fully-qualified key, consulting the transaction's
// pending overlay before falling through to the underlying store.
func (b *ldbBucket) rawGet(full []byte) []byte {
	k := string(full)
	if b.tx.deleted != nil && b.tx.deleted[k] {
		return nil
	}
	if b.tx.overlay != nil {
		if v, ok := b.tx.overlay[k]; ok {
			return v
		}
	}
	return b.tx.getFromStore(full)
}

func (b *ldbBucket) Get(key []byte) []byte {
	return b.rawGet(leafKey(b.prefix, key))
}

func (b *ldbBucket) Put(key, value []byte) error {
	if !b.tx.writable {
		return errReadOnly
	}
	full := leafKey(b.prefix, key)
	cp := append([]byte(nil), value...)
	b.tx.overlay[string(full)] = cp
	delete(b.tx.deleted, string(full))
	b.tx.batch.Put(full, cp)
	return nil
}

func (b *ldbBucket) Delete(key []byte) error {
	if !b.tx.writable {
		return errReadOnly
	}
	full := leafKey(b.prefix, key)
	b.tx.deleted[string(full)] = true
	delete(b.tx.overlay, string(full))
	b.tx.batch.Delete(full)
	return nil
}

func (b *ldbBucket) bucketMarkerPresent(segment []byte) bool {
	mk := markerKey(childPrefix(b.prefix, segment))
	k := string(mk)
	if b.tx.deleted[k] {
		return false
	}
	if _, ok := b.tx.overlay[k]; ok {
		return true
	}
	return b.tx.getFromStore(mk) != nil
}

func (b *ldbBucket) Bucket(key []byte) Bucket {
	if !b.bucketMarkerPresent(key) {
		return nil
	}
	return &ldbBucket{tx: b.tx, prefix: childPrefix(b.prefix, key)}
}

func (b *ldbBucket) CreateBucket(key []byte) (Bucket, error) {
	if !b.tx.writable {
		return nil, errReadOnly
	}
	if b.bucketMarkerPresent(key) {
		return nil, errBucketExists
	}
	child := childPrefix(b.prefix, key)
	mk := markerKey(child)
	b.tx.overlay[string(mk)] = []byte{}
	delete(b.tx.deleted, string(mk))
	b.tx.batch.Put(mk, []byte{})
	return &ldbBucket{tx: b.tx, prefix: child}, nil
}

func (b *ldbBucket) CreateBucketIfNotExists(key []byte) (Bucket, error) {
	if existing := b.Bucket(key); existing != nil {
		return existing, nil
	}
	return b.CreateBucket(key)
}

func (b *ldbBucket) DeleteBucket(key []byte) error {
	if !b.tx.writable {
		return errReadOnly
	}
	child := childPrefix(b.prefix, key)
	mk := markerKey(child)
	b.tx.overlay[string(mk)] = nil
	b.tx.deleted[string(mk)] = true
	b.tx.batch.Delete(mk)

	for k := range b.tx.overlay {
		if strings.HasPrefix(k, string(child)) {
			b.tx.deleted[k] = true
			delete(b.tx.overlay, k)
			b.tx.batch.Delete([]byte(k))
		}
	}

	rng := util.BytesPrefix(child)
	it := b.tx.newStoreIterator(rng)
	for it.Next() {
		k := append([]byte(nil), it.Key()...)
		b.tx.deleted[string(k)] = true
		delete(b.tx.overlay, string(k))
		b.tx.batch.Delete(k)
	}
	it.Release()
	return it.Error()
}

// ForEach walks both the committed store and the transaction's pending
// overlay, presenting a merged, deletion-aware view of the bucket's direct
// leaf entries in key order.
func (b *ldbBucket) ForEach(fn func(k, v []byte) error) error {
	rng := util.BytesPrefix(append(append([]byte(nil), b.prefix...), leafMarker))
	seen := make(map[string][]byte)
	var order [][]byte

	it := b.tx.newStoreIterator(rng)
	for it.Next() {
		k := append([]byte(nil), it.Key()...)
		v := append([]byte(nil), it.Value()...)
		if _, ok := seen[string(k)]; !ok {
			order = append(order, k)
		}
		seen[string(k)] = v
	}
	it.Release()
	if err := it.Error(); err != nil {
		return err
	}
	for full, v := range b.tx.overlay {
		if v == nil || !bytes.HasPrefix([]byte(full), rng.Start) {
			continue
		}
		if _, ok := seen[full]; !ok {
			order = append(order, []byte(full))
		}
		seen[full] = v
	}
	sort.Slice(order, func(i, j int) bool {
		return bytes.Compare(order[i], order[j]) < 0
	})

	for _, full := range order {
		if b.tx.deleted[string(full)] {
			continue
		}
		userKey := full[len(b.prefix)+1:]
		if err := fn(userKey, seen[string(full)]); err != nil {
			return err
		}
	}
	return nil
}

var (
	errReadOnly     = errors.New("database: write attempted in a read-only transaction")
	errBucketExists = errors.New("database: bucket already exists")
)
