// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package database defines the transactional key/value interface the
// consensus core's storage layer (chain state, UTXO set, ticket pool,
// masternode registry, governance tallies, and the reorg journal) is built
// on, and a goleveldb-backed implementation of it.
package database

// Bucket is a named, nestable key/value namespace within a transaction.
// Buckets are how the single flat keyspace LevelDB exposes is partitioned
// into the consensus core's logical column families.
type Bucket interface {
	// Get returns the value for key, or nil if it does not exist. The
	// returned slice must not be retained past the enclosing transaction.
	Get(key []byte) []byte

	// Put sets key to value, creating or overwriting any existing entry.
	Put(key, value []byte) error

	// Delete removes key. It is not an error to delete a key that does
	// not exist.
	Delete(key []byte) error

	// ForEach calls fn for every key/value pair directly in the bucket, in
	// key order. It does not recurse into nested buckets.
	ForEach(fn func(k, v []byte) error) error

	// Bucket returns the nested bucket named key, or nil if it does not
	// exist.
	Bucket(key []byte) Bucket

	// CreateBucket creates and returns a new nested bucket named key. It
	// returns an error if the bucket already exists.
	CreateBucket(key []byte) (Bucket, error)

	// CreateBucketIfNotExists is like CreateBucket but returns the
	// existing bucket instead of erroring if key is already a bucket.
	CreateBucketIfNotExists(key []byte) (Bucket, error)

	// DeleteBucket deletes the nested bucket named key and everything
	// under it.
	DeleteBucket(key []byte) error
}

// Tx is a single read-only or read-write database transaction.
type Tx interface {
	// Metadata returns the top-level bucket all of a transaction's reads
	// and writes are rooted at.
	Metadata() Bucket
}

// DB is a transactional key/value store. View transactions see a
// consistent, isolated snapshot; Update transactions are serialized against
// each other and commit atomically.
type DB interface {
	// View executes fn within a read-only transaction. Any error fn
	// returns is propagated; the transaction is always discarded.
	View(fn func(tx Tx) error) error

	// Update executes fn within a read-write transaction, committing its
	// writes atomically if fn returns nil, or discarding them otherwise.
	Update(fn func(tx Tx) error) error

	// Close releases the underlying storage handle.
	Close() error
}
