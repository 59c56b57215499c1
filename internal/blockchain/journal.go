// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"bytes"
	"encoding/binary"

	"github.com/oxidecoin/oxided/chainhash"
	"github.com/oxidecoin/oxided/coreerr"
	"github.com/oxidecoin/oxided/database"
)

// journalRecord captures one bucket write's before-image, so a reorg can
// undo a block's effects without knowing anything about the domain (UTXO
// set, ticket pool, masternode registry, governance tally) the write
// belonged to.
type journalRecord struct {
	path     [][]byte // nested bucket names, outermost first
	key      []byte
	oldValue []byte // nil if the key did not exist before this write
	existed  bool
}

// recordingTx wraps a database.Tx, capturing the before-image of every
// Put/Delete performed through it into records.
type recordingTx struct {
	underlying database.Tx
	records    *[]journalRecord
}

func (t *recordingTx) Metadata() database.Bucket {
	return &recordingBucket{underlying: t.underlying.Metadata(), records: t.records}
}

type recordingBucket struct {
	underlying database.Bucket
	path       [][]byte
	records    *[]journalRecord
}

func (b *recordingBucket) Get(key []byte) []byte { return b.underlying.Get(key) }

func (b *recordingBucket) Put(key, value []byte) error {
	old := b.underlying.Get(key)
	rec := journalRecord{path: b.path, key: append([]byte(nil), key...), existed: old != nil}
	if old != nil {
		rec.oldValue = append([]byte(nil), old...)
	}
	*b.records = append(*b.records, rec)
	return b.underlying.Put(key, value)
}

func (b *recordingBucket) Delete(key []byte) error {
	old := b.underlying.Get(key)
	if old == nil {
		return b.underlying.Delete(key)
	}
	rec := journalRecord{path: b.path, key: append([]byte(nil), key...), oldValue: append([]byte(nil), old...), existed: true}
	*b.records = append(*b.records, rec)
	return b.underlying.Delete(key)
}

func (b *recordingBucket) ForEach(fn func(k, v []byte) error) error {
	return b.underlying.ForEach(fn)
}

func (b *recordingBucket) Bucket(key []byte) database.Bucket {
	child := b.underlying.Bucket(key)
	if child == nil {
		return nil
	}
	return &recordingBucket{underlying: child, path: appendPath(b.path, key), records: b.records}
}

func (b *recordingBucket) CreateBucket(key []byte) (database.Bucket, error) {
	child, err := b.underlying.CreateBucket(key)
	if err != nil {
		return nil, err
	}
	return &recordingBucket{underlying: child, path: appendPath(b.path, key), records: b.records}, nil
}

func (b *recordingBucket) CreateBucketIfNotExists(key []byte) (database.Bucket, error) {
	child, err := b.underlying.CreateBucketIfNotExists(key)
	if err != nil {
		return nil, err
	}
	return &recordingBucket{underlying: child, path: appendPath(b.path, key), records: b.records}, nil
}

func (b *recordingBucket) DeleteBucket(key []byte) error {
	return b.underlying.DeleteBucket(key)
}

func appendPath(path [][]byte, next []byte) [][]byte {
	out := make([][]byte, len(path)+1)
	copy(out, path)
	out[len(path)] = append([]byte(nil), next...)
	return out
}

// ApplyBlock runs fn within a recording transaction and, if it succeeds,
// persists both fn's writes and a journal entry under blockHash capturing
// their before-images, so RevertBlock can later undo exactly this block.
func (s *Store) ApplyBlock(blockHash chainhash.Hash, fn func(tx database.Tx) error) error {
	var records []journalRecord
	err := s.db.Update(func(tx database.Tx) error {
		rtx := &recordingTx{underlying: tx, records: &records}
		if err := fn(rtx); err != nil {
			return err
		}
		bucket, err := tx.Metadata().CreateBucketIfNotExists([]byte(bucketJournal))
		if err != nil {
			return err
		}
		return bucket.Put(blockHash[:], encodeJournal(records))
	})
	if err != nil {
		return err
	}
	return nil
}

// RevertBlock undoes the writes recorded for blockHash, restoring every
// touched key to its before-image (or deleting it, if it did not exist
// before), and removes the journal entry itself.
func (s *Store) RevertBlock(blockHash chainhash.Hash) error {
	return s.db.Update(func(tx database.Tx) error {
		bucket := tx.Metadata().Bucket([]byte(bucketJournal))
		if bucket == nil {
			return coreerr.New(coreerr.StorageFault, "missing-journal", "no journal bucket present")
		}
		raw := bucket.Get(blockHash[:])
		if raw == nil {
			return coreerr.New(coreerr.StorageFault, "missing-journal-entry", "no journal entry for block")
		}
		records, err := decodeJournal(raw)
		if err != nil {
			return coreerr.Newf(coreerr.StorageFault, "journal-decode", "%v", err)
		}
		for i := len(records) - 1; i >= 0; i-- {
			rec := records[i]
			target := navigateTo(tx.Metadata(), rec.path)
			if target == nil {
				continue
			}
			if rec.existed {
				if err := target.Put(rec.key, rec.oldValue); err != nil {
					return err
				}
			} else {
				if err := target.Delete(rec.key); err != nil {
					return err
				}
			}
		}
		return bucket.Delete(blockHash[:])
	})
}

func navigateTo(root database.Bucket, path [][]byte) database.Bucket {
	b := root
	for _, name := range path {
		b = b.Bucket(name)
		if b == nil {
			return nil
		}
	}
	return b
}

// encodeJournal and decodeJournal serialize a block's journal records as a
// flat length-prefixed sequence: for each record, the path depth, each
// path element, the key, and the old value (with a presence flag).
func encodeJournal(records []journalRecord) []byte {
	var buf bytes.Buffer
	writeLen := func(n int) { var b [4]byte; binary.LittleEndian.PutUint32(b[:], uint32(n)); buf.Write(b[:]) }
	writeBytes := func(b []byte) { writeLen(len(b)); buf.Write(b) }

	writeLen(len(records))
	for _, r := range records {
		writeLen(len(r.path))
		for _, p := range r.path {
			writeBytes(p)
		}
		writeBytes(r.key)
		if r.existed {
			buf.WriteByte(1)
			writeBytes(r.oldValue)
		} else {
			buf.WriteByte(0)
		}
	}
	return buf.Bytes()
}

func decodeJournal(raw []byte) ([]journalRecord, error) {
	r := bytes.NewReader(raw)
	readLen := func() (int, error) {
		var b [4]byte
		if _, err := r.Read(b[:]); err != nil {
			return 0, err
		}
		return int(binary.LittleEndian.Uint32(b[:])), nil
	}
	readBytes := func() ([]byte, error) {
		n, err := readLen()
		if err != nil {
			return nil, err
		}
		b := make([]byte, n)
		if n > 0 {
			if _, err := r.Read(b); err != nil {
				return nil, err
			}
		}
		return b, nil
	}

	n, err := readLen()
	if err != nil {
		return nil, err
	}
	records := make([]journalRecord, n)
	for i := range records {
		pathLen, err := readLen()
		if err != nil {
			return nil, err
		}
		path := make([][]byte, pathLen)
		for j := range path {
			path[j], err = readBytes()
			if err != nil {
				return nil, err
			}
		}
		key, err := readBytes()
		if err != nil {
			return nil, err
		}
		existedByte, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		rec := journalRecord{path: path, key: key, existed: existedByte == 1}
		if rec.existed {
			rec.oldValue, err = readBytes()
			if err != nil {
				return nil, err
			}
		}
		records[i] = rec
	}
	return records, nil
}
