// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/oxidecoin/oxided/chainhash"
	"github.com/oxidecoin/oxided/coreerr"
	"github.com/oxidecoin/oxided/database"
	"github.com/oxidecoin/oxided/wire"
)

// MasternodeStatus is a registered masternode's standing in the PoSe
// (Proof-of-Service) quorum.
type MasternodeStatus byte

const (
	// MasternodeActive nodes count toward both the quorum numerator and
	// denominator.
	MasternodeActive MasternodeStatus = iota
	// MasternodeProbation nodes have missed service and count toward the
	// quorum denominator only, diluting the active share until they
	// either recover to Active or are banned (Open Question (c)).
	MasternodeProbation
	MasternodeBanned
)

// MasternodeEntry is the state-trie record for one registered masternode.
type MasternodeEntry struct {
	ID               chainhash.Hash
	OperatorPubkey   [32]byte
	CollateralOutput wire.OutPoint
	RegisterHeight   uint64
	Status           MasternodeStatus
	PoseFailureCount uint32
	LastPoseHeight   uint64
}

func masternodeKey(id chainhash.Hash) []byte {
	return id[:]
}

// MasternodeIDFromOutpoint derives a masternode's id from its collateral
// outpoint (spec.md §3: "id: hash (collateral outpoint)").
func MasternodeIDFromOutpoint(op wire.OutPoint) chainhash.Hash {
	return chainhash.Concat(chainhash.DomainMasternodeID, op.Bytes())
}

// DeleteMasternode removes m's entry entirely, used when its collateral is
// spent (retiring the masternode rather than slashing it).
func DeleteMasternode(tx database.Tx, id chainhash.Hash) error {
	bucket := tx.Metadata().Bucket([]byte(bucketMasternodes))
	if bucket == nil {
		return nil
	}
	return bucket.Delete(masternodeKey(id))
}

// PutMasternode stores m in the masternode bucket.
func PutMasternode(tx database.Tx, m *MasternodeEntry) error {
	bucket, err := tx.Metadata().CreateBucketIfNotExists([]byte(bucketMasternodes))
	if err != nil {
		return err
	}
	return bucket.Put(masternodeKey(m.ID), encodeMasternode(m))
}

// GetMasternode fetches the masternode with the given id, or nil if it
// doesn't exist.
func GetMasternode(tx database.Tx, id chainhash.Hash) (*MasternodeEntry, error) {
	bucket := tx.Metadata().Bucket([]byte(bucketMasternodes))
	if bucket == nil {
		return nil, nil
	}
	raw := bucket.Get(masternodeKey(id))
	if raw == nil {
		return nil, nil
	}
	m, err := decodeMasternode(raw)
	if err != nil {
		return nil, coreerr.Newf(coreerr.StorageFault, "masternode-decode", "%v", err)
	}
	return m, nil
}

// QuorumCounts reports the masternode PoSe quorum's numerator (active
// nodes) and denominator (active plus probation nodes); banned nodes count
// toward neither, per Open Question (c): probation dilutes the active
// share without removing a node from the quorum outright.
func QuorumCounts(tx database.Tx) (active, total int, err error) {
	bucket := tx.Metadata().Bucket([]byte(bucketMasternodes))
	if bucket == nil {
		return 0, 0, nil
	}
	scanErr := bucket.ForEach(func(_, v []byte) error {
		m, err := decodeMasternode(v)
		if err != nil {
			return err
		}
		switch m.Status {
		case MasternodeActive:
			active++
			total++
		case MasternodeProbation:
			total++
		}
		return nil
	})
	if scanErr != nil {
		return 0, 0, coreerr.Newf(coreerr.StorageFault, "masternode-scan", "%v", scanErr)
	}
	return active, total, nil
}

func encodeMasternode(m *MasternodeEntry) []byte {
	var buf bytes.Buffer
	buf.Write(m.ID[:])
	buf.Write(m.OperatorPubkey[:])
	_ = m.CollateralOutput.Encode(&buf)
	var height [8]byte
	binary.LittleEndian.PutUint64(height[:], m.RegisterHeight)
	buf.Write(height[:])
	buf.WriteByte(byte(m.Status))
	var failures [4]byte
	binary.LittleEndian.PutUint32(failures[:], m.PoseFailureCount)
	buf.Write(failures[:])
	var lastPose [8]byte
	binary.LittleEndian.PutUint64(lastPose[:], m.LastPoseHeight)
	buf.Write(lastPose[:])
	return buf.Bytes()
}

func decodeMasternode(raw []byte) (*MasternodeEntry, error) {
	r := bytes.NewReader(raw)
	m := &MasternodeEntry{}
	if _, err := r.Read(m.ID[:]); err != nil {
		return nil, err
	}
	if _, err := r.Read(m.OperatorPubkey[:]); err != nil {
		return nil, err
	}
	if err := m.CollateralOutput.Decode(r); err != nil {
		return nil, err
	}
	var height [8]byte
	if _, err := r.Read(height[:]); err != nil {
		return nil, err
	}
	m.RegisterHeight = binary.LittleEndian.Uint64(height[:])
	status, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	m.Status = MasternodeStatus(status)
	var failures [4]byte
	if _, err := r.Read(failures[:]); err != nil {
		return nil, err
	}
	m.PoseFailureCount = binary.LittleEndian.Uint32(failures[:])
	var lastPose [8]byte
	if _, err := r.Read(lastPose[:]); err != nil {
		return nil, err
	}
	m.LastPoseHeight = binary.LittleEndian.Uint64(lastPose[:])
	if r.Len() != 0 {
		return nil, fmt.Errorf("trailing bytes in masternode entry")
	}
	return m, nil
}
