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
)

// ProposalStatus tracks a governance proposal's tallying lifecycle.
type ProposalStatus byte

const (
	ProposalOpen ProposalStatus = iota
	ProposalApproved
	ProposalRejected
)

// Proposal is the state-trie record for one governance proposal and its
// running vote tally.
type Proposal struct {
	ID                   chainhash.Hash
	Description          []byte
	VotingDeadlineHeight uint64
	YesVotes             uint64
	NoVotes              uint64
	Status               ProposalStatus
}

func proposalKey(id chainhash.Hash) []byte {
	return append([]byte{0x00}, id[:]...)
}

// voteRecordKey namespaces a single voter's ballot under its own key so a
// pubkey can be checked for a prior vote on the same proposal without
// rescanning the whole tally.
func voteRecordKey(proposalID chainhash.Hash, voterPubkey [32]byte) []byte {
	key := append([]byte{0x01}, proposalID[:]...)
	return append(key, voterPubkey[:]...)
}

// PutProposal stores p in the governance bucket.
func PutProposal(tx database.Tx, p *Proposal) error {
	bucket, err := tx.Metadata().CreateBucketIfNotExists([]byte(bucketGovernance))
	if err != nil {
		return err
	}
	return bucket.Put(proposalKey(p.ID), encodeProposal(p))
}

// GetProposal fetches the proposal with the given id, or nil if it doesn't
// exist.
func GetProposal(tx database.Tx, id chainhash.Hash) (*Proposal, error) {
	bucket := tx.Metadata().Bucket([]byte(bucketGovernance))
	if bucket == nil {
		return nil, nil
	}
	raw := bucket.Get(proposalKey(id))
	if raw == nil {
		return nil, nil
	}
	p, err := decodeProposal(raw)
	if err != nil {
		return nil, coreerr.Newf(coreerr.StorageFault, "proposal-decode", "%v", err)
	}
	return p, nil
}

// HasVoted reports whether voterPubkey has already cast a ballot on
// proposalID.
func HasVoted(tx database.Tx, proposalID chainhash.Hash, voterPubkey [32]byte) bool {
	bucket := tx.Metadata().Bucket([]byte(bucketGovernance))
	if bucket == nil {
		return false
	}
	return bucket.Get(voteRecordKey(proposalID, voterPubkey)) != nil
}

// RecordVote applies a single vote to the proposal's tally and marks
// voterPubkey as having voted, so a later ballot from the same key is
// rejected by the transaction validator before it ever reaches here.
func RecordVote(tx database.Tx, p *Proposal, voterPubkey [32]byte, approve bool) error {
	if approve {
		p.YesVotes++
	} else {
		p.NoVotes++
	}
	if err := PutProposal(tx, p); err != nil {
		return err
	}
	bucket, err := tx.Metadata().CreateBucketIfNotExists([]byte(bucketGovernance))
	if err != nil {
		return err
	}
	return bucket.Put(voteRecordKey(p.ID, voterPubkey), []byte{1})
}

func encodeProposal(p *Proposal) []byte {
	var buf bytes.Buffer
	buf.Write(p.ID[:])
	_ = writeVarBytesRaw(&buf, p.Description)
	fields := [3]uint64{p.VotingDeadlineHeight, p.YesVotes, p.NoVotes}
	for _, f := range fields {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], f)
		buf.Write(b[:])
	}
	buf.WriteByte(byte(p.Status))
	return buf.Bytes()
}

func decodeProposal(raw []byte) (*Proposal, error) {
	r := bytes.NewReader(raw)
	p := &Proposal{}
	if _, err := r.Read(p.ID[:]); err != nil {
		return nil, err
	}
	desc, err := readVarBytesRaw(r)
	if err != nil {
		return nil, err
	}
	p.Description = desc
	var vals [3]uint64
	for i := range vals {
		var b [8]byte
		if _, err := r.Read(b[:]); err != nil {
			return nil, err
		}
		vals[i] = binary.LittleEndian.Uint64(b[:])
	}
	p.VotingDeadlineHeight = vals[0]
	p.YesVotes = vals[1]
	p.NoVotes = vals[2]
	status, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	p.Status = ProposalStatus(status)
	if r.Len() != 0 {
		return nil, fmt.Errorf("trailing bytes in proposal record")
	}
	return p, nil
}

// writeVarBytesRaw and readVarBytesRaw give this package's storage codecs a
// length-prefixed byte string without importing wire's varint helpers,
// which are unexported outside that package.
func writeVarBytesRaw(buf *bytes.Buffer, b []byte) error {
	var lenBytes [8]byte
	binary.LittleEndian.PutUint64(lenBytes[:], uint64(len(b)))
	buf.Write(lenBytes[:])
	buf.Write(b)
	return nil
}

func readVarBytesRaw(r *bytes.Reader) ([]byte, error) {
	var lenBytes [8]byte
	if _, err := r.Read(lenBytes[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint64(lenBytes[:])
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
