// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"

	"github.com/oxidecoin/oxided/chainhash"
)

// BlockHeaderSize is the fixed 128-byte canonical size of a BlockHeader
// (spec.md §3): 4 + 8 + 32 + 32 + 32 + 8 + 4 + 8.
const BlockHeaderSize = 4 + 8 + 32 + 32 + 32 + 8 + 4 + 8

// BlockHeader is the 128-byte fixed-layout consensus header.
type BlockHeader struct {
	Version          uint32
	Height           uint64
	PrevBlockHash    chainhash.Hash
	MerkleRoot       chainhash.Hash
	StateRoot        chainhash.Hash
	Timestamp        uint64
	DifficultyTarget uint32
	Nonce            uint64
}

// Encode writes the header's fixed-width canonical encoding.
func (h *BlockHeader) Encode(w io.Writer) error {
	if err := writeUint32(w, h.Version); err != nil {
		return err
	}
	if err := writeUint64(w, h.Height); err != nil {
		return err
	}
	if err := writeHash(w, h.PrevBlockHash); err != nil {
		return err
	}
	if err := writeHash(w, h.MerkleRoot); err != nil {
		return err
	}
	if err := writeHash(w, h.StateRoot); err != nil {
		return err
	}
	if err := writeUint64(w, h.Timestamp); err != nil {
		return err
	}
	if err := writeUint32(w, h.DifficultyTarget); err != nil {
		return err
	}
	return writeUint64(w, h.Nonce)
}

// Decode reads a header from its fixed-width canonical encoding.
func (h *BlockHeader) Decode(r io.Reader) error {
	var err error
	if h.Version, err = readUint32(r); err != nil {
		return err
	}
	if h.Height, err = readUint64(r); err != nil {
		return err
	}
	if h.PrevBlockHash, err = readHash(r); err != nil {
		return err
	}
	if h.MerkleRoot, err = readHash(r); err != nil {
		return err
	}
	if h.StateRoot, err = readHash(r); err != nil {
		return err
	}
	if h.Timestamp, err = readUint64(r); err != nil {
		return err
	}
	if h.DifficultyTarget, err = readUint32(r); err != nil {
		return err
	}
	if h.Nonce, err = readUint64(r); err != nil {
		return err
	}
	return nil
}

// Bytes returns the 128-byte canonical encoding of the header.
func (h *BlockHeader) Bytes() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, BlockHeaderSize))
	_ = h.Encode(buf)
	return buf.Bytes()
}

// DecodeBlockHeader decodes a BlockHeader from exactly b's bytes.
func DecodeBlockHeader(b []byte) (*BlockHeader, error) {
	if len(b) != BlockHeaderSize {
		return nil, errTrailingData
	}
	h := new(BlockHeader)
	if err := h.Decode(bytes.NewReader(b)); err != nil {
		return nil, err
	}
	return h, nil
}

// Hash returns the header's block hash: BLAKE3 of its canonical encoding.
// Note this does not include the OxideHash PoW digest — that is a
// consensus *check* over the header, not the header's identity.
func (h *BlockHeader) Hash() chainhash.Hash {
	return chainhash.HashB(chainhash.DomainBlockHeader, h.Bytes())
}

// VoteChoice is a ticket's vote on the parent block header it is selected
// for.
type VoteChoice byte

const (
	VoteYes     VoteChoice = 0
	VoteNo      VoteChoice = 1
	VoteAbstain VoteChoice = 2
)

func (v VoteChoice) valid() bool { return v <= VoteAbstain }

// TicketVote is a single voter's 129-byte canonical vote record.
type TicketVote struct {
	TicketID  chainhash.Hash
	BlockHash chainhash.Hash
	Vote      VoteChoice
	Signature [64]byte
}

// Encode writes the vote's fixed-width canonical encoding (32+32+1+64=129
// bytes).
func (v *TicketVote) Encode(w io.Writer) error {
	if err := writeHash(w, v.TicketID); err != nil {
		return err
	}
	if err := writeHash(w, v.BlockHash); err != nil {
		return err
	}
	if _, err := w.Write([]byte{byte(v.Vote)}); err != nil {
		return err
	}
	return writeSig(w, v.Signature)
}

// Decode reads a TicketVote from its canonical encoding.
func (v *TicketVote) Decode(r io.Reader) error {
	var err error
	if v.TicketID, err = readHash(r); err != nil {
		return err
	}
	if v.BlockHash, err = readHash(r); err != nil {
		return err
	}
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return err
	}
	vote := VoteChoice(b[0])
	if !vote.valid() {
		return errUnknownDiscriminator
	}
	v.Vote = vote
	if v.Signature, err = readSig(r); err != nil {
		return err
	}
	return nil
}

// Bytes returns the 129-byte canonical encoding of the vote.
func (v *TicketVote) Bytes() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, TicketVoteBytes))
	_ = v.Encode(buf)
	return buf.Bytes()
}

// SigMessage returns the message a vote's signature is computed over: the
// parent block hash it is voting on (spec.md §4.7 point 6).
func (v *TicketVote) SigMessage() []byte {
	h := v.BlockHash
	return h[:]
}

// Block is a full header, its voter set, and its transactions.
type Block struct {
	Header       BlockHeader
	TicketVotes  []TicketVote
	Transactions []*Transaction
}

// Encode writes the block's canonical encoding: the header, then a
// length-prefixed vote sequence, then a length-prefixed transaction
// sequence.
func (b *Block) Encode(w io.Writer) error {
	if err := b.Header.Encode(w); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(b.TicketVotes))); err != nil {
		return err
	}
	for i := range b.TicketVotes {
		if err := b.TicketVotes[i].Encode(w); err != nil {
			return err
		}
	}
	if err := WriteVarInt(w, uint64(len(b.Transactions))); err != nil {
		return err
	}
	for _, tx := range b.Transactions {
		if err := tx.Encode(w); err != nil {
			return err
		}
	}
	return nil
}

// maxVotesPerBlock and maxTxPerBlock bound how many sequence elements a
// decoder will ever allocate for, independent of any per-item limit.
const (
	maxVotesPerBlock = 64
	maxTxPerBlock    = 1 << 20
)

// Decode reads a Block from its canonical encoding.
func (b *Block) Decode(r io.Reader) error {
	if err := b.Header.Decode(r); err != nil {
		return err
	}
	nVotes, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if nVotes > maxVotesPerBlock {
		return errTooManyVotes
	}
	votes := make([]TicketVote, nVotes)
	for i := range votes {
		if err := votes[i].Decode(r); err != nil {
			return err
		}
	}
	nTx, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if nTx > maxTxPerBlock {
		return errTooManyTx
	}
	txs := make([]*Transaction, nTx)
	for i := range txs {
		tx := new(Transaction)
		if err := tx.Decode(r); err != nil {
			return err
		}
		txs[i] = tx
	}
	b.TicketVotes = votes
	b.Transactions = txs
	return nil
}

// Bytes returns the full canonical encoding of the block.
func (b *Block) Bytes() []byte {
	var buf bytes.Buffer
	_ = b.Encode(&buf)
	return buf.Bytes()
}

// DecodeBlock decodes a Block from exactly b's bytes, failing on trailing
// data.
func DecodeBlock(raw []byte) (*Block, error) {
	r := bytes.NewReader(raw)
	blk := new(Block)
	if err := blk.Decode(r); err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, errTrailingData
	}
	return blk, nil
}

// SerializeSize returns the serialized size, in bytes, of the block.
func (b *Block) SerializeSize() int {
	return len(b.Bytes())
}

// BlockHash returns the block's header hash.
func (b *Block) BlockHash() chainhash.Hash {
	return b.Header.Hash()
}

// ComputeMerkleRoot computes the Merkle root over the block's transactions
// using each transaction's MerkleLeaf.
func (b *Block) ComputeMerkleRoot() chainhash.Hash {
	leaves := make([]chainhash.Hash, len(b.Transactions))
	for i, tx := range b.Transactions {
		leaves[i] = tx.MerkleLeaf()
	}
	return chainhash.MerkleRoot(leaves)
}
