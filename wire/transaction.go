// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"
	"math"

	"github.com/oxidecoin/oxided/chainhash"
)

// TxKind is the one-byte discriminator of a Transaction's tagged variant.
type TxKind byte

// Transaction kinds, in the order spec.md §3 lists them.
const (
	KindStandard TxKind = iota
	KindCoinbase
	KindTicketPurchase
	KindTicketRedemption
	KindMasternodeRegister
	KindMasternodeCollateralSpend
	KindGovernanceProposal
	KindGovernanceVote
	KindSlashNonParticipation
	KindSlashEquivocation
)

func (k TxKind) String() string {
	switch k {
	case KindStandard:
		return "standard"
	case KindCoinbase:
		return "coinbase"
	case KindTicketPurchase:
		return "ticket-purchase"
	case KindTicketRedemption:
		return "ticket-redemption"
	case KindMasternodeRegister:
		return "masternode-register"
	case KindMasternodeCollateralSpend:
		return "masternode-collateral-spend"
	case KindGovernanceProposal:
		return "governance-proposal"
	case KindGovernanceVote:
		return "governance-vote"
	case KindSlashNonParticipation:
		return "slash-non-participation"
	case KindSlashEquivocation:
		return "slash-equivocation"
	default:
		return "unknown"
	}
}

func (k TxKind) valid() bool {
	return k <= KindSlashEquivocation
}

// TicketPurchasePayload is the variant-specific data of a TicketPurchase
// transaction: which output is the locked ticket bond, and the pubkey that
// will be entitled to vote with it.
type TicketPurchasePayload struct {
	TicketOutputIndex uint32
	OwnerPubkey       [32]byte
}

// MasternodeRegisterPayload is the variant-specific data of a
// MasternodeRegister transaction.
type MasternodeRegisterPayload struct {
	CollateralOutputIndex uint32
	OperatorPubkey        [32]byte
}

// MasternodeCollateralSpendPayload identifies which masternode's collateral
// is being spent (retiring the masternode).
type MasternodeCollateralSpendPayload struct {
	MasternodeID chainhash.Hash
}

// GovernanceProposalPayload carries the metadata of a new governance
// proposal.
type GovernanceProposalPayload struct {
	ProposalID           chainhash.Hash
	Description          []byte
	VotingDeadlineHeight uint64
}

// GovernanceVotePayload is a single signed vote on a proposal.
type GovernanceVotePayload struct {
	ProposalID  chainhash.Hash
	VoterPubkey [32]byte
	Approve     bool
	Signature   [64]byte
}

// SlashNonParticipationPayload is a certificate proving a selected ticket
// failed to vote on the block at MissedHeight.
type SlashNonParticipationPayload struct {
	TicketID     chainhash.Hash
	MissedHeight uint64
}

// SlashEquivocationPayload is proof that a single ticket signed two
// conflicting block hashes at the same height.
type SlashEquivocationPayload struct {
	TicketID   chainhash.Hash
	Height     uint64
	BlockHashA chainhash.Hash
	SigA       [64]byte
	BlockHashB chainhash.Hash
	SigB       [64]byte
}

// Transaction is the tagged-variant record spec.md §3 defines. Standard,
// Coinbase, and TicketRedemption carry no extra payload beyond their
// inputs/outputs; the remaining kinds attach one of the payload structs
// above.
type Transaction struct {
	Kind     TxKind
	Version  uint32
	Inputs   []TxInput
	Outputs  []TxOutput
	LockTime uint32

	TicketPurchase            *TicketPurchasePayload
	MasternodeRegister        *MasternodeRegisterPayload
	MasternodeCollateralSpend *MasternodeCollateralSpendPayload
	GovernanceProposal        *GovernanceProposalPayload
	GovernanceVote            *GovernanceVotePayload
	SlashNonParticipation     *SlashNonParticipationPayload
	SlashEquivocation         *SlashEquivocationPayload
}

// Encode writes the canonical encoding of the transaction: discriminator,
// version, inputs, outputs, lock_time, then the kind-specific payload
// fields in declared order.
func (tx *Transaction) Encode(w io.Writer) error {
	return tx.encode(w, true)
}

// encode writes the transaction; when includeWitness is false the
// per-input witness sequences are omitted, used for the tx_id preimage.
func (tx *Transaction) encode(w io.Writer, includeWitness bool) error {
	if _, err := w.Write([]byte{byte(tx.Kind)}); err != nil {
		return err
	}
	if err := writeUint32(w, tx.Version); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(tx.Inputs))); err != nil {
		return err
	}
	for i := range tx.Inputs {
		var err error
		if includeWitness {
			err = tx.Inputs[i].Encode(w)
		} else {
			err = tx.Inputs[i].encodeForTxID(w)
		}
		if err != nil {
			return err
		}
	}
	if err := WriteVarInt(w, uint64(len(tx.Outputs))); err != nil {
		return err
	}
	for i := range tx.Outputs {
		if err := tx.Outputs[i].Encode(w); err != nil {
			return err
		}
	}
	if err := writeUint32(w, tx.LockTime); err != nil {
		return err
	}
	return tx.encodePayload(w)
}

func (tx *Transaction) encodePayload(w io.Writer) error {
	switch tx.Kind {
	case KindStandard, KindCoinbase, KindTicketRedemption:
		return nil
	case KindTicketPurchase:
		p := tx.TicketPurchase
		if err := writeUint32(w, p.TicketOutputIndex); err != nil {
			return err
		}
		return writePubkey(w, p.OwnerPubkey)
	case KindMasternodeRegister:
		p := tx.MasternodeRegister
		if err := writeUint32(w, p.CollateralOutputIndex); err != nil {
			return err
		}
		return writePubkey(w, p.OperatorPubkey)
	case KindMasternodeCollateralSpend:
		return writeHash(w, tx.MasternodeCollateralSpend.MasternodeID)
	case KindGovernanceProposal:
		p := tx.GovernanceProposal
		if err := writeHash(w, p.ProposalID); err != nil {
			return err
		}
		if err := WriteVarBytes(w, p.Description); err != nil {
			return err
		}
		return writeUint64(w, p.VotingDeadlineHeight)
	case KindGovernanceVote:
		p := tx.GovernanceVote
		if err := writeHash(w, p.ProposalID); err != nil {
			return err
		}
		if err := writePubkey(w, p.VoterPubkey); err != nil {
			return err
		}
		approve := byte(0)
		if p.Approve {
			approve = 1
		}
		if _, err := w.Write([]byte{approve}); err != nil {
			return err
		}
		return writeSig(w, p.Signature)
	case KindSlashNonParticipation:
		p := tx.SlashNonParticipation
		if err := writeHash(w, p.TicketID); err != nil {
			return err
		}
		return writeUint64(w, p.MissedHeight)
	case KindSlashEquivocation:
		p := tx.SlashEquivocation
		if err := writeHash(w, p.TicketID); err != nil {
			return err
		}
		if err := writeUint64(w, p.Height); err != nil {
			return err
		}
		if err := writeHash(w, p.BlockHashA); err != nil {
			return err
		}
		if err := writeSig(w, p.SigA); err != nil {
			return err
		}
		if err := writeHash(w, p.BlockHashB); err != nil {
			return err
		}
		return writeSig(w, p.SigB)
	default:
		return errUnknownDiscriminator
	}
}

// Decode reads a Transaction from its canonical encoding. It fails on an
// unknown discriminator, trailing bytes (checked by the caller via a
// bounded reader), or an IO count exceeding MaxTxIOCount.
func (tx *Transaction) Decode(r io.Reader) error {
	var kindByte [1]byte
	if _, err := io.ReadFull(r, kindByte[:]); err != nil {
		return err
	}
	kind := TxKind(kindByte[0])
	if !kind.valid() {
		return errUnknownDiscriminator
	}
	version, err := readUint32(r)
	if err != nil {
		return err
	}
	nIn, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if nIn > MaxTxIOCount {
		return errTooManyIO
	}
	inputs := make([]TxInput, nIn)
	for i := range inputs {
		if err := inputs[i].Decode(r); err != nil {
			return err
		}
	}
	nOut, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if nIn+nOut > MaxTxIOCount {
		return errTooManyIO
	}
	outputs := make([]TxOutput, nOut)
	for i := range outputs {
		if err := outputs[i].Decode(r); err != nil {
			return err
		}
	}
	lockTime, err := readUint32(r)
	if err != nil {
		return err
	}

	tx.Kind = kind
	tx.Version = version
	tx.Inputs = inputs
	tx.Outputs = outputs
	tx.LockTime = lockTime
	return tx.decodePayload(r)
}

func (tx *Transaction) decodePayload(r io.Reader) error {
	switch tx.Kind {
	case KindStandard, KindCoinbase, KindTicketRedemption:
		return nil
	case KindTicketPurchase:
		idx, err := readUint32(r)
		if err != nil {
			return err
		}
		pk, err := readPubkey(r)
		if err != nil {
			return err
		}
		tx.TicketPurchase = &TicketPurchasePayload{TicketOutputIndex: idx, OwnerPubkey: pk}
		return nil
	case KindMasternodeRegister:
		idx, err := readUint32(r)
		if err != nil {
			return err
		}
		pk, err := readPubkey(r)
		if err != nil {
			return err
		}
		tx.MasternodeRegister = &MasternodeRegisterPayload{CollateralOutputIndex: idx, OperatorPubkey: pk}
		return nil
	case KindMasternodeCollateralSpend:
		h, err := readHash(r)
		if err != nil {
			return err
		}
		tx.MasternodeCollateralSpend = &MasternodeCollateralSpendPayload{MasternodeID: h}
		return nil
	case KindGovernanceProposal:
		id, err := readHash(r)
		if err != nil {
			return err
		}
		desc, err := ReadVarBytes(r, MaxScriptBytes)
		if err != nil {
			return err
		}
		deadline, err := readUint64(r)
		if err != nil {
			return err
		}
		tx.GovernanceProposal = &GovernanceProposalPayload{
			ProposalID: id, Description: desc, VotingDeadlineHeight: deadline,
		}
		return nil
	case KindGovernanceVote:
		id, err := readHash(r)
		if err != nil {
			return err
		}
		pk, err := readPubkey(r)
		if err != nil {
			return err
		}
		var approveByte [1]byte
		if _, err := io.ReadFull(r, approveByte[:]); err != nil {
			return err
		}
		if approveByte[0] > 1 {
			return errUnknownDiscriminator
		}
		sig, err := readSig(r)
		if err != nil {
			return err
		}
		tx.GovernanceVote = &GovernanceVotePayload{
			ProposalID: id, VoterPubkey: pk, Approve: approveByte[0] == 1, Signature: sig,
		}
		return nil
	case KindSlashNonParticipation:
		id, err := readHash(r)
		if err != nil {
			return err
		}
		height, err := readUint64(r)
		if err != nil {
			return err
		}
		tx.SlashNonParticipation = &SlashNonParticipationPayload{TicketID: id, MissedHeight: height}
		return nil
	case KindSlashEquivocation:
		id, err := readHash(r)
		if err != nil {
			return err
		}
		height, err := readUint64(r)
		if err != nil {
			return err
		}
		hashA, err := readHash(r)
		if err != nil {
			return err
		}
		sigA, err := readSig(r)
		if err != nil {
			return err
		}
		hashB, err := readHash(r)
		if err != nil {
			return err
		}
		sigB, err := readSig(r)
		if err != nil {
			return err
		}
		tx.SlashEquivocation = &SlashEquivocationPayload{
			TicketID: id, Height: height,
			BlockHashA: hashA, SigA: sigA,
			BlockHashB: hashB, SigB: sigB,
		}
		return nil
	default:
		return errUnknownDiscriminator
	}
}

// Bytes returns the full canonical encoding (including witness data) of the
// transaction.
func (tx *Transaction) Bytes() []byte {
	var buf bytes.Buffer
	_ = tx.Encode(&buf)
	return buf.Bytes()
}

// DecodeTransaction decodes a Transaction from exactly b's bytes, failing
// on any trailing data.
func DecodeTransaction(b []byte) (*Transaction, error) {
	r := bytes.NewReader(b)
	tx := new(Transaction)
	if err := tx.Decode(r); err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, errTrailingData
	}
	return tx, nil
}

// TxID returns the transaction's id: BLAKE3 over the canonical encoding
// excluding witness data (spec.md §4.2; Open Question (b)).
func (tx *Transaction) TxID() chainhash.Hash {
	var buf bytes.Buffer
	_ = tx.encode(&buf, false)
	return chainhash.HashB(chainhash.DomainTx, buf.Bytes())
}

// SigHash returns the per-input signature hash message for inputIndex,
// per spec.md §4.3: the transaction encoded with every input's unlock
// script blanked except inputIndex, whose (blanked) unlock script is
// replaced by prevLockScript, the referenced output's lock script. This
// binds a signature to the exact set of inputs, outputs, and the output
// being spent, without requiring the signer to know any other input's
// spend conditions.
func (tx *Transaction) SigHash(inputIndex int, prevLockScript []byte) chainhash.Hash {
	var buf bytes.Buffer
	buf.WriteByte(byte(tx.Kind))
	_ = writeUint32(&buf, tx.Version)
	_ = WriteVarInt(&buf, uint64(len(tx.Inputs)))
	for i := range tx.Inputs {
		if i == inputIndex {
			_ = tx.Inputs[i].Prev.Encode(&buf)
			_ = WriteVarBytes(&buf, prevLockScript)
			_ = writeUint32(&buf, tx.Inputs[i].Sequence)
			continue
		}
		_ = tx.Inputs[i].encodeForSigHash(&buf)
	}
	_ = WriteVarInt(&buf, uint64(len(tx.Outputs)))
	for i := range tx.Outputs {
		_ = tx.Outputs[i].Encode(&buf)
	}
	_ = writeUint32(&buf, tx.LockTime)
	_ = tx.encodePayload(&buf)
	return chainhash.HashB(chainhash.DomainTx, buf.Bytes())
}

// WitnessHash returns a second identifier covering the full encoding
// including witness data. The consensus core never uses this for
// dedup/ordering; it exists for the external P2P layer's malleability-safe
// relay deduplication (SPEC_FULL.md §9, Open Question (b)).
func (tx *Transaction) WitnessHash() chainhash.Hash {
	return chainhash.HashB(chainhash.DomainTx, tx.Bytes())
}

// MerkleLeaf returns the domain-tagged Merkle leaf hash for this
// transaction (spec.md §4.1: "Merkle leaf for a transaction is BLAKE3 of
// its canonical encoding").
func (tx *Transaction) MerkleLeaf() chainhash.Hash {
	return chainhash.HashB(chainhash.DomainMerkleLeaf, tx.Bytes())
}

// IsCoinbase reports whether tx is structurally a coinbase: exactly one
// input with a null previous outpoint (max index, zero hash), tagged with
// KindCoinbase.
func (tx *Transaction) IsCoinbase() bool {
	if tx.Kind != KindCoinbase {
		return false
	}
	if len(tx.Inputs) != 1 {
		return false
	}
	prev := tx.Inputs[0].Prev
	return prev.Index == math.MaxUint32 && prev.Hash.IsZero()
}

// SumOutputs returns the total value of all outputs.
func (tx *Transaction) SumOutputs() int64 {
	var total int64
	for i := range tx.Outputs {
		total += tx.Outputs[i].Value
	}
	return total
}

// SerializeSize returns the size, in bytes, of the transaction's full
// canonical encoding.
func (tx *Transaction) SerializeSize() int {
	return len(tx.Bytes())
}
