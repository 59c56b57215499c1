// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"
	"sort"

	"github.com/oxidecoin/oxided/chainhash"
	"github.com/oxidecoin/oxided/coreerr"
	"github.com/oxidecoin/oxided/database"
	"github.com/oxidecoin/oxided/wire"
)

// TicketStatus is a ticket's position in its lifecycle.
type TicketStatus byte

const (
	TicketPending TicketStatus = iota
	TicketLive
	TicketExpired
	TicketSpent
	TicketRevoked
)

// Ticket is the state-trie record backing a purchased voting ticket.
type Ticket struct {
	ID             chainhash.Hash
	OwnerPubkey    [32]byte
	PurchaseHeight uint64
	Price          int64
	Status         TicketStatus

	// NonPartStrikes counts prior non-participation slashes against this
	// ticket, so a repeat offense burns a steeper percentage of its
	// remaining locked amount (spec.md §4.12: "burns NON_PART_PCT on
	// first occurrence with a ramp on repeat offenses").
	NonPartStrikes uint32
}

func ticketKey(id chainhash.Hash) []byte {
	return id[:]
}

// TicketIDFromOutpoint derives a ticket's id from the outpoint of the
// output that locked its bond (spec.md §3: "id: hash = (tx_id, vout)").
// A ticket redemption identifies the ticket it retires the same way, from
// the outpoint its sole input spends.
func TicketIDFromOutpoint(op wire.OutPoint) chainhash.Hash {
	return chainhash.Concat(chainhash.DomainTicketID, op.Bytes())
}

// PutTicket stores t in the ticket bucket.
func PutTicket(tx database.Tx, t *Ticket) error {
	bucket, err := tx.Metadata().CreateBucketIfNotExists([]byte(bucketTickets))
	if err != nil {
		return err
	}
	return bucket.Put(ticketKey(t.ID), encodeTicket(t))
}

// GetTicket fetches the ticket with the given id, or nil if it doesn't
// exist.
func GetTicket(tx database.Tx, id chainhash.Hash) (*Ticket, error) {
	bucket := tx.Metadata().Bucket([]byte(bucketTickets))
	if bucket == nil {
		return nil, nil
	}
	raw := bucket.Get(ticketKey(id))
	if raw == nil {
		return nil, nil
	}
	t, err := decodeTicket(raw)
	if err != nil {
		return nil, coreerr.Newf(coreerr.StorageFault, "ticket-decode", "%v", err)
	}
	return t, nil
}

// LiveTickets returns every ticket currently in the TicketLive state.
func LiveTickets(tx database.Tx) ([]*Ticket, error) {
	bucket := tx.Metadata().Bucket([]byte(bucketTickets))
	if bucket == nil {
		return nil, nil
	}
	var live []*Ticket
	err := bucket.ForEach(func(_, v []byte) error {
		t, err := decodeTicket(v)
		if err != nil {
			return err
		}
		if t.Status == TicketLive {
			live = append(live, t)
		}
		return nil
	})
	if err != nil {
		return nil, coreerr.Newf(coreerr.StorageFault, "ticket-scan", "%v", err)
	}
	return live, nil
}

func encodeTicket(t *Ticket) []byte {
	var buf bytes.Buffer
	buf.Write(t.ID[:])
	buf.Write(t.OwnerPubkey[:])
	var height [8]byte
	binary.LittleEndian.PutUint64(height[:], t.PurchaseHeight)
	buf.Write(height[:])
	var price [8]byte
	binary.LittleEndian.PutUint64(price[:], uint64(t.Price))
	buf.Write(price[:])
	buf.WriteByte(byte(t.Status))
	var strikes [4]byte
	binary.LittleEndian.PutUint32(strikes[:], t.NonPartStrikes)
	buf.Write(strikes[:])
	return buf.Bytes()
}

func decodeTicket(raw []byte) (*Ticket, error) {
	const fixedSize = chainhash.HashSize + 32 + 8 + 8 + 1 + 4
	if len(raw) != fixedSize {
		return nil, fmt.Errorf("invalid ticket record length %d", len(raw))
	}
	t := &Ticket{}
	copy(t.ID[:], raw[0:32])
	copy(t.OwnerPubkey[:], raw[32:64])
	t.PurchaseHeight = binary.LittleEndian.Uint64(raw[64:72])
	t.Price = int64(binary.LittleEndian.Uint64(raw[72:80]))
	t.Status = TicketStatus(raw[80])
	t.NonPartStrikes = binary.LittleEndian.Uint32(raw[81:85])
	return t, nil
}

// VoterSeed derives the per-block DPRF seed from the parent block's hash
// (spec.md §4.8): sigma = BLAKE3("voter-seed" || parent_hash).
func VoterSeed(parentHash chainhash.Hash) chainhash.Hash {
	return chainhash.Concat(chainhash.DomainVoterSeed, []byte("voter-seed"), parentHash[:])
}

// ticketScore is a live ticket's selection score for a given seed:
// BLAKE3(sigma || ticket_id), ordered as a 256-bit big-endian integer.
func ticketScore(seed chainhash.Hash, ticketID chainhash.Hash) *big.Int {
	digest := chainhash.Concat(chainhash.DomainVoterSeed, seed[:], ticketID[:])
	return new(big.Int).SetBytes(digest[:])
}

// SelectVoters runs the DPRF voter-selection lottery (spec.md §4.8): the
// VotersPerBlock live tickets with the smallest score under seed are
// selected, breaking ties by comparing raw ticket_id bytes lexically.
func SelectVoters(live []*Ticket, seed chainhash.Hash, votersPerBlock int) []*Ticket {
	type scored struct {
		ticket *Ticket
		score  *big.Int
	}
	candidates := make([]scored, len(live))
	for i, t := range live {
		candidates[i] = scored{ticket: t, score: ticketScore(seed, t.ID)}
	}
	sort.Slice(candidates, func(i, j int) bool {
		cmp := candidates[i].score.Cmp(candidates[j].score)
		if cmp != 0 {
			return cmp < 0
		}
		return bytes.Compare(candidates[i].ticket.ID[:], candidates[j].ticket.ID[:]) < 0
	})
	if votersPerBlock > len(candidates) {
		votersPerBlock = len(candidates)
	}
	selected := make([]*Ticket, votersPerBlock)
	for i := 0; i < votersPerBlock; i++ {
		selected[i] = candidates[i].ticket
	}
	return selected
}
