// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"github.com/jrick/bitset"

	"github.com/oxidecoin/oxided/chainhash"
	"github.com/oxidecoin/oxided/coreerr"
	"github.com/oxidecoin/oxided/database"
	"github.com/oxidecoin/oxided/wire"
)

// MissedVoteMask tracks, for one block's DPRF-selected voter set, which of
// the selected tickets actually cast a vote, as a compact bitset addressed
// by the ticket's position in the selection (spec.md §4.8's fixed-size
// VOTERS_PER_BLOCK list). Once a block is accepted, chain.go records the
// tickets whose bit is unset as that height's missed voters; a later
// SlashNonParticipation transaction citing one of them is what slashes it
// (spec.md §4.12).
type MissedVoteMask struct {
	selected []*Ticket
	voted    bitset.Bytes
}

// NewMissedVoteMask builds a mask over selected, the DPRF's chosen voter
// set for one block, with every bit initially clear.
func NewMissedVoteMask(selected []*Ticket) *MissedVoteMask {
	return &MissedVoteMask{
		selected: selected,
		voted:    bitset.NewBytes(len(selected)),
	}
}

// MarkVoted sets the bit for ticketID if it is present in the selection.
// A ticketID not in the selection (already rejected by checkVoterSet
// before this mask is ever built) is silently ignored.
func (m *MissedVoteMask) MarkVoted(ticketID chainhash.Hash) {
	for i, t := range m.selected {
		if t.ID == ticketID {
			m.voted.Set(i)
			return
		}
	}
}

// Missed returns the selected tickets whose bit was never set: the ones
// the DPRF chose but that cast no valid vote for this block.
func (m *MissedVoteMask) Missed() []*Ticket {
	var out []*Ticket
	for i, t := range m.selected {
		if !m.voted.Get(i) {
			out = append(out, t)
		}
	}
	return out
}

// ComputeMissedVoters re-derives blk's DPRF voter selection and returns the
// selected tickets that did not cast a valid vote in blk, for the chain
// manager to record as missed voters once the block is accepted. It assumes blk already
// passed checkVoterSet, so every vote in blk.TicketVotes is either from a
// selected ticket or would have already been rejected.
func ComputeMissedVoters(blk *wire.Block, ctx *BlockValidationContext) []*Ticket {
	seed := VoterSeed(ctx.ParentHash)
	selected := SelectVoters(ctx.LiveTickets, seed, ctx.Params.VotersPerBlock)
	mask := NewMissedVoteMask(selected)
	for i := range blk.TicketVotes {
		mask.MarkVoted(blk.TicketVotes[i].TicketID)
	}
	return mask.Missed()
}

// putMissedVoters persists the tickets the DPRF selected but that did not
// cast a valid vote at height, as a flat run of 32-byte ticket ids. This is
// the only durable record of a height's non-participation: a later
// SlashNonParticipation certificate (spec.md §4.12(a)) has nothing else to
// verify "ticket t was selected and didn't vote" against, since the chain
// has no way to re-derive an arbitrary past height's live ticket set.
// Writing it inside the same Store.ApplyBlock transaction as the rest of
// the block's effects means a reorg's rollback journal undoes it exactly
// like every other per-block state change.
func putMissedVoters(tx database.Tx, height uint64, missed []*Ticket) error {
	bucket, err := tx.Metadata().CreateBucketIfNotExists([]byte(bucketMissedVotes))
	if err != nil {
		return err
	}
	raw := make([]byte, 0, len(missed)*chainhash.HashSize)
	for _, t := range missed {
		raw = append(raw, t.ID[:]...)
	}
	return bucket.Put(heightKey(height), raw)
}

// WasMissedVoter reports whether ticketID was selected to vote at height
// and recorded there as not having cast a valid vote.
func WasMissedVoter(tx database.Tx, height uint64, ticketID chainhash.Hash) (bool, error) {
	bucket := tx.Metadata().Bucket([]byte(bucketMissedVotes))
	if bucket == nil {
		return false, nil
	}
	raw := bucket.Get(heightKey(height))
	if len(raw)%chainhash.HashSize != 0 {
		return false, coreerr.New(coreerr.StorageFault, "missed-voters-decode", "missed voter record length is not a multiple of the hash size")
	}
	for i := 0; i < len(raw); i += chainhash.HashSize {
		id, err := chainhash.NewHash(raw[i : i+chainhash.HashSize])
		if err != nil {
			return false, err
		}
		if id == ticketID {
			return true, nil
		}
	}
	return false, nil
}
