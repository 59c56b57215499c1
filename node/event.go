// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"github.com/oxidecoin/oxided/chainhash"
	"github.com/oxidecoin/oxided/internal/blockchain"
	"github.com/oxidecoin/oxided/wire"
)

// EventKind tags the variant of an Event.
type EventKind int

const (
	// EventNewBlock fires once per accepted block that becomes the new tip
	// of the active chain. In a reorg it names only the new tip; the other
	// blocks the reorg connected are listed in the EventReorg event that
	// precedes it.
	EventNewBlock EventKind = iota
	// EventNewTx fires once a transaction is admitted to the mempool.
	EventNewTx
	// EventReorg fires once per reorg, just before the EventNewBlock event
	// for the new tip, so a subscriber can distinguish a reorg from
	// ordinary tip extension without re-deriving it.
	EventReorg
)

// Event is the tagged union Subscribe delivers: a new block attached to
// the active chain, a transaction admitted to the mempool, or a reorg
// summary.
type Event struct {
	Kind EventKind

	BlockHash chainhash.Hash
	Block     *wire.Block

	Tx *wire.Transaction

	Reorg *ReorgInfo
}

// ReorgInfo describes one reorg: the blocks disconnected from the old
// branch and the blocks connected from the new one, both in the order
// they were applied.
type ReorgInfo struct {
	Disconnected []chainhash.Hash
	Connected    []chainhash.Hash
}

// eventsFromAcceptance translates a blockchain.BlockAcceptanceResult into
// the Event sequence Subscribe's consumers see for one AcceptBlock call.
func eventsFromAcceptance(blk *wire.Block, res *blockchain.BlockAcceptanceResult) []Event {
	if !res.Connected {
		return nil
	}
	var out []Event
	if res.Reorg {
		out = append(out, Event{
			Kind: EventReorg,
			Reorg: &ReorgInfo{
				Disconnected: res.DisconnectedBlocks,
				Connected:    res.ConnectedBlocks,
			},
		})
	}
	out = append(out, Event{Kind: EventNewBlock, BlockHash: res.NewTip, Block: blk})
	return out
}
