// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chaincfg defines the protocol-wide constants and per-network
// parameter sets (mainnet, testnet, simnet) that every other consensus
// package takes as configuration rather than hard-coding.
package chaincfg

import (
	"math/big"

	"github.com/oxidecoin/oxided/chainhash"
	"github.com/oxidecoin/oxided/wire"
)

// Params holds all protocol parameters for one network. Every value that
// spec.md §6 fixes "for the initial network" is reproduced here rather than
// hard-coded at its use-site so that a future network (testnet, a fork)
// only needs a new Params value.
type Params struct {
	Name        string
	Net         uint32
	DefaultPort string

	GenesisBlock *wire.Block
	GenesisHash  chainhash.Hash

	// PowLimit is the easiest allowed target; PowLimitBits is its compact
	// encoding and the header.difficulty_target of the genesis block.
	PowLimit     *big.Int
	PowLimitBits uint32

	TargetBlockSeconds int64
	Epoch              uint64

	VotersPerBlock   int
	MinValidVotes    int
	PosFinalityDepth uint64

	TicketExpiry      uint64
	CoinbaseMaturity  uint64
	MasternodeCollateral int64

	DustLimit          int64
	MinRelayFeePerByte int64

	InitialMaxBlockSize int
	HardMaxBlockSize    int
	SigOpByteCost       int

	MaxClockDrift int64
	MaxReorgDepth uint64

	// Subsidy schedule: block_subsidy(height) starts at InitialSubsidy and
	// halves every SubsidyReductionInterval blocks. The reward is split
	// miner/voters/masternodes by the *RewardPermille fields (parts per
	// thousand, summing to 1000), resolving SPEC_FULL.md §9's reward-split
	// open question (60/30/10).
	InitialSubsidy           int64
	SubsidyReductionInterval uint64
	MinerRewardPermille      int64
	VoterRewardPermille      int64
	MasternodeRewardPermille int64

	// Ticket price retargeting (spec.md §4.9).
	InitialTicketPrice int64
	MinTicketPrice     int64
	MaxTicketPrice     int64
	TargetLiveTickets  int64
	TicketPriceAlphaPM int64 // K_P expressed in parts-per-thousand (50 = 0.05)

	Seeds []string
}
