// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"math/big"

	"github.com/oxidecoin/oxided/chainhash"
	"github.com/oxidecoin/oxided/wire"
)

// SimNetParams returns network parameters intended only for local testing:
// a trivial PoW floor and tiny maturity/expiry windows so a single process
// can advance the chain through many blocks near-instantly.
func SimNetParams() *Params {
	simPowLimit := new(big.Int).Sub(new(big.Int).Lsh(bigOne, 255), bigOne)
	const simPowLimitBits = 0x207fffff

	genesis := &wire.Block{
		Header: wire.BlockHeader{
			Version:          1,
			Height:           0,
			PrevBlockHash:    chainhash.ZeroHash,
			StateRoot:        chainhash.ZeroHash,
			Timestamp:        1_700_000_000,
			DifficultyTarget: simPowLimitBits,
			Nonce:            0,
		},
		Transactions: []*wire.Transaction{genesisCoinbase(6_400_000_000)},
	}
	genesis.Header.MerkleRoot = genesis.ComputeMerkleRoot()

	return &Params{
		Name:        "simnet",
		Net:         0x6f787373, // "oxss"
		DefaultPort: "19555",

		GenesisBlock: genesis,
		GenesisHash:  genesis.BlockHash(),

		PowLimit:     simPowLimit,
		PowLimitBits: simPowLimitBits,

		TargetBlockSeconds: 1,
		Epoch:              16,

		VotersPerBlock:   5,
		MinValidVotes:    3,
		PosFinalityDepth: 1,

		TicketExpiry:         64,
		CoinbaseMaturity:     4,
		MasternodeCollateral: 100 * 100_000_000,

		DustLimit:          500,
		MinRelayFeePerByte: 1,

		InitialMaxBlockSize: 2 << 20,
		HardMaxBlockSize:    64 << 20,
		SigOpByteCost:       20,

		MaxClockDrift: 7200,
		MaxReorgDepth: 100,

		InitialSubsidy:           6_400_000_000,
		SubsidyReductionInterval: 128,
		MinerRewardPermille:      600,
		VoterRewardPermille:      300,
		MasternodeRewardPermille: 100,

		InitialTicketPrice: 2 * 100_000_000,
		MinTicketPrice:     1_000_000,
		MaxTicketPrice:     1_000 * 100_000_000,
		TargetLiveTickets:  32,
		TicketPriceAlphaPM: 50,

		Seeds: nil,
	}
}
