// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"math/big"

	"github.com/oxidecoin/oxided/chainhash"
	"github.com/oxidecoin/oxided/wire"
)

// TestNetParams returns the network parameters for the Oxide test network:
// the same rules as mainnet with a much easier PoW floor and shorter
// maturity/expiry windows so a small test network still reorgs and
// retargets within a reasonable number of blocks.
func TestNetParams() *Params {
	testPowLimit := new(big.Int).Sub(new(big.Int).Lsh(bigOne, 250), bigOne)
	const testPowLimitBits = 0x2003ffff

	genesis := &wire.Block{
		Header: wire.BlockHeader{
			Version:          1,
			Height:           0,
			PrevBlockHash:    chainhash.ZeroHash,
			StateRoot:        chainhash.ZeroHash,
			Timestamp:        1_700_000_000,
			DifficultyTarget: testPowLimitBits,
			Nonce:            0,
		},
		Transactions: []*wire.Transaction{genesisCoinbase(6_400_000_000)},
	}
	genesis.Header.MerkleRoot = genesis.ComputeMerkleRoot()

	return &Params{
		Name:        "testnet",
		Net:         0x6f787474, // "oxtt"
		DefaultPort: "19108",

		GenesisBlock: genesis,
		GenesisHash:  genesis.BlockHash(),

		PowLimit:     testPowLimit,
		PowLimitBits: testPowLimitBits,

		TargetBlockSeconds: 150,
		Epoch:              2016,

		VotersPerBlock:   5,
		MinValidVotes:    3,
		PosFinalityDepth: 1,

		TicketExpiry:         512,
		CoinbaseMaturity:     16,
		MasternodeCollateral: 1_000 * 100_000_000,

		DustLimit:          500,
		MinRelayFeePerByte: 1,

		InitialMaxBlockSize: 2 << 20,
		HardMaxBlockSize:    64 << 20,
		SigOpByteCost:       20,

		MaxClockDrift: 7200,
		MaxReorgDepth: 100,

		InitialSubsidy:           6_400_000_000,
		SubsidyReductionInterval: 10_080,
		MinerRewardPermille:      600,
		VoterRewardPermille:      300,
		MasternodeRewardPermille: 100,

		InitialTicketPrice: 2 * 100_000_000,
		MinTicketPrice:     1_000_000,
		MaxTicketPrice:     1_000 * 100_000_000,
		TargetLiveTickets:  256,
		TicketPriceAlphaPM: 50,

		Seeds: nil,
	}
}
