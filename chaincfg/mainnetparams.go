// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"math/big"

	"github.com/oxidecoin/oxided/chainhash"
	"github.com/oxidecoin/oxided/wire"
)

var bigOne = big.NewInt(1)

// MainNetParams returns the network parameters for the main Oxide network.
func MainNetParams() *Params {
	// mainPowLimit is the easiest allowed target: 2^232 - 1, giving the
	// memory-hard OxideHash function a generous difficulty-1 floor for
	// bootstrap CPU mining.
	mainPowLimit := new(big.Int).Sub(new(big.Int).Lsh(bigOne, 232), bigOne)
	const mainPowLimitBits = 0x1e00ffff

	genesis := &wire.Block{
		Header: wire.BlockHeader{
			Version:          1,
			Height:           0,
			PrevBlockHash:    chainhash.ZeroHash,
			StateRoot:        chainhash.ZeroHash,
			Timestamp:        1_700_000_000,
			DifficultyTarget: mainPowLimitBits,
			Nonce:            0,
		},
		Transactions: []*wire.Transaction{genesisCoinbase(6_400_000_000)},
	}
	genesis.Header.MerkleRoot = genesis.ComputeMerkleRoot()

	return &Params{
		Name:        "mainnet",
		Net:         0x6f786d6e, // "oxmn"
		DefaultPort: "9108",

		GenesisBlock: genesis,
		GenesisHash:  genesis.BlockHash(),

		PowLimit:     mainPowLimit,
		PowLimitBits: mainPowLimitBits,

		TargetBlockSeconds: 150,
		Epoch:              2016,

		VotersPerBlock:   5,
		MinValidVotes:    3,
		PosFinalityDepth: 1,

		TicketExpiry:         4096,
		CoinbaseMaturity:     100,
		MasternodeCollateral: 100_000 * 100_000_000,

		DustLimit:          500,
		MinRelayFeePerByte: 1,

		InitialMaxBlockSize: 2 << 20,
		HardMaxBlockSize:    64 << 20,
		SigOpByteCost:       20,

		MaxClockDrift: 7200,
		MaxReorgDepth: 100,

		InitialSubsidy:           6_400_000_000,
		SubsidyReductionInterval: 420_480,
		MinerRewardPermille:      600,
		VoterRewardPermille:      300,
		MasternodeRewardPermille: 100,

		InitialTicketPrice: 2 * 100_000_000,
		MinTicketPrice:     1_000_000,
		MaxTicketPrice:     1_000 * 100_000_000,
		TargetLiveTickets:  8192,
		TicketPriceAlphaPM: 50,

		Seeds: nil,
	}
}

// genesisCoinbase builds the single-transaction coinbase that seeds the
// genesis block, paying subsidy entirely to the miner share since there are
// no voters or masternodes yet at height 0.
func genesisCoinbase(subsidy int64) *wire.Transaction {
	return &wire.Transaction{
		Kind:    wire.KindCoinbase,
		Version: 1,
		Inputs: []wire.TxInput{{
			Prev:     wire.OutPoint{Hash: chainhash.ZeroHash, Index: ^uint32(0)},
			Sequence: 0xffffffff,
		}},
		Outputs: []wire.TxOutput{{
			Value:      subsidy,
			LockScript: []byte{0x51},
		}},
	}
}
