// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"math/big"

	"github.com/oxidecoin/oxided/blockchain/standalone"
	"github.com/oxidecoin/oxided/chaincfg"
)

// RetargetDifficulty computes the next epoch's compact difficulty target
// (spec.md §4.9): the ratio of actual to expected epoch duration is
// clamped to [1/4, 4], and the new target is the old target scaled by that
// ratio, capped at the network's PowLimit (the easiest allowed target).
func RetargetDifficulty(params *chaincfg.Params, oldTargetCompact uint32, actualSeconds int64) uint32 {
	expected := int64(params.Epoch) * params.TargetBlockSeconds

	minActual := expected / 4
	maxActual := expected * 4
	switch {
	case actualSeconds < minActual:
		actualSeconds = minActual
	case actualSeconds > maxActual:
		actualSeconds = maxActual
	}

	oldTarget := standalone.CompactToBig(oldTargetCompact)
	newTarget := new(big.Int).Mul(oldTarget, big.NewInt(actualSeconds))
	newTarget.Div(newTarget, big.NewInt(expected))

	if newTarget.Cmp(params.PowLimit) > 0 {
		newTarget = params.PowLimit
	}
	return standalone.BigToCompact(newTarget)
}

// RetargetTicketPrice computes the next epoch's ticket price (spec.md
// §4.9): P_new = P_old * (1 + K_P*(N_L - TARGET_LIVE)/TARGET_LIVE), clamped
// to [MinTicketPrice, MaxTicketPrice] and computed entirely in integer
// arithmetic (K_P as parts-per-thousand) since the consensus core never
// uses floating point.
func RetargetTicketPrice(params *chaincfg.Params, oldPrice, meanLiveTickets int64) int64 {
	target := params.TargetLiveTickets
	if target == 0 {
		return oldPrice
	}
	diff := meanLiveTickets - target
	delta := oldPrice * params.TicketPriceAlphaPM * diff / (target * 1000)
	newPrice := oldPrice + delta

	switch {
	case newPrice < params.MinTicketPrice:
		newPrice = params.MinTicketPrice
	case newPrice > params.MaxTicketPrice:
		newPrice = params.MaxTicketPrice
	}
	return newPrice
}

// MeanLiveTickets returns the arithmetic mean of the given per-block live
// ticket counts, truncated to an integer.
func MeanLiveTickets(counts []int64) int64 {
	if len(counts) == 0 {
		return 0
	}
	var sum int64
	for _, c := range counts {
		sum += c
	}
	return sum / int64(len(counts))
}
