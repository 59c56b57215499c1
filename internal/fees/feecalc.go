// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package fees estimates mempool fee rates from recent network conditions,
// so a block template can order candidate transactions by fee and a relay
// policy can reject underpriced ones.
package fees

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/oxidecoin/oxided/amount"
	"github.com/oxidecoin/oxided/chaincfg"
)

// FeeRate is the fee configuration currently in effect: a floor, a
// ceiling, and a multiplier the estimator moves in response to observed
// utilization.
type FeeRate struct {
	MinRelayFee          amount.Amount
	DynamicFeeMultiplier float64
	MaxFeeRate           amount.Amount
	LastUpdated          time.Time
}

// UtilizationStats tracks recent mempool and block-inclusion behavior used
// to steer the dynamic fee multiplier and the fast/normal/slow percentile
// estimates.
type UtilizationStats struct {
	PendingTxCount      int
	PendingTxSize       int64
	BlockSpaceUsed      float64
	RecentTxFees        []int64
	LastBlockIncluded   time.Time
}

// Estimator tracks fee rates and mempool utilization and produces fee
// estimates for the mempool's ordering and relay-policy decisions.
type Estimator struct {
	mu sync.RWMutex

	chainParams *chaincfg.Params
	rate        FeeRate
	stats       UtilizationStats
}

// NewEstimator creates a fee estimator seeded from chainParams's minimum
// relay fee.
func NewEstimator(chainParams *chaincfg.Params) *Estimator {
	now := time.Now()
	minFee := amount.Amount(chainParams.MinRelayFeePerByte * 1000)
	return &Estimator{
		chainParams: chainParams,
		rate: FeeRate{
			MinRelayFee:          minFee,
			DynamicFeeMultiplier: 1.0,
			MaxFeeRate:           minFee * 100,
			LastUpdated:          now,
		},
		stats: UtilizationStats{
			RecentTxFees:      make([]int64, 0, 100),
			LastBlockIncluded: now,
		},
	}
}

// CalculateMinFee returns the minimum fee, in atoms, a transaction of
// serializedSize bytes must pay at the estimator's current rate.
func (e *Estimator) CalculateMinFee(serializedSize int64) int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	baseFee := (serializedSize * int64(e.rate.MinRelayFee)) / 1000
	dynamicFee := float64(baseFee) * e.rate.DynamicFeeMultiplier

	if dynamicFee == 0 && e.rate.MinRelayFee > 0 {
		dynamicFee = float64(e.rate.MinRelayFee)
	}

	maxFee := (serializedSize * int64(e.rate.MaxFeeRate)) / 1000
	if dynamicFee > float64(maxFee) {
		dynamicFee = float64(maxFee)
	}

	finalFee := int64(dynamicFee)
	if finalFee < 0 || finalFee > amount.MaxAmount {
		finalFee = amount.MaxAmount
	}
	return finalFee
}

// EstimateFeeRate returns a fee rate estimate (atoms per KB) for a target
// number of confirmations.
func (e *Estimator) EstimateFeeRate(targetConfirmations int) amount.Amount {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rate := float64(e.rate.MinRelayFee) * e.rate.DynamicFeeMultiplier
	rate *= e.confirmationMultiplier(targetConfirmations)

	estimated := amount.Amount(rate)
	if estimated > e.rate.MaxFeeRate {
		estimated = e.rate.MaxFeeRate
	}
	if estimated < e.rate.MinRelayFee {
		estimated = e.rate.MinRelayFee
	}
	return estimated
}

func (e *Estimator) confirmationMultiplier(targetConfirmations int) float64 {
	multiplier := 1.0
	switch {
	case targetConfirmations <= 1:
		multiplier = 2.0
	case targetConfirmations <= 3:
		multiplier = 1.5
	case targetConfirmations <= 6:
		multiplier = 1.2
	}

	switch {
	case e.stats.BlockSpaceUsed > 0.8:
		multiplier *= 1.5
	case e.stats.BlockSpaceUsed > 0.6:
		multiplier *= 1.2
	}
	return multiplier
}

// UpdateUtilization records the current mempool backlog and block-space
// utilization, and adjusts the dynamic fee multiplier in response.
func (e *Estimator) UpdateUtilization(pendingTxCount int, pendingTxSize int64, blockSpaceUsed float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stats.PendingTxCount = pendingTxCount
	e.stats.PendingTxSize = pendingTxSize
	e.stats.BlockSpaceUsed = blockSpaceUsed
	e.updateDynamicFeeMultiplier()
}

func (e *Estimator) updateDynamicFeeMultiplier() {
	newMultiplier := 1.0

	switch {
	case e.stats.BlockSpaceUsed > 0.9:
		newMultiplier *= 2.0
	case e.stats.BlockSpaceUsed > 0.7:
		newMultiplier *= 1.5
	case e.stats.BlockSpaceUsed > 0.5:
		newMultiplier *= 1.2
	}

	switch {
	case e.stats.PendingTxCount > 100:
		newMultiplier *= 1.5
	case e.stats.PendingTxCount > 50:
		newMultiplier *= 1.2
	}

	if time.Since(e.stats.LastBlockIncluded) > 10*time.Minute {
		newMultiplier *= 1.3
	}

	const smoothingFactor = 0.3
	e.rate.DynamicFeeMultiplier = (1-smoothingFactor)*e.rate.DynamicFeeMultiplier +
		smoothingFactor*newMultiplier

	if e.rate.DynamicFeeMultiplier > 10.0 {
		e.rate.DynamicFeeMultiplier = 10.0
	}
	if e.rate.DynamicFeeMultiplier < 0.5 {
		e.rate.DynamicFeeMultiplier = 0.5
	}
	e.rate.LastUpdated = time.Now()
}

// RecordTransactionFee records an observed transaction fee for future
// percentile estimates, keeping the last 100 samples.
func (e *Estimator) RecordTransactionFee(fee, size int64, confirmed bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	feeRate := (fee * 1000) / size
	e.stats.RecentTxFees = append(e.stats.RecentTxFees, feeRate)
	if len(e.stats.RecentTxFees) > 100 {
		e.stats.RecentTxFees = e.stats.RecentTxFees[1:]
	}
	if confirmed {
		e.stats.LastBlockIncluded = time.Now()
	}
}

// Stats is a snapshot of the estimator's current fee rate and percentile
// estimates.
type Stats struct {
	MinRelayFee          amount.Amount
	DynamicFeeMultiplier float64
	MaxFeeRate           amount.Amount
	PendingTxCount       int
	PendingTxSize        int64
	BlockSpaceUsed       float64
	FastFee              amount.Amount // ~1 block (90th percentile)
	NormalFee            amount.Amount // ~3 blocks (50th percentile)
	SlowFee              amount.Amount // ~6 blocks (10th percentile)
	LastUpdated          time.Time
}

// GetStats returns a snapshot of the estimator's current fee rate and
// utilization-derived percentile fee estimates.
func (e *Estimator) GetStats() *Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	fast, normal, slow := e.percentileFees()
	return &Stats{
		MinRelayFee:          e.rate.MinRelayFee,
		DynamicFeeMultiplier: e.rate.DynamicFeeMultiplier,
		MaxFeeRate:           e.rate.MaxFeeRate,
		PendingTxCount:       e.stats.PendingTxCount,
		PendingTxSize:        e.stats.PendingTxSize,
		BlockSpaceUsed:       e.stats.BlockSpaceUsed,
		FastFee:              fast,
		NormalFee:            normal,
		SlowFee:              slow,
		LastUpdated:          e.rate.LastUpdated,
	}
}

func (e *Estimator) percentileFees() (fast, normal, slow amount.Amount) {
	if len(e.stats.RecentTxFees) == 0 {
		return e.rate.MinRelayFee * 2, e.rate.MinRelayFee, e.rate.MinRelayFee / 2
	}

	sorted := make([]int64, len(e.stats.RecentTxFees))
	copy(sorted, e.stats.RecentTxFees)
	for i := 1; i < len(sorted); i++ {
		key := sorted[i]
		j := i - 1
		for j >= 0 && sorted[j] > key {
			sorted[j+1] = sorted[j]
			j--
		}
		sorted[j+1] = key
	}

	p90 := percentile(sorted, 0.90)
	p50 := percentile(sorted, 0.50)
	p10 := percentile(sorted, 0.10)
	return amount.Amount(p90), amount.Amount(p50), amount.Amount(p10)
}

func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	index := p * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}
	weight := index - float64(lower)
	return int64(float64(sorted[lower])*(1-weight) + float64(sorted[upper])*weight)
}

// ValidateTransactionFee checks that a transaction's paid fee meets the
// current minimum, and, unless allowHighFees is set, does not exceed the
// current maximum.
func (e *Estimator) ValidateTransactionFee(txFee, serializedSize int64, allowHighFees bool) error {
	minFee := e.CalculateMinFee(serializedSize)
	if txFee < minFee {
		return fmt.Errorf("insufficient fee: %d < %d atoms", txFee, minFee)
	}

	if !allowHighFees {
		e.mu.RLock()
		maxFeeRate := e.rate.MaxFeeRate
		e.mu.RUnlock()

		maxFee := (serializedSize * int64(maxFeeRate)) / 1000
		if txFee > maxFee {
			return fmt.Errorf("fee too high: %d > %d atoms", txFee, maxFee)
		}
	}
	return nil
}
