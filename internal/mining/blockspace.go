// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package mining assembles block templates: it partitions available block
// space between regular and stake transactions with a guaranteed floor for
// each, tracks the pending bytes a caller wants to include per class, and
// retargets the block's maximum size from recent history the way
// chaincfg's other adaptive parameters are retargeted.
package mining

import (
	"github.com/oxidecoin/oxided/amount"
	"github.com/oxidecoin/oxided/chaincfg"
	"github.com/oxidecoin/oxided/internal/fees"
	"github.com/oxidecoin/oxided/wire"
)

// TxClass partitions pending transactions into the two pools the block
// space allocator balances between. Stake transactions are ticket
// purchases, ticket redemptions, governance proposals/votes, and slashing
// proofs; everything else is regular.
type TxClass int

const (
	ClassRegular TxClass = iota
	ClassStake
)

// ClassOf reports which allocator class a transaction kind belongs to.
func ClassOf(kind wire.TxKind) TxClass {
	switch kind {
	case wire.KindTicketPurchase, wire.KindTicketRedemption,
		wire.KindGovernanceProposal, wire.KindGovernanceVote,
		wire.KindSlashNonParticipation, wire.KindSlashEquivocation:
		return ClassStake
	default:
		return ClassRegular
	}
}

// BlockSpaceAllocator manages the allocation of block space between
// regular and stake transactions following a guaranteed-floor-plus-
// overflow-redistribution strategy: each class is first guaranteed its
// fraction of the block, and any space a class leaves unused is handed to
// the other class if it has more pending than its own floor.
type BlockSpaceAllocator struct {
	maxBlockSize uint32

	// regularFraction and stakeFraction need not sum to 1; headroom left
	// over belongs to neither class's floor and stays unallocated, since
	// overflow redistribution only moves the unused part of a class's own
	// floor to the other class.
	regularFraction float64
	stakeFraction   float64

	chainParams  *chaincfg.Params
	feeEstimator *fees.Estimator
}

// NewBlockSpaceAllocator creates a new block space allocator with fixed
// regular/stake allocation fractions of 70% and 30% (guaranteeing stake
// transactions room in a full block); chainParams does not affect them.
func NewBlockSpaceAllocator(maxBlockSize uint32, chainParams *chaincfg.Params) *BlockSpaceAllocator {
	return &BlockSpaceAllocator{
		maxBlockSize:    maxBlockSize,
		regularFraction: 0.70,
		stakeFraction:   0.30,
		chainParams:     chainParams,
	}
}

// SetFeeEstimator wires a fee estimator into the allocator so block
// template assembly can validate and rank candidate transactions by fee
// as it fills each class's space.
func (bsa *BlockSpaceAllocator) SetFeeEstimator(feeEstimator *fees.Estimator) {
	bsa.feeEstimator = feeEstimator
}

// ClassAllocation is one class's guaranteed, final, pending, and used
// space within a block.
type ClassAllocation struct {
	BaseAllocation  uint32
	FinalAllocation uint32
	PendingBytes    uint32
	UsedBytes       uint32
}

// AllocationResult is the complete regular/stake space allocation for a
// block.
type AllocationResult struct {
	Regular         ClassAllocation
	Stake           ClassAllocation
	TotalAllocated  uint32
	TotalUsed       uint32
	OverflowHandled uint32
}

// ForClass returns the allocation for the given class.
func (r *AllocationResult) ForClass(class TxClass) ClassAllocation {
	if class == ClassStake {
		return r.Stake
	}
	return r.Regular
}

// UtilizationPercentage returns the overall block space utilization as a
// percentage of TotalAllocated.
func (r *AllocationResult) UtilizationPercentage() float64 {
	if r.TotalAllocated == 0 {
		return 0
	}
	return (float64(r.TotalUsed) / float64(r.TotalAllocated)) * 100
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

// AllocateBlockSpace computes the final space allocation for a block given
// the pending bytes available in each class.
//
//  1. If a class has no pending bytes, the other class gets the entire
//     block.
//  2. Otherwise the block is split by fraction between the two classes.
//  3. Any class that doesn't use its full base allocation gives the
//     unused space to the other class, capped at that class's remaining
//     demand.
func (bsa *BlockSpaceAllocator) AllocateBlockSpace(regularPending, stakePending uint32) *AllocationResult {
	if stakePending == 0 {
		used := minU32(regularPending, bsa.maxBlockSize)
		return &AllocationResult{
			Regular: ClassAllocation{
				BaseAllocation:  bsa.maxBlockSize,
				FinalAllocation: bsa.maxBlockSize,
				PendingBytes:    regularPending,
				UsedBytes:       used,
			},
			TotalAllocated: bsa.maxBlockSize,
			TotalUsed:      used,
		}
	}
	if regularPending == 0 {
		used := minU32(stakePending, bsa.maxBlockSize)
		return &AllocationResult{
			Stake: ClassAllocation{
				BaseAllocation:  bsa.maxBlockSize,
				FinalAllocation: bsa.maxBlockSize,
				PendingBytes:    stakePending,
				UsedBytes:       used,
			},
			TotalAllocated: bsa.maxBlockSize,
			TotalUsed:      used,
		}
	}

	regularBase := uint32(float64(bsa.maxBlockSize) * bsa.regularFraction)
	stakeBase := uint32(float64(bsa.maxBlockSize) * bsa.stakeFraction)

	regularUsed := minU32(regularPending, regularBase)
	stakeUsed := minU32(stakePending, stakeBase)

	regularUnused := regularBase - regularUsed
	stakeUnused := stakeBase - stakeUsed

	regularFinal := regularBase
	stakeFinal := stakeBase
	var overflowHandled uint32

	if stakeUnused > 0 {
		grant := minU32(stakeUnused, regularPending-regularUsed)
		regularFinal += grant
		stakeFinal -= grant
		regularUsed += grant
		overflowHandled += grant
	}
	if regularUnused > 0 {
		grant := minU32(regularUnused, stakePending-stakeUsed)
		stakeFinal += grant
		regularFinal -= grant
		stakeUsed += grant
		overflowHandled += grant
	}

	result := &AllocationResult{
		Regular: ClassAllocation{
			BaseAllocation:  regularBase,
			FinalAllocation: regularFinal,
			PendingBytes:    regularPending,
			UsedBytes:       regularUsed,
		},
		Stake: ClassAllocation{
			BaseAllocation:  stakeBase,
			FinalAllocation: stakeFinal,
			PendingBytes:    stakePending,
			UsedBytes:       stakeUsed,
		},
		TotalAllocated:  regularFinal + stakeFinal,
		TotalUsed:       regularUsed + stakeUsed,
		OverflowHandled: overflowHandled,
	}

	if bsa.feeEstimator != nil {
		bsa.feeEstimator.UpdateUtilization(0, int64(result.TotalUsed), result.UtilizationPercentage()/100)
	}
	return result
}

// RecordTransactionFee forwards fee to the allocator's fee estimator, if
// one has been wired in, so future estimates reflect observed behavior.
func (bsa *BlockSpaceAllocator) RecordTransactionFee(fee, size int64, confirmed bool) {
	if bsa.feeEstimator != nil {
		bsa.feeEstimator.RecordTransactionFee(fee, size, confirmed)
	}
}

// ValidateTransactionFees checks txFee against the wired fee estimator, or
// allows the transaction through unconditionally if none is set.
func (bsa *BlockSpaceAllocator) ValidateTransactionFees(txFee, serializedSize int64, allowHighFees bool) error {
	if bsa.feeEstimator == nil {
		return nil
	}
	return bsa.feeEstimator.ValidateTransactionFee(txFee, serializedSize, allowHighFees)
}

// FeeEstimate returns a fee-rate estimate for targetConfirmations from the
// wired fee estimator, or zero if none is set.
func (bsa *BlockSpaceAllocator) FeeEstimate(targetConfirmations int) amount.Amount {
	if bsa.feeEstimator == nil {
		return 0
	}
	return bsa.feeEstimator.EstimateFeeRate(targetConfirmations)
}

// TransactionSizeTracker accumulates candidate transaction bytes by class
// as a block template is assembled, so a miner can ask "does this next
// transaction still fit" without recomputing the whole allocation from
// scratch each time.
type TransactionSizeTracker struct {
	sizes     [2]uint32
	allocator *BlockSpaceAllocator
}

// NewTransactionSizeTracker creates a new transaction size tracker bound to
// allocator.
func NewTransactionSizeTracker(allocator *BlockSpaceAllocator) *TransactionSizeTracker {
	return &TransactionSizeTracker{allocator: allocator}
}

// Add records tx's serialized size against its class.
func (t *TransactionSizeTracker) Add(kind wire.TxKind, serializedSize uint32) {
	t.sizes[ClassOf(kind)] += serializedSize
}

// Allocation returns the current block space allocation given the sizes
// tracked so far.
func (t *TransactionSizeTracker) Allocation() *AllocationResult {
	return t.allocator.AllocateBlockSpace(t.sizes[ClassRegular], t.sizes[ClassStake])
}

// CanAdd reports whether a transaction of serializedSize and kind can be
// added without pushing its class over the allocation it would receive.
func (t *TransactionSizeTracker) CanAdd(kind wire.TxKind, serializedSize uint32) bool {
	class := ClassOf(kind)
	testSizes := t.sizes
	testSizes[class] += serializedSize

	result := t.allocator.AllocateBlockSpace(testSizes[ClassRegular], testSizes[ClassStake])
	return testSizes[class] <= result.ForClass(class).FinalAllocation
}

// Reset clears all tracked transaction sizes.
func (t *TransactionSizeTracker) Reset() {
	t.sizes = [2]uint32{}
}
