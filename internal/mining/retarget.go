// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import "sort"

// Block size bounds; every retargeted limit is clamped to this range
// regardless of network.
const (
	MinBlockSize = 1 << 20  // 1 MiB
	MaxBlockSize = 64 << 20 // 64 MiB

	maxGrowthNum = 110 // +10% cap on growth
	maxGrowthDen = 100
	maxShrinkNum = 95 // -5% cap on shrinkage
	maxShrinkDen = 100
)

// RetargetBlockSize computes the adaptive maximum block size for the next
// epoch from the serialized sizes of the last epoch's blocks and the
// current limit. It is called once every chaincfg.Params.Epoch blocks.
//
// The new limit tracks the median of recentSizes, but movement per epoch
// is capped: growth is limited to +10% and shrinkage to -5% of the
// current limit, and the result is always clamped to
// [MinBlockSize, MaxBlockSize].
func RetargetBlockSize(currentLimit uint32, recentSizes []uint32) uint32 {
	if len(recentSizes) == 0 {
		return clampBlockSize(currentLimit)
	}

	median := medianU32(recentSizes)

	upperBound := uint64(currentLimit) * maxGrowthNum / maxGrowthDen
	lowerBound := uint64(currentLimit) * maxShrinkNum / maxShrinkDen

	next := uint64(median)
	switch {
	case next > upperBound:
		next = upperBound
	case next < lowerBound:
		next = lowerBound
	}

	return clampBlockSize(uint32(next))
}

func clampBlockSize(size uint32) uint32 {
	if size < MinBlockSize {
		return MinBlockSize
	}
	if size > MaxBlockSize {
		return MaxBlockSize
	}
	return size
}

func medianU32(values []uint32) uint32 {
	sorted := make([]uint32, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return uint32((uint64(sorted[mid-1]) + uint64(sorted[mid])) / 2)
}

// MaxSigOpsForBlockSize returns MAX_SIGOPS_PER_BLOCK for a block size
// limit: the limit divided by the per-transaction sigop byte cost, so the
// signature-operation budget tracks the adaptive block size proportionally.
func MaxSigOpsForBlockSize(blockSizeLimit uint32, sigOpByteCost int) int {
	if sigOpByteCost <= 0 {
		return 0
	}
	return int(blockSizeLimit) / sigOpByteCost
}
