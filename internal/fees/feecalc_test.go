// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fees

import (
	"testing"

	"github.com/oxidecoin/oxided/chaincfg"
)

func TestNewEstimator(t *testing.T) {
	params := chaincfg.SimNetParams()
	e := NewEstimator(params)

	if e.rate.MinRelayFee <= 0 {
		t.Fatal("expected a positive minimum relay fee")
	}
	if e.rate.DynamicFeeMultiplier != 1.0 {
		t.Fatalf("expected initial multiplier 1.0, got %f", e.rate.DynamicFeeMultiplier)
	}
}

func TestCalculateMinFeeScalesWithSize(t *testing.T) {
	e := NewEstimator(chaincfg.SimNetParams())

	small := e.CalculateMinFee(250)
	large := e.CalculateMinFee(2500)
	if large <= small {
		t.Fatalf("expected fee to scale with size: small=%d large=%d", small, large)
	}
}

func TestEstimateFeeRateRisesWithTighterTarget(t *testing.T) {
	e := NewEstimator(chaincfg.SimNetParams())

	nextBlock := e.EstimateFeeRate(1)
	sixBlocks := e.EstimateFeeRate(6)
	if nextBlock < sixBlocks {
		t.Fatalf("expected next-block estimate >= 6-block estimate, got %d < %d", nextBlock, sixBlocks)
	}
}

func TestUpdateUtilizationRaisesMultiplierUnderLoad(t *testing.T) {
	e := NewEstimator(chaincfg.SimNetParams())
	before := e.rate.DynamicFeeMultiplier

	e.UpdateUtilization(200, 1_000_000, 0.95)

	if e.rate.DynamicFeeMultiplier <= before {
		t.Fatalf("expected multiplier to increase under heavy load: before=%f after=%f",
			before, e.rate.DynamicFeeMultiplier)
	}
}

func TestValidateTransactionFeeRejectsUnderpaid(t *testing.T) {
	e := NewEstimator(chaincfg.SimNetParams())
	minFee := e.CalculateMinFee(500)

	if err := e.ValidateTransactionFee(minFee-1, 500, false); err == nil {
		t.Fatal("expected an underpaid fee to be rejected")
	}
	if err := e.ValidateTransactionFee(minFee, 500, false); err != nil {
		t.Fatalf("expected the minimum fee to be accepted, got %v", err)
	}
}

func TestValidateTransactionFeeRejectsTooHighUnlessAllowed(t *testing.T) {
	e := NewEstimator(chaincfg.SimNetParams())
	hugeFee := int64(1_000_000_000)

	if err := e.ValidateTransactionFee(hugeFee, 250, false); err == nil {
		t.Fatal("expected an excessive fee to be rejected without allowHighFees")
	}
	if err := e.ValidateTransactionFee(hugeFee, 250, true); err != nil {
		t.Fatalf("expected allowHighFees to permit the excessive fee, got %v", err)
	}
}

func TestRecordTransactionFeeFeedsPercentiles(t *testing.T) {
	e := NewEstimator(chaincfg.SimNetParams())

	for _, fee := range []int64{1000, 2000, 3000, 4000, 5000} {
		e.RecordTransactionFee(fee, 250, true)
	}

	stats := e.GetStats()
	if stats.FastFee < stats.NormalFee || stats.NormalFee < stats.SlowFee {
		t.Fatalf("expected fast >= normal >= slow, got fast=%d normal=%d slow=%d",
			stats.FastFee, stats.NormalFee, stats.SlowFee)
	}
}
