// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package standalone holds consensus checks that need no chain context:
// transaction structural sanity, the OxideHash proof-of-work function, and
// compact difficulty target encoding. Keeping these free of blockchain.*
// dependencies lets them be reused by mempool admission, mining, and
// header-only light validation alike.
package standalone

import (
	"fmt"

	"github.com/oxidecoin/oxided/coreerr"
	"github.com/oxidecoin/oxided/wire"
)

func ruleErr(code, desc string) *coreerr.RuleError {
	return coreerr.New(coreerr.StructuralInvalid, code, desc)
}

// CheckTransactionSanity performs the context-free structural checks of
// spec.md §7 (kind StructuralInvalid): at least one input, at least one
// output, serialized size under maxTxSize, every output value in
// [0, MaxMoney], the sum of outputs not overflowing MaxMoney, and no
// duplicate (hash, index) previous outpoints across the transaction's
// inputs.
func CheckTransactionSanity(tx *wire.Transaction, maxTxSize uint64) error {
	if len(tx.Inputs) == 0 {
		return ruleErr("no-tx-inputs", "transaction has no inputs")
	}
	if len(tx.Outputs) == 0 {
		return ruleErr("no-tx-outputs", "transaction has no outputs")
	}

	serializedSize := uint64(tx.SerializeSize())
	if serializedSize > maxTxSize {
		return ruleErr("tx-too-big", fmt.Sprintf(
			"serialized transaction is too big - got %d, max %d", serializedSize, maxTxSize))
	}

	var total int64
	for i := range tx.Outputs {
		out := &tx.Outputs[i]
		if out.Value < 0 {
			return ruleErr("bad-txout-value", fmt.Sprintf(
				"transaction output has negative value of %v", out.Value))
		}
		if out.Value > wire.MaxMoney {
			return ruleErr("bad-txout-value", fmt.Sprintf(
				"transaction output value of %v is higher than max allowed value of %v",
				out.Value, wire.MaxMoney))
		}
		total += out.Value
		if total < 0 || total > wire.MaxMoney {
			return ruleErr("bad-txout-value", fmt.Sprintf(
				"total value of all transaction outputs is %v which is higher than "+
					"max allowed value of %v", total, wire.MaxMoney))
		}
	}

	seen := make(map[wire.OutPoint]struct{}, len(tx.Inputs))
	for i := range tx.Inputs {
		prev := tx.Inputs[i].Prev
		if _, ok := seen[prev]; ok {
			return ruleErr("duplicate-tx-inputs", "transaction contains duplicate inputs")
		}
		seen[prev] = struct{}{}
	}

	if tx.Kind == wire.KindCoinbase && !tx.IsCoinbase() {
		return ruleErr("bad-coinbase", "coinbase-kind transaction fails the structural coinbase test")
	}
	if tx.Kind != wire.KindCoinbase {
		for i := range tx.Inputs {
			if tx.Inputs[i].Prev.Hash.IsZero() {
				return ruleErr("null-non-coinbase-input", "non-coinbase transaction has a null previous outpoint")
			}
		}
	}

	return nil
}
