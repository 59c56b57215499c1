// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package amount provides the fixed-point monetary unit every transaction
// output value and subsidy calculation in the consensus core is expressed
// in.
package amount

import (
	"errors"
	"math"
	"sort"
	"strconv"
)

// AtomsPerCoin is the number of atomic units in one coin.
const AtomsPerCoin = 1e8

// MaxAmount is the maximum transaction amount allowed in atoms, spec.md
// §3's MaxMoney (21,000,000 coins).
const MaxAmount = 21_000_000 * AtomsPerCoin

// Unit describes a method of converting an Amount to something other than
// the base unit. The value is the exponent component of the decadic
// multiple used to convert from an amount in coins to one in atomic units.
type Unit int

const (
	UnitMegaCoin  Unit = 6
	UnitKiloCoin  Unit = 3
	UnitCoin      Unit = 0
	UnitMilliCoin Unit = -3
	UnitMicroCoin Unit = -6
	UnitAtom      Unit = -8
)

// String returns the unit's SI-prefixed symbol.
func (u Unit) String() string {
	switch u {
	case UnitMegaCoin:
		return "MOXD"
	case UnitKiloCoin:
		return "kOXD"
	case UnitCoin:
		return "OXD"
	case UnitMilliCoin:
		return "mOXD"
	case UnitMicroCoin:
		return "uOXD"
	case UnitAtom:
		return "atom"
	default:
		return "1e" + strconv.FormatInt(int64(u), 10) + " OXD"
	}
}

// Amount is the base monetary unit (an "atom"): 1e-8 of a coin.
type Amount int64

func round(f float64) Amount {
	if f < 0 {
		return Amount(f - 0.5)
	}
	return Amount(f + 0.5)
}

// New creates an Amount from a floating point number of coins. It errors if
// f is NaN or +-Infinity; it does not check that the amount is within
// MaxAmount, since f may describe a quantity that is not a single on-chain
// value (e.g. a fee rate).
func New(f float64) (Amount, error) {
	switch {
	case math.IsNaN(f), math.IsInf(f, 1), math.IsInf(f, -1):
		return 0, errors.New("invalid coin amount")
	}
	return round(f * AtomsPerCoin), nil
}

// ToUnit converts the amount to a floating point value in the given unit.
func (a Amount) ToUnit(u Unit) float64 {
	return float64(a) / math.Pow10(int(u+8))
}

// ToCoin is equivalent to ToUnit(UnitCoin).
func (a Amount) ToCoin() float64 {
	return a.ToUnit(UnitCoin)
}

// Format formats the amount in the given unit, with its SI-prefixed symbol
// appended.
func (a Amount) Format(u Unit) string {
	return strconv.FormatFloat(a.ToUnit(u), 'f', -int(u+8), 64) + " " + u.String()
}

// String is equivalent to Format(UnitCoin).
func (a Amount) String() string {
	return a.Format(UnitCoin)
}

// MulF64 multiplies an Amount by a floating point value, useful for fee-rate
// and reward-split computations.
func (a Amount) MulF64(f float64) Amount {
	return round(float64(a) * f)
}

// Sorter implements sort.Interface for a slice of Amounts.
type Sorter []Amount

func (s Sorter) Len() int           { return len(s) }
func (s Sorter) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s Sorter) Less(i, j int) bool { return s[i] < s[j] }

var _ sort.Interface = Sorter(nil)
