// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package coreerr defines the consensus core's single enumerated error
// taxonomy (spec.md §7), distinguishable by kind rather than by message.
// Every package on the validation path constructs a *RuleError instead of
// an opaque error so callers can branch on Kind with errors.As.
package coreerr

import "fmt"

// Kind identifies one of the error categories a caller must be able to
// distinguish without parsing an error string.
type Kind int

const (
	// Decoding covers malformed bytes, trailing data, or an unknown variant
	// discriminator.
	Decoding Kind = iota
	// StructuralInvalid covers IO-count limits, duplicate inputs, too many
	// sigops, and other checks that don't require chain state.
	StructuralInvalid
	// ConsensusInvalid covers bad PoW, wrong difficulty, bad merkle/state
	// root, wrong voter set, insufficient votes, script failure, value not
	// conserved, immature coinbase, and unmet lock-time.
	ConsensusInvalid
	// StorageFault covers I/O errors, corruption, or a missing journal
	// entry. It is fatal to the writer thread.
	StorageFault
	// Transient covers a cache miss that warrants a bounded retry.
	Transient
	// Policy covers mempool-only rejections, such as a below-minimum fee
	// or a denied replace-by-fee.
	Policy
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Decoding:
		return "decoding"
	case StructuralInvalid:
		return "structural-invalid"
	case ConsensusInvalid:
		return "consensus-invalid"
	case StorageFault:
		return "storage-fault"
	case Transient:
		return "transient"
	case Policy:
		return "policy"
	default:
		return "unknown"
	}
}

// RuleError is the sum-type error returned by every consensus-path check.
// Code is a short machine-readable reason the API boundary can forward to a
// caller without leaking internal detail; Desc is the human-readable detail
// used in logs.
type RuleError struct {
	Kind Kind
	Code string
	Desc string
}

// Error implements the error interface.
func (e *RuleError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Code, e.Desc)
}

// New constructs a *RuleError. Code should be a short, stable,
// machine-readable identifier (e.g. "duplicate-spend"); it is part of this
// package's API contract and must not change across releases.
func New(kind Kind, code, desc string) *RuleError {
	return &RuleError{Kind: kind, Code: code, Desc: desc}
}

// Newf is New with a formatted description.
func Newf(kind Kind, code, format string, args ...any) *RuleError {
	return New(kind, code, fmt.Sprintf(format, args...))
}

// Is reports whether err is a *RuleError of the given kind, so callers can
// write `if coreerr.Is(err, coreerr.Policy) { ... }`.
func Is(err error, kind Kind) bool {
	re, ok := err.(*RuleError)
	return ok && re.Kind == kind
}
