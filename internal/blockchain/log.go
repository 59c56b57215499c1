// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package blockchain implements the consensus core: the authenticated
// state store (UTXO set, live-ticket pool, masternode registry, governance
// tallies), the transaction and block validators, voter selection,
// difficulty/ticket-price retargeting, the chain manager's fork choice and
// reorg procedure, and the slashing engine.
package blockchain

import "github.com/decred/slog"

var log = slog.Disabled

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger slog.Logger) {
	log = logger
}
