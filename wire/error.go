// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "github.com/oxidecoin/oxided/coreerr"

var errUnknownDiscriminator = coreerr.New(coreerr.Decoding, "unknown-discriminator",
	"decoded tag byte does not match any known variant")

var errTooManyWitnessItems = coreerr.New(coreerr.Decoding, "too-many-witness-items",
	"witness sequence exceeds the maximum allowed item count")

var errTooManyIO = coreerr.New(coreerr.StructuralInvalid, "too-many-io",
	"transaction input+output count exceeds MAX_TX_IO_COUNT")

var errTooManyVotes = coreerr.New(coreerr.Decoding, "too-many-votes",
	"ticket vote sequence length exceeds the maximum allowed")

var errTooManyTx = coreerr.New(coreerr.Decoding, "too-many-tx",
	"transaction sequence length exceeds the maximum allowed")
