// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"github.com/oxidecoin/oxided/chaincfg"
	"github.com/oxidecoin/oxided/chainhash"
	"github.com/oxidecoin/oxided/coreerr"
	"github.com/oxidecoin/oxided/database"
	"github.com/oxidecoin/oxided/wire"
)

// nonPartBurnPermilleRamp gives the fraction of a ticket's remaining
// locked amount burned for each successive non-participation strike
// (spec.md §4.12: "burns NON_PART_PCT (1%) of the ticket's locked amount
// on first occurrence with a ramp on repeat offenses"). The ramp doubles
// per strike and is capped at 100%, entries beyond the table all burn the
// ticket out entirely.
var nonPartBurnPermilleRamp = [...]int64{10, 20, 40, 80, 160, 320, 640, 1000}

func nonPartBurnPermille(strikes uint32) int64 {
	if int(strikes) >= len(nonPartBurnPermilleRamp) {
		return 1000
	}
	return nonPartBurnPermilleRamp[strikes]
}

// ApplySlashNonParticipation burns nonPartBurnPermille(strikes) parts per
// thousand of p's ticket's remaining locked amount and records the strike,
// so a repeat offender ramps toward a full burn. It is a no-op if the
// ticket is not found or has already been fully slashed (blacklisted).
func ApplySlashNonParticipation(tx database.Tx, p *wire.SlashNonParticipationPayload, height uint64, params *chaincfg.Params) error {
	t, err := GetTicket(tx, p.TicketID)
	if err != nil {
		return err
	}
	if t == nil || t.Status == TicketRevoked {
		return nil
	}

	burnPM := nonPartBurnPermille(t.NonPartStrikes)
	t.Price -= t.Price * burnPM / 1000
	t.NonPartStrikes++
	if burnPM >= 1000 || t.Price <= 0 {
		t.Price = 0
		t.Status = TicketRevoked
	}
	return PutTicket(tx, t)
}

// ApplySlashEquivocation burns the entirety of p's ticket's locked amount
// and permanently blacklists it (spec.md §4.12: "burns 100% of collateral
// and permanently blacklists the ticket id"). A second equivocation
// against an already-revoked ticket is rejected by the transaction
// validator before reaching here (spec.md §8 scenario 6), so this is
// idempotent only in the sense that re-applying it leaves the ticket
// exactly as revoked as it already was.
func ApplySlashEquivocation(tx database.Tx, p *wire.SlashEquivocationPayload) error {
	t, err := GetTicket(tx, p.TicketID)
	if err != nil {
		return err
	}
	if t == nil {
		return coreerr.New(coreerr.ConsensusInvalid, "unknown-slash-target", "equivocation proof targets a ticket this store has no record of")
	}
	t.Price = 0
	t.Status = TicketRevoked
	return PutTicket(tx, t)
}

// ApplyMasternodePoSeFailure records a failed PoSe (Proof-of-Service)
// response against m: the first few failures move it to Probation, giving
// it a chance to recover; persistent failure bans it outright. This is the
// masternode analogue spec.md §4.12 calls for ("Analogous rules apply to
// masternodes for failed PoSe responses") but, unlike ticket slashing,
// does not burn collateral — masternode collateral is only forfeited by
// spending it (KindMasternodeCollateralSpend), never programmatically.
func ApplyMasternodePoSeFailure(tx database.Tx, id chainhash.Hash, height uint64) error {
	m, err := GetMasternode(tx, id)
	if err != nil {
		return err
	}
	if m == nil || m.Status == MasternodeBanned {
		return nil
	}
	m.PoseFailureCount++
	m.LastPoseHeight = height
	switch {
	case m.PoseFailureCount >= maxPoseFailuresBeforeBan:
		m.Status = MasternodeBanned
	case m.PoseFailureCount >= maxPoseFailuresBeforeProbation:
		m.Status = MasternodeProbation
	}
	return PutMasternode(tx, m)
}

// maxPoseFailuresBeforeProbation and maxPoseFailuresBeforeBan are the
// strike thresholds ApplyMasternodePoSeFailure ramps a masternode through.
const (
	maxPoseFailuresBeforeProbation = 3
	maxPoseFailuresBeforeBan       = 8
)
