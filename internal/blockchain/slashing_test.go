// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"testing"

	"github.com/oxidecoin/oxided/chaincfg"
	"github.com/oxidecoin/oxided/chainhash"
	"github.com/oxidecoin/oxided/database"
	"github.com/oxidecoin/oxided/wire"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(t.TempDir())
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store, err := NewStore(db)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	return store
}

func TestApplySlashNonParticipationRampsBurn(t *testing.T) {
	store := openTestStore(t)
	params := chaincfg.SimNetParams()
	id := chainhash.HashB(chainhash.DomainTicketID, []byte("ticket-a"))

	err := store.Update(func(tx database.Tx) error {
		ticket := &Ticket{ID: id, Price: 1000, Status: TicketLive}
		if err := PutTicket(tx, ticket); err != nil {
			return err
		}
		payload := &wire.SlashNonParticipationPayload{TicketID: id, MissedHeight: 10}
		return ApplySlashNonParticipation(tx, payload, 10, params)
	})
	if err != nil {
		t.Fatalf("first slash: %v", err)
	}

	err = store.View(func(tx database.Tx) error {
		ticket, err := GetTicket(tx, id)
		if err != nil {
			return err
		}
		if ticket.Price != 990 {
			t.Fatalf("Price after first strike = %d, want 990", ticket.Price)
		}
		if ticket.NonPartStrikes != 1 {
			t.Fatalf("NonPartStrikes = %d, want 1", ticket.NonPartStrikes)
		}
		if ticket.Status != TicketLive {
			t.Fatalf("Status = %v, want TicketLive", ticket.Status)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	// Repeated strikes ramp the burn percentage and eventually revoke
	// the ticket once price reaches zero.
	for i := 0; i < 10; i++ {
		err = store.Update(func(tx database.Tx) error {
			payload := &wire.SlashNonParticipationPayload{TicketID: id, MissedHeight: uint64(11 + i)}
			return ApplySlashNonParticipation(tx, payload, uint64(11+i), params)
		})
		if err != nil {
			t.Fatalf("strike %d: %v", i, err)
		}
	}

	err = store.View(func(tx database.Tx) error {
		ticket, err := GetTicket(tx, id)
		if err != nil {
			return err
		}
		if ticket.Status != TicketRevoked {
			t.Fatalf("Status after repeated strikes = %v, want TicketRevoked", ticket.Status)
		}
		if ticket.Price != 0 {
			t.Fatalf("Price after revocation = %d, want 0", ticket.Price)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestApplySlashNonParticipationNoOpOnUnknownTicket(t *testing.T) {
	store := openTestStore(t)
	params := chaincfg.SimNetParams()
	id := chainhash.HashB(chainhash.DomainTicketID, []byte("missing"))

	err := store.Update(func(tx database.Tx) error {
		payload := &wire.SlashNonParticipationPayload{TicketID: id, MissedHeight: 1}
		return ApplySlashNonParticipation(tx, payload, 1, params)
	})
	if err != nil {
		t.Fatalf("slashing an unknown ticket should be a no-op, got error: %v", err)
	}
}

func TestApplySlashNonParticipationNoOpOnRevoked(t *testing.T) {
	store := openTestStore(t)
	params := chaincfg.SimNetParams()
	id := chainhash.HashB(chainhash.DomainTicketID, []byte("ticket-b"))

	err := store.Update(func(tx database.Tx) error {
		ticket := &Ticket{ID: id, Price: 0, Status: TicketRevoked}
		return PutTicket(tx, ticket)
	})
	if err != nil {
		t.Fatal(err)
	}

	err = store.Update(func(tx database.Tx) error {
		payload := &wire.SlashNonParticipationPayload{TicketID: id, MissedHeight: 1}
		return ApplySlashNonParticipation(tx, payload, 1, params)
	})
	if err != nil {
		t.Fatalf("slashing an already-revoked ticket should be a no-op, got error: %v", err)
	}

	err = store.View(func(tx database.Tx) error {
		ticket, err := GetTicket(tx, id)
		if err != nil {
			return err
		}
		if ticket.Price != 0 {
			t.Fatalf("Price = %d, want unchanged at 0", ticket.Price)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestApplySlashEquivocationRevokesFully(t *testing.T) {
	store := openTestStore(t)
	id := chainhash.HashB(chainhash.DomainTicketID, []byte("ticket-c"))

	err := store.Update(func(tx database.Tx) error {
		ticket := &Ticket{ID: id, Price: 5000, Status: TicketLive}
		return PutTicket(tx, ticket)
	})
	if err != nil {
		t.Fatal(err)
	}

	err = store.Update(func(tx database.Tx) error {
		payload := &wire.SlashEquivocationPayload{TicketID: id, Height: 5}
		return ApplySlashEquivocation(tx, payload)
	})
	if err != nil {
		t.Fatalf("ApplySlashEquivocation: %v", err)
	}

	err = store.View(func(tx database.Tx) error {
		ticket, err := GetTicket(tx, id)
		if err != nil {
			return err
		}
		if ticket.Status != TicketRevoked || ticket.Price != 0 {
			t.Fatalf("ticket = %+v, want fully revoked", ticket)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestApplySlashEquivocationRejectsUnknownTicket(t *testing.T) {
	store := openTestStore(t)
	id := chainhash.HashB(chainhash.DomainTicketID, []byte("never-registered"))

	err := store.Update(func(tx database.Tx) error {
		payload := &wire.SlashEquivocationPayload{TicketID: id, Height: 5}
		return ApplySlashEquivocation(tx, payload)
	})
	if err == nil {
		t.Fatal("ApplySlashEquivocation against an unregistered ticket should fail")
	}
}

func TestApplyMasternodePoSeFailureRampsToProbationThenBan(t *testing.T) {
	store := openTestStore(t)
	id := chainhash.HashB(chainhash.DomainMasternodeID, []byte("mn-a"))

	err := store.Update(func(tx database.Tx) error {
		entry := &MasternodeEntry{ID: id, Status: MasternodeActive}
		return PutMasternode(tx, entry)
	})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		err = store.Update(func(tx database.Tx) error {
			return ApplyMasternodePoSeFailure(tx, id, uint64(i+1))
		})
		if err != nil {
			t.Fatalf("failure %d: %v", i, err)
		}
	}

	err = store.View(func(tx database.Tx) error {
		m, err := GetMasternode(tx, id)
		if err != nil {
			return err
		}
		if m.Status != MasternodeProbation {
			t.Fatalf("Status after 3 failures = %v, want MasternodeProbation", m.Status)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	for i := 3; i < 8; i++ {
		err = store.Update(func(tx database.Tx) error {
			return ApplyMasternodePoSeFailure(tx, id, uint64(i+1))
		})
		if err != nil {
			t.Fatalf("failure %d: %v", i, err)
		}
	}

	err = store.View(func(tx database.Tx) error {
		m, err := GetMasternode(tx, id)
		if err != nil {
			return err
		}
		if m.Status != MasternodeBanned {
			t.Fatalf("Status after 8 failures = %v, want MasternodeBanned", m.Status)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestApplyMasternodePoSeFailureNoOpOnceBanned(t *testing.T) {
	store := openTestStore(t)
	id := chainhash.HashB(chainhash.DomainMasternodeID, []byte("mn-b"))

	err := store.Update(func(tx database.Tx) error {
		entry := &MasternodeEntry{ID: id, Status: MasternodeBanned, PoseFailureCount: 8}
		return PutMasternode(tx, entry)
	})
	if err != nil {
		t.Fatal(err)
	}

	err = store.Update(func(tx database.Tx) error {
		return ApplyMasternodePoSeFailure(tx, id, 99)
	})
	if err != nil {
		t.Fatalf("ApplyMasternodePoSeFailure on a banned node should be a no-op, got error: %v", err)
	}

	err = store.View(func(tx database.Tx) error {
		m, err := GetMasternode(tx, id)
		if err != nil {
			return err
		}
		if m.PoseFailureCount != 8 {
			t.Fatalf("PoseFailureCount = %d, want unchanged at 8", m.PoseFailureCount)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
