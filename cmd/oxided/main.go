// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Command oxided is the thin process entry point around the consensus
// core: it parses flags, opens the authenticated state store on the
// selected network, and exposes a node.Core for a P2P layer, RPC server,
// or wallet collaborator to embed (spec.md §6 describes that boundary;
// this binary stops at constructing the Core, since networking and RPC
// are out of this repository's scope).
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/oxidecoin/oxided/database"
	"github.com/oxidecoin/oxided/internal/blockchain"
	"github.com/oxidecoin/oxided/internal/fees"
	"github.com/oxidecoin/oxided/node"
	"github.com/oxidecoin/oxided/txscript"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		return err
	}
	if err := initLogging(cfg); err != nil {
		return err
	}
	defer logRotator.Close()

	db, err := database.Open(cfg.dataDir)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	store, err := blockchain.NewStore(db)
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}

	core, err := node.New(node.Config{
		Store:        store,
		Params:       cfg.params,
		Verifier:     txscript.DefaultVerifier{},
		FeeEstimator: fees.NewEstimator(cfg.params),
	})
	if err != nil {
		return fmt.Errorf("opening node core: %w", err)
	}

	hash, height := core.BestTip()
	log.Infof("oxided ready on %s, tip %s at height %d", cfg.Network, hash, height)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
	return nil
}
