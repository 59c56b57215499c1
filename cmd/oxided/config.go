// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	flags "github.com/jessevdk/go-flags"

	"github.com/oxidecoin/oxided/chaincfg"
)

const (
	defaultDataDirname = "data"
	defaultLogFilename = "oxided.log"
)

// config holds the flags oxided is started with. The zero value plus
// loadConfig's defaults is a valid mainnet configuration.
type config struct {
	HomeDir  string `long:"homedir" description:"Directory to store data and logs"`
	Network  string `long:"network" choice:"mainnet" choice:"testnet" choice:"simnet" description:"Network to run on"`
	LogLevel string `long:"loglevel" description:"Logging level: trace, debug, info, warn, error, critical"`

	dataDir string
	logFile string
	params  *chaincfg.Params
}

// loadConfig parses args (normally os.Args[1:]) into a config, applying
// defaults and resolving the network name to its chaincfg.Params.
func loadConfig(args []string) (*config, error) {
	cfg := config{
		Network:  "mainnet",
		LogLevel: "info",
	}
	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if cfg.HomeDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		cfg.HomeDir = filepath.Join(home, ".oxided")
	}

	switch cfg.Network {
	case "mainnet":
		cfg.params = chaincfg.MainNetParams()
	case "testnet":
		cfg.params = chaincfg.TestNetParams()
	case "simnet":
		cfg.params = chaincfg.SimNetParams()
	default:
		return nil, fmt.Errorf("unknown network %q", cfg.Network)
	}

	netDir := filepath.Join(cfg.HomeDir, cfg.Network)
	cfg.dataDir = filepath.Join(netDir, defaultDataDirname)
	cfg.logFile = filepath.Join(netDir, defaultLogFilename)
	if err := os.MkdirAll(cfg.dataDir, 0700); err != nil {
		return nil, err
	}
	return &cfg, nil
}
