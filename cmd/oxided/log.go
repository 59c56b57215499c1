// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"io"
	"os"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"

	"github.com/oxidecoin/oxided/internal/blockchain"
	"github.com/oxidecoin/oxided/internal/mempool"
	"github.com/oxidecoin/oxided/internal/mining"
	"github.com/oxidecoin/oxided/node"
)

// logRotator writes every subsystem logger's output to cfg.logFile,
// rotating it once it grows past a threshold, mirroring the teacher's
// jrick/logrotate-backed log file.
var logRotator *rotator.Rotator

// log is main's own subsystem logger.
var log = slog.Disabled

// initLogging opens the rotator and assigns a subsystem logger to every
// package that declared var log = slog.Disabled, at the configured level.
func initLogging(cfg *config) error {
	r, err := rotator.New(cfg.logFile, 10*1024, false, 3)
	if err != nil {
		return err
	}
	logRotator = r

	backend := slog.NewBackend(io.MultiWriter(os.Stdout, logWriter{}))
	level, ok := slog.LevelFromString(cfg.LogLevel)
	if !ok {
		level = slog.LevelInfo
	}

	setLevel := func(l slog.Logger) slog.Logger {
		l.SetLevel(level)
		return l
	}
	blockchain.UseLogger(setLevel(backend.Logger("CHAN")))
	mempool.UseLogger(setLevel(backend.Logger("MPOL")))
	mining.UseLogger(setLevel(backend.Logger("MINR")))
	node.UseLogger(setLevel(backend.Logger("NODE")))
	log = setLevel(backend.Logger("OXID"))
	return nil
}

// logWriter adapts logRotator to io.Writer for slog.NewBackend, which
// wants a single writer rather than the rotator's own Write signature.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	return logRotator.Write(p)
}
