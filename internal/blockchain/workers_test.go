// Copyright (c) 2025 The Oxide developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"testing"

	"github.com/oxidecoin/oxided/txscript"
	"github.com/oxidecoin/oxided/wire"
)

func anyoneCanSpendTx() *wire.Transaction {
	return &wire.Transaction{
		Kind:    wire.KindStandard,
		Version: 1,
		Inputs:  []wire.TxInput{{Sequence: 0xffffffff}},
		Outputs: []wire.TxOutput{{Value: 1, LockScript: []byte{0x51}}},
	}
}

func TestVerifyScriptsConcurrentlyAcceptsAllValidJobs(t *testing.T) {
	var jobs []txScriptWork
	for i := 0; i < 64; i++ {
		jobs = append(jobs, txScriptWork{
			tx:          anyoneCanSpendTx(),
			prevScripts: [][]byte{{0x51}},
			verifier:    txscript.DefaultVerifier{},
		})
	}
	if err := verifyScriptsConcurrently(jobs); err != nil {
		t.Fatalf("verifyScriptsConcurrently: %v", err)
	}
}

func TestVerifyScriptsConcurrentlyReportsAScriptFailure(t *testing.T) {
	var jobs []txScriptWork
	for i := 0; i < 8; i++ {
		jobs = append(jobs, txScriptWork{
			tx:          anyoneCanSpendTx(),
			prevScripts: [][]byte{{0x51}},
			verifier:    txscript.DefaultVerifier{},
		})
	}
	// One job's previous output script pushes a falsy value, so its
	// engine ends with a clean but untruthy stack top.
	jobs[3].prevScripts = [][]byte{{0x00}}

	err := verifyScriptsConcurrently(jobs)
	if err == nil {
		t.Fatal("verifyScriptsConcurrently accepted a batch containing a failing script")
	}
}

func TestVerifyScriptsConcurrentlyHandlesFewerJobsThanWorkers(t *testing.T) {
	jobs := []txScriptWork{{
		tx:          anyoneCanSpendTx(),
		prevScripts: [][]byte{{0x51}},
		verifier:    txscript.DefaultVerifier{},
	}}
	if err := verifyScriptsConcurrently(jobs); err != nil {
		t.Fatalf("verifyScriptsConcurrently: %v", err)
	}
}

func TestVerifyScriptsConcurrentlyNoJobsIsNoOp(t *testing.T) {
	if err := verifyScriptsConcurrently(nil); err != nil {
		t.Fatalf("verifyScriptsConcurrently(nil) = %v, want nil", err)
	}
}
