// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package testlog

import (
	"fmt"
	"testing"

	"github.com/teamsatosys/mintfuzz/pkg/log"
)

func TestCounts(t *testing.T) {
	tlog := NewTestLog(t, true, false)
	tlog.FatalIsNotErr = true
	log.Msgf("Fuzzing iteration %d/%d", 0, 10)
	log.Logf("opened %s", "/dev/ttyACM0")
	log.Debugf("> ping")
	log.Fatalf("link lost")
	tlog.Freeze()
	if tlog.MsgCount != 1 || tlog.LogCount != 2 || tlog.FatalCount != 1 {
		t.Errorf("counts: msg=%d log=%d fatal=%d", tlog.MsgCount, tlog.LogCount, tlog.FatalCount)
	}
	want := "MSG:Fuzzing iteration 0/10\nLOG:opened /dev/ttyACM0\nDBG:> ping\n>>FATAL()<< link lost\n"
	if got := tlog.String(); got != want {
		t.Errorf("\nwant %q\n got %q", want, got)
	}
}

func TestFatalActionOrder(t *testing.T) {
	tlog := NewTestLogNoBG(t, true)
	tlog.FatalIsNotErr = true
	var seq []string
	log.SetFatalAction(log.FailAction{
		MsgPfx: "FAILED: ",
		Pre: func(f string, va ...interface{}) {
			seq = append(seq, "pre:"+fmt.Sprintf(f, va...))
			log.Logf("releasing %s", "/dev/ttyACM0")
		},
		Terminator: func() { seq = append(seq, "exit") },
	})
	log.Fatalf("link lost after %d iterations", 7)
	tlog.Freeze()

	want := []string{"pre:FAILED: link lost after 7 iterations", "exit"}
	if fmt.Sprint(seq) != fmt.Sprint(want) {
		t.Errorf("want %q, got %q", want, seq)
	}
	wantLog := ">>FATAL()<< FAILED: link lost after 7 iterations\nLOG:releasing /dev/ttyACM0\n"
	if got := tlog.String(); got != wantLog {
		t.Errorf("\nwant %q\n got %q", wantLog, got)
	}
}
