// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

//go:build !release

// Package testlog hijacks the output of github.com/teamsatosys/mintfuzz/pkg/log
// for tests. By default output goes through t.Log, but it can be stored in a
// buffer for analysis, e.g. to check that a hang was reported.
package testlog

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/teamsatosys/mintfuzz/pkg/log"
	"github.com/teamsatosys/mintfuzz/pkg/log/flags"
)

// TstLog is a log.StackableLogger. Constructed via NewTestLog().
type TstLog struct {
	events        leChan
	t             testing.TB
	Buf           *bytes.Buffer //if non-nil, output goes here instead of t.Log
	MsgCount      int           //entries logged with flags.Operator
	LogCount      int           //all other non-fatal entries
	FatalCount    int           //calls to log.Fatalf()
	FatalIsNotErr bool          //if true, do not call t.Errorf() for Fatalf()
	freeze        bool          //do not write any more to Buf
	stderr        bool          //also immediately write to stderr
	mu            sync.RWMutex
	bgWg          sync.WaitGroup
}

// Returns a new TstLog and installs it as the only sink. If bufferLog is true,
// output goes to Buf rather than t.Log()/t.Error(). Call Freeze() before the
// test returns.
func NewTestLog(t testing.TB, bufferLog, stderr bool) (tlog *TstLog) {
	tlog = &TstLog{
		events: make(leChan, 1024),
		t:      t,
		stderr: stderr,
	}
	if bufferLog {
		tlog.Buf = new(bytes.Buffer)
	}
	tlog.bgWg.Add(1)
	go tlog.bgProc()
	log.NewLogStack(tlog)
	log.SetFatalAction(log.FailAction{Terminator: func() {}})
	return
}

// Like NewTestLog, but does not use a channel or background goroutine, so
// it can be combined with goleak checks.
func NewTestLogNoBG(t testing.TB, bufferLog bool) (tlog *TstLog) {
	tlog = &TstLog{t: t}
	if bufferLog {
		tlog.Buf = new(bytes.Buffer)
	}
	log.NewLogStack(tlog)
	log.SetFatalAction(log.FailAction{Terminator: func() {}})
	return
}

var _ log.StackableLogger = (*TstLog)(nil)

func (tlog *TstLog) AddEntry(e log.LogEntry) {
	tlog.mu.RLock()
	freeze := tlog.freeze
	tlog.mu.RUnlock()
	if freeze {
		return
	}
	switch {
	case e.Flags&flags.Fatal != 0:
		e.Msg = ">>FATAL()<< " + e.Msg
	case e.Flags&flags.Operator != 0:
		e.Msg = "MSG:" + e.Msg
	case e.Flags&flags.Verbose != 0:
		e.Msg = "DBG:" + e.Msg
	default:
		e.Msg = "LOG:" + e.Msg
	}
	if tlog.events != nil {
		tlog.events <- e
	} else {
		tlog.t.Helper()
		tlog.mu.Lock()
		defer tlog.mu.Unlock()
		tlog.handleEvt(e)
	}
}

const TstLogIdent = "tstLog"

func (*TstLog) Ident() string                      { return TstLogIdent }
func (tl *TstLog) Next() log.StackableLogger       { return nil }
func (*TstLog) Finalize()                          {}
func (tl *TstLog) ForwardTo(_ log.StackableLogger) {}

type leChan chan log.LogEntry

func (tlog *TstLog) bgProc() {
	defer tlog.bgWg.Done()
	for evt := range tlog.events {
		tlog.mu.Lock()
		tlog.handleEvt(evt)
		tlog.mu.Unlock()
	}
}

// caller holds tlog.mu
func (tlog *TstLog) handleEvt(evt log.LogEntry) {
	tlog.t.Helper()
	text := evt.Text()
	switch {
	case evt.Flags&flags.Fatal != 0:
		tlog.FatalCount++
		if !tlog.FatalIsNotErr {
			tlog.t.Errorf("@%s: %s", evt.Time.Format(stampMilli), text)
			return
		}
	case evt.Flags&flags.Operator != 0:
		tlog.MsgCount++
	default:
		tlog.LogCount++
	}
	if tlog.stderr {
		fmt.Fprintf(os.Stderr, "@%s: %s\n", evt.Time.Format(stampMilli), text)
	}
	if tlog.Buf != nil {
		tlog.Buf.WriteString(text + "\n")
	} else {
		tlog.t.Logf("@%s: %s", evt.Time.Format(stampMilli), text)
	}
}

const stampMilli = "15:04:05.000" //like time.StampMilli, but leaves off date

// call at end of test to sync log and shut down bgProc
func (tlog *TstLog) Freeze() {
	tlog.mu.Lock()
	if tlog.freeze {
		tlog.mu.Unlock()
		return
	}
	tlog.mu.Unlock()

	log.DefaultLogStack()
	log.SetFatalAction(log.DefaultFatal)

	if tlog.events != nil {
		for len(tlog.events) > 0 {
			time.Sleep(time.Millisecond)
		}
		close(tlog.events)
		tlog.bgWg.Wait()
	}
	tlog.mu.Lock()
	tlog.freeze = true
	tlog.mu.Unlock()
}

// Contains reports whether buffered output contains s. Only meaningful after
// Freeze() when the background goroutine is in use.
func (tlog *TstLog) Contains(s string) bool {
	tlog.mu.RLock()
	defer tlog.mu.RUnlock()
	if tlog.Buf == nil {
		return false
	}
	return strings.Contains(tlog.Buf.String(), s)
}

func (tlog *TstLog) String() string {
	tlog.mu.RLock()
	defer tlog.mu.RUnlock()
	if tlog.Buf == nil {
		return ""
	}
	return tlog.Buf.String()
}
