// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package log_test

import (
	"os"
	"testing"
	"time"

	"github.com/teamsatosys/mintfuzz/pkg/log"
	"github.com/teamsatosys/mintfuzz/pkg/log/flags"
)

func TestFileLog(t *testing.T) {
	log.DefaultLogStack()
	defer log.DefaultLogStack()
	T, err := time.Parse("2006", "1999")
	if err != nil {
		t.Fatal(err)
	}
	stack := log.Stack()
	stack.AddEntry(log.LogEntry{Time: T, Msg: "campaign started", Flags: flags.Operator})
	//this one must not make it into the file
	stack.AddEntry(log.LogEntry{
		Time:  T.Add(time.Minute),
		Msg:   "raw payload bytes",
		Flags: flags.Verbose | flags.NotFile,
	})
	if n := len(log.StoredEntries()); n != 2 {
		t.Fatalf("want 2 entries, got %d", n)
	}

	log.SetPrefix("gotest")
	fname, err := log.AddFileLog(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if !log.LoggingToFile() {
		t.Error("file log not in stack")
	}
	log.Finalize()
	attr, ok := log.GetAttr("Filename")
	if !ok || attr.(string) != fname {
		t.Errorf("Filename attr: want %s, got %v", fname, attr)
	}
	buf, err := os.ReadFile(fname)
	if err != nil {
		t.Fatal(err)
	}
	want := "-- 19990101_000000 -- campaign started\n"
	if string(buf) != want {
		t.Errorf("file:\nwant %q\ngot  %q", want, string(buf))
	}
}
