// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package log is the harness's logging mechanism. Entries pass through a stack
// of sinks: the console the operator watches, a plain text file, and a
// structured JSON log (see package zaplog) consumed by CI.
//
// By default, entries are retained in memory so they can be re-played into
// sinks that are added later, e.g. once configuration has been read and the
// log file location is known.
package log

import (
	"fmt"
	"os"

	"github.com/teamsatosys/mintfuzz/pkg/log/flags"
)

var logPrefix string

// Sets the log prefix, used in generated file names. Must be set before
// calling AddFileLog()
func SetPrefix(pfx string) { logPrefix = pfx }

func GetPrefix() string { return logPrefix }

// Msgf is for progress and results the operator needs to see: iteration
// counts, hangs, crashes, the verdict.
func Msgf(f string, va ...interface{}) { FlaggedLogf(flags.Operator, f, va...) }

// See Msgf
func Msgln(va ...interface{}) { Msgf(fmt.Sprintln(va...)) }

// Logf is for technical detail. Shown on a console added with flags.NA, and
// always written to file sinks.
func Logf(f string, va ...interface{}) { FlaggedLogf(flags.NA, f, va...) }

// See Logf
func Logln(va ...interface{}) { Logf(fmt.Sprintln(va...)) }

// See Logf
func Log(message string) { Logf("%s", message) }

// Debugf logs per-exchange detail (every command and response line). Console
// sinks drop these unless created verbose.
func Debugf(f string, va ...interface{}) { FlaggedLogf(flags.Verbose, f, va...) }

// If the log stack includes a memLog, this writes all of its content to
// stderr. no-op otherwise.
func DumpStderr() {
	for _, e := range StoredEntries() {
		fmt.Fprintln(os.Stderr, e.String())
	}
}
