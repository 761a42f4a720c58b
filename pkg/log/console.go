// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package log

import (
	"fmt"
	"io"
	"os"

	"github.com/teamsatosys/mintfuzz/pkg/log/flags"
)

type consoleLog struct {
	flags   flags.Flag
	verbose bool
	out     io.Writer
	next    StackableLogger
}

// Adds a consoleLog writing to stderr. Flags select which entries display:
// flags.NA shows everything, flags.Operator only what Msgf logs. Entries
// from Debugf only show if verbose is true.
func AddConsoleLog(f flags.Flag, verbose bool) {
	_ = AddLogger(&consoleLog{flags: f, verbose: verbose, out: os.Stderr}, true)
}

var _ StackableLogger = (*consoleLog)(nil)

func (l *consoleLog) show(e LogEntry) bool {
	if e.Flags&flags.Verbose != 0 && !l.verbose {
		return false
	}
	return l.flags == 0 || e.Flags&(l.flags|flags.Fatal) > 0
}

func (l *consoleLog) AddEntry(e LogEntry) {
	if l.show(e) {
		fmt.Fprintln(l.out, e.String())
	}
	if l.next != nil {
		l.next.AddEntry(e)
	}
}

func (l *consoleLog) ForwardTo(sl StackableLogger) {
	if l.next == nil || sl == nil {
		l.next = sl
	} else {
		panic("next already set")
	}
}

const ConsoleLogIdent = "consoleLog"

func (*consoleLog) Ident() string           { return ConsoleLogIdent }
func (l *consoleLog) Next() StackableLogger { return l.next }

func (l *consoleLog) Finalize() {
	if l.next != nil {
		l.next.Finalize()
	}
}
