// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package log

import (
	"fmt"
	"sync"
	"time"

	"github.com/teamsatosys/mintfuzz/pkg/log/flags"
)

// StackableLogger is one sink in the log stack. Each sink handles an entry and
// passes it down to the next one.
//
// Normal logging goes through the package-level functions (Logf, Msgf,
// Fatalf); only sink implementations need this interface.
type StackableLogger interface {
	// Add an entry to the log. Must call the same method on the next log in
	// the stack (if not nil).
	AddEntry(e LogEntry)

	// Chain this logger to another. Setting next twice without clearing it
	// (nil) first is a programming error.
	ForwardTo(StackableLogger)

	// Identifies the kind of sink; at most one of each kind is in the stack.
	Ident() string
	Next() StackableLogger

	// Flush and release resources (close files, sync encoders). Must call the
	// same method on the next log in the stack (if not nil).
	Finalize()
}

// Top logger on the stack; guarded by logStackMtx.
var logStack StackableLogger = &memLog{}

var logStackMtx sync.Mutex

type stackErr struct {
	Id string
}

func (se *stackErr) Error() string {
	return fmt.Sprintf("Duplicate logger %s in stack", se.Id)
}

// Flushes data, closes files, etc
func Finalize() {
	logStackMtx.Lock()
	defer logStackMtx.Unlock()
	logStack.Finalize()
}

// Restores the log stack to a lone memLog, finalizing existing sinks.
func DefaultLogStack() { NewLogStack(&memLog{}) }

// Calls Finalize on existing logger(s), then sets newLog as the topmost logger.
func NewLogStack(newLog StackableLogger) {
	logStackMtx.Lock()
	defer logStackMtx.Unlock()
	if logStack != nil {
		logStack.Finalize()
	}
	logStack = newLog
	ClearAttrs()
}

// AddLogger pushes sl onto the stack. Anything requiring initialization must
// already be initialized. If addPrevious is true, entries held by a memLog
// are replayed into sl first.
//
// Callers should prefer the AddXLog() helpers (AddConsoleLog, AddFileLog,
// zaplog.AddZapLog). The only possible error is a duplicate sink kind.
func AddLogger(sl StackableLogger, addPrevious bool) error {
	logStackMtx.Lock()
	defer logStackMtx.Unlock()
	if err := checkDuplicate(sl, logStack); err != nil {
		return err
	}
	if addPrevious {
		addPreviousEvents(sl)
	}
	sl.ForwardTo(logStack)
	logStack = sl
	return nil
}

func checkDuplicate(newLogger, sl StackableLogger) error {
	for ; sl != nil; sl = sl.Next() {
		if newLogger.Ident() == sl.Ident() {
			return &stackErr{Id: sl.Ident()}
		}
	}
	return nil
}

// Remove a log with the given id from the stack
func RemoveLogger(id string) {
	logStackMtx.Lock()
	defer logStackMtx.Unlock()
	var prev StackableLogger
	for l := logStack; l != nil; l = l.Next() {
		if l.Ident() != id {
			prev = l
			continue
		}
		next := l.Next()
		l.ForwardTo(nil)
		l.Finalize()
		if prev != nil {
			prev.ForwardTo(nil)
			prev.ForwardTo(next)
		} else {
			logStack = next
		}
		return
	}
}

// LogEntry is the record passed between sinks.
type LogEntry struct {
	Time  time.Time `json:"t"`
	Msg   string
	Args  []interface{} `json:",omitempty"`
	Flags flags.Flag    `json:",omitempty"`
}

// Backend of Logf(), Msgf(), Fatalf(), etc.
func FlaggedLogf(opts flags.Flag, f string, va ...interface{}) {
	logStackMtx.Lock()
	defer logStackMtx.Unlock()
	if logStack == nil {
		return
	}
	logStack.AddEntry(LogEntry{
		Time:  time.Now(),
		Flags: opts,
		Msg:   f,
		Args:  va,
	})
}

// Text renders the message with its args, without decoration.
func (le *LogEntry) Text() string {
	if len(le.Args) == 0 {
		return le.Msg
	}
	return fmt.Sprintf(le.Msg, le.Args...)
}

func (le *LogEntry) String() string {
	var div string
	switch {
	case le.Flags&flags.Fatal != 0:
		div = "!! "
	case le.Flags&flags.Operator != 0:
		div = "-- "
	case le.Flags&flags.Verbose != 0:
		div = ".. "
	case le.Flags == 0:
		div = "*- "
	default:
		div = "?? "
	}
	return div + le.Time.Format(TimestampLayout) + " " + div + le.Text()
}

// Replays entries held by a memLog (if any) into a newly attached sink.
// Caller holds logStackMtx.
func addPreviousEvents(newlog StackableLogger) {
	if _, isMem := newlog.(*memLog); isMem {
		return
	}
	if mem, ok := FindInStack(MemLogIdent).(*memLog); ok {
		for _, e := range mem.Entries() {
			newlog.AddEntry(e)
		}
	}
}

// Return true if a log in the stack matches given id
func InStack(id string) bool {
	return FindInStack(id) != nil
}

// Return StackableLogger matching id, or nil
func FindInStack(id string) StackableLogger {
	for l := logStack; l != nil; l = l.Next() {
		if l.Ident() == id {
			return l
		}
	}
	return nil
}
