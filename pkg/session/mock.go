// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

//go:build !release

package session

import (
	"os"
	"strings"
	"sync"
)

// Responder maps one command line written to a MockPort to the lines the
// simulated device answers with. A nil or empty result means silence.
type Responder func(cmd string) []string

// Healthy answers every liveness probe and acknowledges every other command.
func Healthy(cmd string) []string {
	if cmd == LivenessProbe {
		return []string{LivenessReply}
	}
	return []string{"OK"}
}

// MockPort simulates a device on the far end of a serial line.
type MockPort struct {
	mu       sync.Mutex
	respond  Responder
	pending  []byte
	cmds     []string
	cur      []byte
	out      chan []byte
	closed   bool
	closedCh chan struct{}
	failErr  error
	failCh   chan struct{}
}

var _ Port = (*MockPort)(nil)

func NewMockPort(r Responder) *MockPort {
	if r == nil {
		r = Healthy
	}
	return &MockPort{
		respond:  r,
		out:      make(chan []byte, 256),
		closedCh: make(chan struct{}),
		failCh:   make(chan struct{}),
	}
}

// NewMock returns a session on a fresh MockPort.
func NewMock(name string, r Responder, params Params) (*Session, *MockPort) {
	m := NewMockPort(r)
	return New(m, name, params), m
}

// SetResponder replaces the device behavior.
func (m *MockPort) SetResponder(r Responder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.respond = r
}

// Fail simulates a dropped link: all later reads and writes return err.
func (m *MockPort) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr == nil {
		m.failErr = err
		close(m.failCh)
	}
}

// Inject queues unsolicited output from the device.
func (m *MockPort) Inject(line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emit(line)
}

// Commands returns the command lines written so far.
func (m *MockPort) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.cmds...)
}

func (m *MockPort) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// call with m.mu held
func (m *MockPort) emit(line string) {
	select {
	case m.out <- []byte(line + "\n"):
	default:
	}
}

func (m *MockPort) Write(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, os.ErrClosed
	}
	if m.failErr != nil {
		return 0, m.failErr
	}
	m.pending = append(m.pending, b...)
	for {
		i := strings.IndexByte(string(m.pending), '\n')
		if i < 0 {
			break
		}
		cmd := string(m.pending[:i])
		m.pending = m.pending[i+1:]
		m.cmds = append(m.cmds, cmd)
		for _, l := range m.respond(cmd) {
			m.emit(l)
		}
	}
	return len(b), nil
}

func (m *MockPort) Read(b []byte) (int, error) {
	m.mu.Lock()
	if len(m.cur) == 0 {
		m.mu.Unlock()
		select {
		case c := <-m.out:
			m.mu.Lock()
			m.cur = c
		case <-m.closedCh:
			return 0, os.ErrClosed
		case <-m.failCh:
			m.mu.Lock()
			err := m.failErr
			m.mu.Unlock()
			return 0, err
		}
	}
	n := copy(b, m.cur)
	m.cur = m.cur[n:]
	m.mu.Unlock()
	return n, nil
}

// Flush discards both directions: partial commands and unread output.
func (m *MockPort) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
	m.cur = nil
	for {
		select {
		case <-m.out:
		default:
			return nil
		}
	}
}

func (m *MockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return os.ErrClosed
	}
	m.closed = true
	close(m.closedCh)
	return nil
}
