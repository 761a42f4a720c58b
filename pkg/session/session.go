// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package session mediates all serial I/O with the device. Every wait is
// bounded: a device that never answers cannot stall the caller past the
// deadline it passed in.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/teamsatosys/mintfuzz/pkg/hw/serial"
	"github.com/teamsatosys/mintfuzz/pkg/log"
)

const (
	LivenessProbe = "ping"
	LivenessReply = "pong"

	DefaultBaud            = 115200
	DefaultConnectTimeout  = 2 * time.Second
	DefaultLivenessTimeout = 2 * time.Second

	//longest line kept; the rest of an over-long line is discarded
	MaxLine = 64 * 1024
	//lines buffered between the reader goroutine and AwaitLine
	lineBuf = 64
	//how long Close waits for the reader goroutine
	closeWait = time.Second
)

var (
	ETimeout = errors.New("timed out waiting for response")
	EClosed  = errors.New("session closed")
)

// TransportError means the link itself failed: broken pipe, device
// unplugged, port could not be opened. Unlike ETimeout, the session is not
// usable afterwards and must be reopened.
type TransportError struct {
	Op   string
	Port string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Port, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is (or wraps) a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Port is the byte stream to the device; satisfied by *serial.Port and
// *MockPort.
type Port interface {
	Read([]byte) (int, error)
	Write([]byte) (int, error)
	Close() error
	Flush() error
}

// Device is what the recovery manager and campaign runner drive.
type Device interface {
	Port() string
	SendCommand(cmd string) error
	AwaitLine(ctx context.Context, deadline time.Duration) (string, error)
	CheckLiveness(ctx context.Context) bool
	Close() error
}

// Opener opens a fresh Device, e.g. after the previous one was closed.
type Opener func(ctx context.Context) (Device, error)

type Params struct {
	Baud            int
	ConnectTimeout  time.Duration
	LivenessTimeout time.Duration
}

func DefaultParams() Params {
	return Params{
		Baud:            DefaultBaud,
		ConnectTimeout:  DefaultConnectTimeout,
		LivenessTimeout: DefaultLivenessTimeout,
	}
}

// Session wraps exactly one open port. A background goroutine splits
// incoming bytes into lines; callers wait on those with a deadline.
type Session struct {
	port   Port
	name   string
	params Params

	lines chan string
	done  chan struct{}
	wg    sync.WaitGroup

	closeOnce sync.Once

	mu         sync.Mutex
	failed     error         //first transport error seen
	failedCh   chan struct{} //closed when failed is set
	stalePongs int           //replies still owed to liveness checks that timed out
}

var _ Device = (*Session)(nil)

// swapped out by tests
var openPort = func(dev string, baud int) (Port, error) {
	p, err := serial.Open(dev, baud)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Open opens the named port. If that takes longer than ConnectTimeout (a
// wedged usb device can block open), Open gives up; a port that opens late
// is closed immediately.
func Open(ctx context.Context, port string, params Params) (*Session, error) {
	type result struct {
		p   Port
		err error
	}
	ch := make(chan result, 1)
	go func() {
		p, err := openPort(port, params.Baud)
		ch <- result{p, err}
	}()
	abandon := func() {
		go func() {
			if r := <-ch; r.p != nil {
				r.p.Close()
			}
		}()
	}
	timeout := params.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		if r.err != nil {
			return nil, &TransportError{Op: "open", Port: port, Err: r.err}
		}
		log.Logf("opened %s at %d baud", port, params.Baud)
		return New(r.p, port, params), nil
	case <-timer.C:
		abandon()
		return nil, &TransportError{Op: "open", Port: port, Err: ETimeout}
	case <-ctx.Done():
		abandon()
		return nil, ctx.Err()
	}
}

// New wraps an already-open port and starts the line reader.
func New(p Port, name string, params Params) *Session {
	if params.LivenessTimeout <= 0 {
		params.LivenessTimeout = DefaultLivenessTimeout
	}
	s := &Session{
		port:     p,
		name:     name,
		params:   params,
		lines:    make(chan string, lineBuf),
		done:     make(chan struct{}),
		failedCh: make(chan struct{}),
	}
	// drop whatever the device printed before we were listening, e.g. its
	// boot banner after a reset
	if err := p.Flush(); err != nil {
		log.Logf("%s: flush: %s", name, err)
	}
	s.wg.Add(1)
	go s.handleIncoming()
	return s
}

// OpenerFor returns an Opener reopening the same port with the same params.
func OpenerFor(port string, params Params) Opener {
	return func(ctx context.Context) (Device, error) {
		s, err := Open(ctx, port, params)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func (s *Session) Port() string { return s.name }

// Must run in background. Exits when the port is closed or fails.
func (s *Session) handleIncoming() {
	defer s.wg.Done()
	r := bufio.NewReaderSize(s.port, 4096)
	for {
		raw, err := readLine(r, MaxLine)
		if err != nil {
			select {
			case <-s.done:
			default:
				if len(raw) > 0 {
					log.Debugf("%s: discarding partial line %q", s.name, raw)
				}
				s.fail(err)
			}
			return
		}
		line := decode(raw)
		select {
		case s.lines <- line:
		default:
			log.Logf("%s: line buffer full, discarding %q", s.name, line)
		}
	}
}

// readLine reads through the next newline, keeping at most max bytes.
func readLine(r *bufio.Reader, max int) ([]byte, error) {
	var line []byte
	for {
		frag, err := r.ReadSlice('\n')
		if room := max - len(line); room > 0 {
			if len(frag) > room {
				frag = frag[:room]
			}
			line = append(line, frag...)
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return line, err
	}
}

// Undecodable bytes are replaced, never fatal.
func decode(raw []byte) string {
	return strings.TrimSpace(strings.ToValidUTF8(string(raw), "�"))
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed == nil {
		s.failed = err
		close(s.failedCh)
		log.Logf("%s: transport failed: %s", s.name, err)
	}
}

// err returns the reason the session is unusable, or nil.
func (s *Session) err(op string) error {
	select {
	case <-s.done:
		return &TransportError{Op: op, Port: s.name, Err: EClosed}
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed != nil {
		return &TransportError{Op: op, Port: s.name, Err: s.failed}
	}
	return nil
}

// discard lines nobody waited for, e.g. a late answer to a command that
// already timed out, so they are not mistaken for the next response
func (s *Session) drain() {
	for {
		select {
		case l := <-s.lines:
			s.owedPong(l)
			log.Debugf("%s: discarding stale line %q", s.name, l)
		default:
			return
		}
	}
}

// owedPong reports whether line is the late reply to a liveness check that
// already gave up, and if so settles that debt.
func (s *Session) owedPong(line string) bool {
	if line != LivenessReply {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stalePongs == 0 {
		return false
	}
	s.stalePongs--
	return true
}

// SendCommand writes cmd plus newline. Success only means the bytes were
// written; it implies nothing about the device having acted on them.
func (s *Session) SendCommand(cmd string) error {
	if err := s.err("write"); err != nil {
		return err
	}
	s.drain()
	log.Debugf("%s > %s", s.name, cmd)
	if _, err := s.port.Write([]byte(cmd + "\n")); err != nil {
		s.fail(err)
		return &TransportError{Op: "write", Port: s.name, Err: err}
	}
	return nil
}

// AwaitLine returns the next line, or ETimeout once deadline has elapsed.
// A failed or closed transport yields a *TransportError.
// Late liveness replies are skipped.
func (s *Session) AwaitLine(ctx context.Context, deadline time.Duration) (string, error) {
	timer := time.NewTimer(deadline)
	defer timer.Stop()
	for {
		line, err := s.nextLine(ctx, timer.C)
		if err != nil {
			return "", err
		}
		if s.owedPong(line) {
			log.Debugf("%s: discarding late %q", s.name, line)
			continue
		}
		log.Debugf("%s < %s", s.name, line)
		return line, nil
	}
}

func (s *Session) nextLine(ctx context.Context, expired <-chan time.Time) (string, error) {
	select {
	case line := <-s.lines:
		return line, nil
	default:
	}
	if err := s.err("read"); err != nil {
		return "", err
	}
	select {
	case line := <-s.lines:
		return line, nil
	case <-s.failedCh:
		return "", s.err("read")
	case <-s.done:
		return "", s.err("read")
	case <-expired:
		return "", ETimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// CheckLiveness sends the probe and expects exactly the reply within the
// liveness timeout. Any failure yields false. Safe to call repeatedly; the
// caller need not have sent anything first. A reply that turns up after
// its check timed out is not credited to a later check.
func (s *Session) CheckLiveness(ctx context.Context) bool {
	if err := s.SendCommand(LivenessProbe); err != nil {
		log.Logf("liveness: %s", err)
		return false
	}
	line, err := s.AwaitLine(ctx, s.params.LivenessTimeout)
	if err != nil {
		if !IsTransport(err) {
			s.mu.Lock()
			s.stalePongs++
			s.mu.Unlock()
		}
		log.Logf("liveness: %s", err)
		return false
	}
	if line != LivenessReply {
		log.Logf("liveness: want %q, got %q", LivenessReply, line)
		return false
	}
	return true
}

// Close releases the port. Safe to call more than once; later calls return
// nil.
func (s *Session) Close() (err error) {
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.port.Close()
		stopped := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(closeWait):
			log.Logf("%s: reader did not exit after close", s.name)
		}
		log.Logf("closed %s", s.name)
	})
	return err
}
