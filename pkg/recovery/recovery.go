// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package recovery decides whether a session survived a failed iteration
// and, if not, replaces it. There is exactly one reopen attempt per failure;
// if that fails, the link is considered unrecoverable.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teamsatosys/mintfuzz/pkg/hw/usb"
	"github.com/teamsatosys/mintfuzz/pkg/log"
	"github.com/teamsatosys/mintfuzz/pkg/session"
)

const DefaultSettle = time.Second

var EUnrecoverable = errors.New("unrecoverable link")

// Fault is what went wrong in the iteration being recovered from.
type Fault int

const (
	//no response before the deadline; device may still be alive
	Timeout Fault = iota
	//responded, then failed the liveness probe
	Unresponsive
	//the transport failed
	Transport
)

func (f Fault) String() string {
	switch f {
	case Timeout:
		return "timeout"
	case Unresponsive:
		return "unresponsive"
	case Transport:
		return "transport"
	}
	return fmt.Sprintf("fault(%d)", int(f))
}

type Action int

const (
	//keep using the current session
	Resume Action = iota
	//close, settle, open once
	Reconnect
)

func (a Action) String() string {
	if a == Resume {
		return "resume"
	}
	return "reconnect"
}

// Plan decides what to do about a fault. alive is the result of a liveness
// probe, and only matters for Timeout; other faults always reconnect.
func Plan(f Fault, alive bool) Action {
	if f == Timeout && alive {
		return Resume
	}
	return Reconnect
}

// Manager carries out the plan.
type Manager struct {
	Open   session.Opener
	Settle time.Duration //pause between close and reopen
	//if set, wait up to NodeWait for this device node before reopening
	Node     string
	NodeWait time.Duration

	sleep func(context.Context, time.Duration) error
}

// Recover returns the session to continue with: cur itself if the device is
// still responsive after a timeout, otherwise a freshly opened one.
// reconnected reports which. If the reopen fails, the error wraps
// EUnrecoverable and cur has already been closed.
func (m *Manager) Recover(ctx context.Context, cur session.Device, f Fault) (next session.Device, reconnected bool, err error) {
	alive := false
	if f == Timeout {
		alive = cur.CheckLiveness(ctx)
	}
	act := Plan(f, alive)
	log.Logf("recovery: fault=%s alive=%t action=%s", f, alive, act)
	if act == Resume {
		return cur, false, nil
	}

	port := cur.Port()
	if err := cur.Close(); err != nil {
		log.Logf("recovery: closing %s: %s", port, err)
	}
	if err := m.pause(ctx, m.settle()); err != nil {
		return nil, false, err
	}
	if m.Node != "" && m.NodeWait > 0 {
		if err := usb.WaitForNode(ctx, m.Node, m.NodeWait); err != nil {
			if ctx.Err() != nil {
				return nil, false, ctx.Err()
			}
			//still make the one attempt; it will report the real failure
			log.Logf("recovery: %s", err)
		}
	}
	next, err = m.Open(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("%w: reopening %s: %w", EUnrecoverable, port, err)
	}
	log.Logf("recovery: reconnected to %s", next.Port())
	return next, true, nil
}

func (m *Manager) settle() time.Duration {
	if m.Settle < 0 {
		return 0
	}
	return m.Settle
}

func (m *Manager) pause(ctx context.Context, d time.Duration) error {
	if m.sleep != nil {
		return m.sleep(ctx, d)
	}
	if d == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
