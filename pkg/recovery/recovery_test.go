// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package recovery

import (
	"context"
	"errors"
	"os"
	fp "path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamsatosys/mintfuzz/pkg/log/testlog"
	"github.com/teamsatosys/mintfuzz/pkg/session"
)

func params() session.Params {
	return session.Params{LivenessTimeout: 100 * time.Millisecond}
}

func TestPlan(t *testing.T) {
	for _, td := range []struct {
		f     Fault
		alive bool
		want  Action
	}{
		{Timeout, true, Resume},
		{Timeout, false, Reconnect},
		{Unresponsive, true, Reconnect},
		{Unresponsive, false, Reconnect},
		{Transport, true, Reconnect},
		{Transport, false, Reconnect},
	} {
		assert.Equal(t, td.want, Plan(td.f, td.alive), "%s alive=%t", td.f, td.alive)
	}
}

// counts opens, returning healthy mock sessions or err
type opener struct {
	calls int
	err   error
	last  *session.MockPort
}

func (o *opener) open(context.Context) (session.Device, error) {
	o.calls++
	if o.err != nil {
		return nil, o.err
	}
	s, m := session.NewMock("reopened", session.Healthy, params())
	o.last = m
	return s, nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestTimeoutAliveKeepsSession(t *testing.T) {
	tlog := testlog.NewTestLogNoBG(t, false)
	defer tlog.Freeze()

	cur, m := session.NewMock("mock0", session.Healthy, params())
	defer cur.Close()
	o := &opener{}
	mgr := &Manager{Open: o.open, sleep: noSleep}

	next, reconnected, err := mgr.Recover(context.Background(), cur, Timeout)
	require.NoError(t, err)
	assert.False(t, reconnected)
	assert.Same(t, cur, next)
	assert.Zero(t, o.calls)
	assert.False(t, m.Closed())
	assert.True(t, next.CheckLiveness(context.Background()))
}

func TestTimeoutDeadReconnects(t *testing.T) {
	tlog := testlog.NewTestLogNoBG(t, false)
	defer tlog.Freeze()

	cur, m := session.NewMock("mock0", func(string) []string { return nil }, params())
	o := &opener{}
	var slept time.Duration
	mgr := &Manager{Open: o.open, Settle: 3 * time.Second, sleep: func(_ context.Context, d time.Duration) error {
		slept = d
		return nil
	}}

	next, reconnected, err := mgr.Recover(context.Background(), cur, Timeout)
	require.NoError(t, err)
	defer next.Close()
	assert.True(t, reconnected)
	assert.True(t, m.Closed(), "old session must be closed before reopening")
	assert.Equal(t, 1, o.calls)
	assert.Equal(t, 3*time.Second, slept)
	assert.Equal(t, "reopened", next.Port())
}

func TestTransportNoProbe(t *testing.T) {
	tlog := testlog.NewTestLogNoBG(t, false)
	defer tlog.Freeze()

	cur, m := session.NewMock("mock0", session.Healthy, params())
	o := &opener{}
	mgr := &Manager{Open: o.open, sleep: noSleep}

	next, reconnected, err := mgr.Recover(context.Background(), cur, Transport)
	require.NoError(t, err)
	defer next.Close()
	assert.True(t, reconnected)
	assert.Empty(t, m.Commands(), "transport faults skip the liveness probe")
}

func TestReopenFails(t *testing.T) {
	tlog := testlog.NewTestLogNoBG(t, false)
	defer tlog.Freeze()

	cur, m := session.NewMock("mock0", session.Healthy, params())
	m.Fail(syscall.EIO)
	o := &opener{err: &session.TransportError{Op: "open", Port: "mock0", Err: syscall.ENOENT}}
	mgr := &Manager{Open: o.open, sleep: noSleep}

	next, reconnected, err := mgr.Recover(context.Background(), cur, Unresponsive)
	assert.Nil(t, next)
	assert.False(t, reconnected)
	assert.ErrorIs(t, err, EUnrecoverable)
	assert.ErrorIs(t, err, syscall.ENOENT)
	assert.Equal(t, 1, o.calls, "exactly one reopen attempt")
	assert.True(t, m.Closed())
}

func TestCancelledDuringSettle(t *testing.T) {
	tlog := testlog.NewTestLogNoBG(t, false)
	defer tlog.Freeze()

	cur, _ := session.NewMock("mock0", session.Healthy, params())
	o := &opener{}
	mgr := &Manager{Open: o.open, Settle: time.Minute}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := mgr.Recover(ctx, cur, Transport)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, o.calls)
}

func TestNodeWaitBeforeReopen(t *testing.T) {
	tlog := testlog.NewTestLogNoBG(t, false)
	defer tlog.Freeze()

	node := fp.Join(t.TempDir(), "ttyACM0")
	cur, _ := session.NewMock("mock0", session.Healthy, params())
	o := &opener{}
	mgr := &Manager{Open: o.open, Node: node, NodeWait: 5 * time.Second, sleep: noSleep}

	go func() {
		time.Sleep(50 * time.Millisecond)
		f, err := os.Create(node)
		if err == nil {
			f.Close()
		}
	}()
	next, reconnected, err := mgr.Recover(context.Background(), cur, Transport)
	require.NoError(t, err)
	defer next.Close()
	assert.True(t, reconnected)
	assert.FileExists(t, node)
}

func TestNodeMissingStillOneAttempt(t *testing.T) {
	tlog := testlog.NewTestLogNoBG(t, false)
	defer tlog.Freeze()

	node := fp.Join(t.TempDir(), "ttyACM0")
	cur, _ := session.NewMock("mock0", session.Healthy, params())
	o := &opener{err: errors.New("no such device")}
	mgr := &Manager{Open: o.open, Node: node, NodeWait: 20 * time.Millisecond, sleep: noSleep}

	_, _, err := mgr.Recover(context.Background(), cur, Transport)
	assert.ErrorIs(t, err, EUnrecoverable)
	assert.Equal(t, 1, o.calls)
}
