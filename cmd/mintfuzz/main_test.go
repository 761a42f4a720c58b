// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	fp "path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamsatosys/mintfuzz/pkg/config"
	"github.com/teamsatosys/mintfuzz/pkg/log/testlog"
	"github.com/teamsatosys/mintfuzz/pkg/payload"
	"github.com/teamsatosys/mintfuzz/pkg/session"
)

// mocks records every port opened through openDevice.
type mocks struct {
	mu      sync.Mutex
	respond session.Responder
	fail    bool
	ports   []*session.MockPort
}

func (m *mocks) install(t *testing.T) {
	orig := openDevice
	t.Cleanup(func() { openDevice = orig })
	openDevice = func(cfg config.Config) session.Opener {
		return func(context.Context) (session.Device, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			if m.fail {
				return nil, &session.TransportError{Op: "open", Port: cfg.Port, Err: os.ErrNotExist}
			}
			s, p := session.NewMock(cfg.Port, m.respond, cfg.Params())
			m.ports = append(m.ports, p)
			return s, nil
		}
	}
}

func execute(t *testing.T, args ...string) (*cli, string, error) {
	t.Helper()
	c := &cli{cfg: config.Default()}
	cmd := c.root()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return c, out.String(), err
}

func fastArgs(t *testing.T) []string {
	return []string{
		"--port", "/dev/ttyMOCK0", "--skip-usb",
		"--scratch", fp.Join(t.TempDir(), "scratch"),
		"--seed", "5", "--max-size", "128",
		"--response-timeout", "100ms", "--liveness-timeout", "100ms",
		"--settle", "0s", "--node-wait", "0s",
	}
}

func TestPortRequired(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()

	_, _, err := execute(t, "run", "--skip-usb")
	assert.ErrorIs(t, err, EPrecondition)
	assert.ErrorContains(t, err, "--port")
}

func TestUSBMissing(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	m := &mocks{respond: session.Healthy}
	m.install(t)

	_, _, err := execute(t, "--port", "/dev/ttyMOCK0", "--sysfs", t.TempDir())
	assert.ErrorIs(t, err, EPrecondition)
	assert.Empty(t, m.ports, "port must not be opened without the device")
}

func fakeSysfs(t *testing.T) string {
	root := t.TempDir()
	dir := fp.Join(root, "1-1")
	require.NoError(t, os.MkdirAll(fp.Join(dir, "1-1:1.0", "tty", "ttyACM0"), 0755))
	require.NoError(t, os.WriteFile(fp.Join(dir, "idVendor"), []byte("239a\n"), 0644))
	require.NoError(t, os.WriteFile(fp.Join(dir, "idProduct"), []byte("8029\n"), 0644))
	return root
}

func TestCampaignPass(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	m := &mocks{respond: session.Healthy}
	m.install(t)

	args := fastArgs(t)
	for i, a := range args {
		if a == "--skip-usb" {
			args[i] = "--sysfs=" + fakeSysfs(t)
		}
	}
	c, out, err := execute(t, append(args, "-n", "4")...)
	tlog.Freeze()
	require.NoError(t, err)
	assert.Equal(t, 0, c.exitCode)
	assert.Contains(t, out, "Total test cases:  4")
	assert.Contains(t, out, "PASSED")
	require.Len(t, m.ports, 1)
	assert.True(t, m.ports[0].Closed())
	assert.True(t, tlog.Contains("Using seed 5"))
	assert.True(t, tlog.Contains("Found Mint device via USB"))
}

func TestCampaignAborts(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	m := &mocks{respond: func(string) []string { return nil }}
	m.install(t)
	findings := t.TempDir()

	//every reopen fails, so the first hang ends the campaign
	orig := openDevice
	first := true
	openDevice = func(cfg config.Config) session.Opener {
		o := orig(cfg)
		return func(ctx context.Context) (session.Device, error) {
			if !first {
				m.mu.Lock()
				m.fail = true
				m.mu.Unlock()
			}
			first = false
			return o(ctx)
		}
	}
	c, out, err := execute(t, append(fastArgs(t), "-n", "10", "--findings", findings)...)
	require.NoError(t, err)
	assert.Equal(t, 1, c.exitCode)
	assert.Contains(t, out, "Total test cases:  1 (of 10 requested)")
	assert.Contains(t, out, "FAILED: campaign aborted")

	reports, err := fp.Glob(fp.Join(findings, "*", "report.yaml"))
	require.NoError(t, err)
	require.Len(t, reports, 1)
	hangs, err := fp.Glob(fp.Join(findings, "*", "iter_0_hang.bin.xz"))
	require.NoError(t, err)
	assert.Len(t, hangs, 1)
}

func TestConfigFileAndOverride(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	m := &mocks{respond: session.Healthy}
	m.install(t)

	cfgFile := fp.Join(t.TempDir(), "mintfuzz.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("iterations: 2\nmax_size: 16\nsettle: 5s\n"), 0644))

	c, out, err := execute(t, append(fastArgs(t), "--config", cfgFile, "-n", "3")...)
	require.NoError(t, err)
	assert.Equal(t, 0, c.exitCode)
	assert.Contains(t, out, "Total test cases:  3")
	assert.Equal(t, 3, c.cfg.Iterations, "flag wins over file")
	assert.Equal(t, 128, c.cfg.MaxSize, "flag wins over file")
	assert.Equal(t, "0s", c.cfg.Settle.String(), "flag wins over file")
	assert.Equal(t, "/dev/ttyMOCK0", c.cfg.Port)
}

func TestBadConfig(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()

	_, _, err := execute(t, "probe", "--port", "/dev/x", "--baud", "1234")
	assert.ErrorIs(t, err, EPrecondition)
}

func TestProbe(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	m := &mocks{respond: session.Healthy}
	m.install(t)

	c, out, err := execute(t, "probe", "--port", "/dev/ttyMOCK0", "--sysfs", fakeSysfs(t), "--liveness-timeout", "100ms")
	require.NoError(t, err)
	assert.Equal(t, 0, c.exitCode)
	assert.Contains(t, out, "tty: /dev/ttyACM0")
	assert.Contains(t, out, "/dev/ttyMOCK0: alive")

	m.respond = func(string) []string { return nil }
	c, out, err = execute(t, "probe", "--port", "/dev/ttyMOCK0", "--skip-usb", "--liveness-timeout", "50ms")
	require.NoError(t, err)
	assert.Equal(t, 1, c.exitCode)
	assert.Contains(t, out, "not responding")
}

func TestPayloads(t *testing.T) {
	dir := fp.Join(t.TempDir(), "replay")
	_, out, err := execute(t, "payloads", "--seed", "9", "--count", "3", "--max-size", "256", "--out", dir)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 3)

	gen := payload.New(9, 1, 256)
	for i := 0; i < 3; i++ {
		want := gen.Generate()
		got, err := os.ReadFile(fp.Join(dir, fmt.Sprintf("fuzz_%d.bin", i)))
		require.NoError(t, err)
		assert.Equal(t, want.Bytes(), got, "payload %d", i)
	}

	_, _, err = execute(t, "payloads", "--count", "1")
	assert.ErrorIs(t, err, EPrecondition, "a clock seed cannot be replayed")
}
