// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package config

import (
	"os"
	fp "path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamsatosys/mintfuzz/pkg/recovery"
)

func write(t *testing.T, body string) string {
	t.Helper()
	p := fp.Join(t.TempDir(), "mintfuzz.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0644))
	return p
}

func TestDefaultValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, 1000, c.Iterations)
	assert.Equal(t, 10*time.Second, c.ResponseTimeout)
	assert.Equal(t, 115200, c.Params().Baud)
	assert.Equal(t, recovery.DefaultSettle, c.Settle)
	v, p, err := c.USB.IDs()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x239a), v)
	assert.Equal(t, uint16(0x8029), p)
}

func TestLoadOverlay(t *testing.T) {
	c, err := Load(write(t, `
port: /dev/ttyACM1
iterations: 50
response_timeout: 3s
usb:
  skip: true
`))
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM1", c.Port)
	assert.Equal(t, 50, c.Iterations)
	assert.Equal(t, 3*time.Second, c.ResponseTimeout)
	assert.True(t, c.USB.Skip)
	//untouched keys keep defaults
	assert.Equal(t, 65536, c.MaxSize)
	assert.Equal(t, "8029", c.USB.Product)
	assert.NoError(t, c.Validate())
}

func TestLoadEmpty(t *testing.T) {
	c, err := Load(write(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoadUnknownKey(t *testing.T) {
	_, err := Load(write(t, "iteratons: 5\n"))
	assert.Error(t, err)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(fp.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	for _, td := range []struct {
		name string
		mod  func(*Config)
		msg  string
	}{
		{"baud", func(c *Config) { c.Baud = 1234 }, "baud"},
		{"negative iterations", func(c *Config) { c.Iterations = -1 }, "iterations"},
		{"size order", func(c *Config) { c.MinSize, c.MaxSize = 10, 5 }, "min_size"},
		{"zero min", func(c *Config) { c.MinSize = 0 }, "min_size"},
		{"response", func(c *Config) { c.ResponseTimeout = 0 }, "response_timeout"},
		{"settle", func(c *Config) { c.Settle = -time.Second }, "settle"},
		{"scratch", func(c *Config) { c.ScratchDir = "" }, "scratch_dir"},
		{"usb id", func(c *Config) { c.USB.Vendor = "zz" }, "usb"},
	} {
		t.Run(td.name, func(t *testing.T) {
			c := Default()
			td.mod(&c)
			err := c.Validate()
			assert.ErrorIs(t, err, EInvalid)
			assert.ErrorContains(t, err, td.msg)
		})
	}
	c := Default()
	c.USB.Vendor = "zz"
	c.USB.Skip = true
	assert.NoError(t, c.Validate(), "ids are not checked when usb is skipped")
}

func TestDump(t *testing.T) {
	assert.Contains(t, Default().Dump(), "response_timeout: 10s")
}
