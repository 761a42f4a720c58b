// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package config holds campaign settings. Values come from defaults, then an
// optional yaml file, then command line flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teamsatosys/mintfuzz/pkg/hw/serial"
	"github.com/teamsatosys/mintfuzz/pkg/hw/usb"
	"github.com/teamsatosys/mintfuzz/pkg/payload"
	"github.com/teamsatosys/mintfuzz/pkg/recovery"
	"github.com/teamsatosys/mintfuzz/pkg/session"
)

var EInvalid = errors.New("invalid configuration")

type USB struct {
	Vendor  string `yaml:"vendor"`  //hex, e.g. 239a
	Product string `yaml:"product"` //hex
	SysRoot string `yaml:"sysfs_root"`
	Skip    bool   `yaml:"skip"`
}

// IDs returns the parsed vendor and product ids.
func (u USB) IDs() (vendor, product uint16, err error) {
	if vendor, err = usb.ParseID(u.Vendor); err != nil {
		return
	}
	product, err = usb.ParseID(u.Product)
	return
}

type Config struct {
	Port           string        `yaml:"port"`
	Baud           int           `yaml:"baud"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	Iterations int   `yaml:"iterations"`
	Seed       int64 `yaml:"seed"` //0: derive from the clock
	MinSize    int   `yaml:"min_size"`
	MaxSize    int   `yaml:"max_size"`

	ResponseTimeout time.Duration `yaml:"response_timeout"`
	LivenessTimeout time.Duration `yaml:"liveness_timeout"`
	Settle          time.Duration `yaml:"settle"`
	NodeWait        time.Duration `yaml:"node_wait"`

	ScratchDir   string `yaml:"scratch_dir"`
	DevicePrefix string `yaml:"device_prefix"` //path of ScratchDir as seen by the device
	KeepPayloads bool   `yaml:"keep_payloads"`
	FindingsDir  string `yaml:"findings_dir"`

	USB USB `yaml:"usb"`

	LogDir  string `yaml:"log_dir"`  //plain text log
	LogJSON string `yaml:"log_json"` //structured log
	Verbose bool   `yaml:"verbose"`
}

func Default() Config {
	return Config{
		Baud:            session.DefaultBaud,
		ConnectTimeout:  session.DefaultConnectTimeout,
		Iterations:      1000,
		MinSize:         payload.DefaultMinSize,
		MaxSize:         payload.DefaultMaxSize,
		ResponseTimeout: 10 * time.Second,
		LivenessTimeout: session.DefaultLivenessTimeout,
		Settle:          recovery.DefaultSettle,
		NodeWait:        5 * time.Second,
		ScratchDir:      "fuzz_data",
		USB: USB{
			Vendor:  fmt.Sprintf("%04x", usb.MintVendor),
			Product: fmt.Sprintf("%04x", usb.MintProduct),
			SysRoot: usb.DefaultRoot,
		},
	}
}

// Load returns the defaults overlaid with the yaml file at path. Keys absent
// from the file keep their default.
func Load(path string) (Config, error) {
	c := Default()
	buf, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Validate rejects settings that cannot work. Port is checked separately,
// since not every subcommand needs one.
func (c Config) Validate() error {
	var errs []string
	if !serial.Supported(c.Baud) {
		errs = append(errs, fmt.Sprintf("unsupported baud rate %d", c.Baud))
	}
	if c.Iterations < 0 {
		errs = append(errs, "iterations must not be negative")
	}
	if c.MinSize < 1 || c.MaxSize < c.MinSize {
		errs = append(errs, fmt.Sprintf("need 1 <= min_size (%d) <= max_size (%d)", c.MinSize, c.MaxSize))
	}
	for _, d := range []struct {
		name string
		val  time.Duration
	}{
		{"connect_timeout", c.ConnectTimeout},
		{"response_timeout", c.ResponseTimeout},
		{"liveness_timeout", c.LivenessTimeout},
	} {
		if d.val <= 0 {
			errs = append(errs, d.name+" must be positive")
		}
	}
	if c.Settle < 0 || c.NodeWait < 0 {
		errs = append(errs, "settle and node_wait must not be negative")
	}
	if c.ScratchDir == "" {
		errs = append(errs, "scratch_dir is required")
	}
	if !c.USB.Skip {
		if _, _, err := c.USB.IDs(); err != nil {
			errs = append(errs, "usb: "+err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", EInvalid, strings.Join(errs, "; "))
	}
	return nil
}

// Params for the device session.
func (c Config) Params() session.Params {
	return session.Params{
		Baud:            c.Baud,
		ConnectTimeout:  c.ConnectTimeout,
		LivenessTimeout: c.LivenessTimeout,
	}
}

// Dump renders the effective configuration, for the log.
func (c Config) Dump() string {
	buf, err := yaml.Marshal(c)
	if err != nil {
		return err.Error()
	}
	return string(buf)
}
