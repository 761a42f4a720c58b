// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teamsatosys/mintfuzz/pkg/campaign"
	"github.com/teamsatosys/mintfuzz/pkg/config"
	"github.com/teamsatosys/mintfuzz/pkg/hw/usb"
	"github.com/teamsatosys/mintfuzz/pkg/log"
	"github.com/teamsatosys/mintfuzz/pkg/payload"
	"github.com/teamsatosys/mintfuzz/pkg/recovery"
	"github.com/teamsatosys/mintfuzz/pkg/session"
)

// swapped out by tests
var openDevice = func(cfg config.Config) session.Opener {
	return session.OpenerFor(cfg.Port, cfg.Params())
}

func (c *cli) requirePort() error {
	if c.cfg.Port == "" {
		return fmt.Errorf("%w: --port is required", EPrecondition)
	}
	return nil
}

// checkUSB looks for the device once. The serial port is not opened until
// this passes.
func (c *cli) checkUSB() (usb.Device, error) {
	if c.cfg.USB.Skip {
		log.Logf("usb presence check skipped")
		return usb.Device{}, nil
	}
	vid, pid, err := c.cfg.USB.IDs()
	if err != nil {
		return usb.Device{}, fmt.Errorf("%w: %s", EPrecondition, err)
	}
	d, err := usb.Present(c.cfg.USB.SysRoot, vid, pid)
	if err != nil {
		log.Msgf("Could not find Mint device via USB")
		return d, fmt.Errorf("%w: %s", EPrecondition, err)
	}
	log.Msgf("Found Mint device via USB: %s", d)
	return d, nil
}

func interruptible(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func (c *cli) runCampaign(cmd *cobra.Command, _ []string) error {
	if err := c.requirePort(); err != nil {
		return err
	}
	cfg := c.cfg
	id := campaign.NewID()
	if err := setupLogging(cfg, id); err != nil {
		return err
	}
	log.Logf("configuration:\n%s", cfg.Dump())
	if _, err := c.checkUSB(); err != nil {
		return err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	log.Msgf("Using seed %d", cfg.Seed)

	ctx, stop := interruptible(cmd.Context())
	defer stop()
	open := openDevice(cfg)
	dev, err := open(ctx)
	if err != nil {
		log.Msgf("Failed to connect to device: %s", err)
		return fmt.Errorf("%w: %s", EPrecondition, err)
	}
	log.Msgf("Connected to device on %s", dev.Port())

	r := &campaign.Runner{
		ID:              id,
		Iterations:      cfg.Iterations,
		Seed:            cfg.Seed,
		ResponseTimeout: cfg.ResponseTimeout,
		Gen:             payload.New(cfg.Seed, cfg.MinSize, cfg.MaxSize),
		Stager: &campaign.Stager{
			Dir:          cfg.ScratchDir,
			DevicePrefix: cfg.DevicePrefix,
			Keep:         cfg.KeepPayloads,
		},
		Recovery: &recovery.Manager{
			Open:     open,
			Settle:   cfg.Settle,
			Node:     cfg.Port,
			NodeWait: cfg.NodeWait,
		},
	}
	if cfg.FindingsDir != "" {
		a, err := campaign.NewArchive(cfg.FindingsDir, id)
		if err != nil {
			dev.Close()
			return fmt.Errorf("%w: findings dir: %s", EPrecondition, err)
		}
		r.Archive = a
		log.Msgf("Archiving findings in %s", a.Dir())
	}
	rep := r.Run(ctx, dev)
	rep.Results(cmd.OutOrStdout())
	c.exitCode = rep.ExitCode()
	return nil
}

func (c *cli) runProbe(cmd *cobra.Command, _ []string) error {
	if err := c.requirePort(); err != nil {
		return err
	}
	if err := setupLogging(c.cfg, ""); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	d, err := c.checkUSB()
	if err != nil {
		return err
	}
	if d.SysPath != "" {
		fmt.Fprintf(out, "usb: %s\n", d)
		for _, tty := range d.Ttys {
			fmt.Fprintf(out, "  tty: %s\n", tty)
		}
	}
	ctx, stop := interruptible(cmd.Context())
	defer stop()
	dev, err := openDevice(c.cfg)(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s", EPrecondition, err)
	}
	defer dev.Close()
	if dev.CheckLiveness(ctx) {
		fmt.Fprintf(out, "%s: alive\n", dev.Port())
		c.exitCode = 0
	} else {
		fmt.Fprintf(out, "%s: not responding\n", dev.Port())
		c.exitCode = 1
	}
	return nil
}

type payloadArgs struct {
	count int
	out   string
	list  bool
}

func (c *cli) runPayloads(cmd *cobra.Command, pa payloadArgs) error {
	if c.cfg.Seed == 0 {
		return fmt.Errorf("%w: --seed is required to replay payloads", EPrecondition)
	}
	if pa.count < 0 {
		return fmt.Errorf("%w: --count must not be negative", EPrecondition)
	}
	gen := payload.New(c.cfg.Seed, c.cfg.MinSize, c.cfg.MaxSize)
	st := &campaign.Stager{Dir: pa.out, Keep: true}
	if !pa.list {
		if err := st.Prepare(); err != nil {
			return err
		}
	}
	out := cmd.OutOrStdout()
	for i := 0; i < pa.count; i++ {
		p := gen.Generate()
		fname := "-"
		if !pa.list {
			host, _, err := st.Stage(i, p)
			if err != nil {
				return err
			}
			fname = host
		}
		fmt.Fprintf(out, "%d\t%s\t%d\t%s\n", i, p.Kind(), p.Len(), fname)
	}
	return nil
}
