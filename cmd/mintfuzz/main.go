// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Command mintfuzz runs an unattended fuzz campaign against a Mint device
// attached over usb, and exits 0 only if the device neither hung nor crashed.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/teamsatosys/mintfuzz/pkg/config"
	"github.com/teamsatosys/mintfuzz/pkg/log"
	"github.com/teamsatosys/mintfuzz/pkg/log/flags"
	"github.com/teamsatosys/mintfuzz/pkg/log/zaplog"
)

var EPrecondition = errors.New("precondition failed")

type cli struct {
	cfg      config.Config
	cfgFile  string
	exitCode int
}

func main() {
	c := &cli{cfg: config.Default()}
	err := c.root().Execute()
	if err != nil {
		log.Fatalf("%s", err)
	}
	log.Finalize()
	os.Exit(c.exitCode)
}

func (c *cli) root() *cobra.Command {
	root := &cobra.Command{
		Use:   "mintfuzz",
		Short: "Fuzz a Mint device over its serial command interface",
		Long: `mintfuzz stages random, printable, unicode and adversarial payloads,
asks the device to process each one, and watches for hangs and crashes,
reconnecting when the device resets. The exit status is 0 only if every
iteration succeeded.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.loadConfig,
		RunE:              c.runCampaign,
	}
	c.persistentFlags(root.PersistentFlags())
	c.campaignFlags(root.Flags())

	run := &cobra.Command{
		Use:   "run",
		Short: "Run a fuzz campaign (default)",
		Args:  cobra.NoArgs,
		RunE:  c.runCampaign,
	}
	c.campaignFlags(run.Flags())

	probe := &cobra.Command{
		Use:   "probe",
		Short: "Check usb presence and liveness once",
		Args:  cobra.NoArgs,
		RunE:  c.runProbe,
	}

	var pa payloadArgs
	payloads := &cobra.Command{
		Use:   "payloads",
		Short: "Regenerate the payload sequence of a seed",
		Long: `Writes the first --count payloads a campaign with the given seed would
send, as fuzz_<i>.bin in --out. Use it to replay a failing iteration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error { return c.runPayloads(cmd, pa) },
	}
	payloads.Flags().IntVar(&pa.count, "count", 1, "number of payloads")
	payloads.Flags().StringVar(&pa.out, "out", "payloads", "output directory")
	payloads.Flags().BoolVar(&pa.list, "list", false, "only list kind and length")

	root.AddCommand(run, probe, payloads)
	return root
}

// flags shared by every subcommand
func (c *cli) persistentFlags(fs *pflag.FlagSet) {
	cfg := &c.cfg
	fs.StringVarP(&c.cfgFile, "config", "c", "", "yaml config file; flags override it")
	fs.StringVarP(&cfg.Port, "port", "p", cfg.Port, "serial port of the device")
	fs.IntVar(&cfg.Baud, "baud", cfg.Baud, "baud rate")
	fs.DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "limit on opening the port")
	fs.DurationVar(&cfg.LivenessTimeout, "liveness-timeout", cfg.LivenessTimeout, "limit on the ping/pong probe")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "payload seed; 0 picks one from the clock")
	fs.IntVar(&cfg.MinSize, "min-size", cfg.MinSize, "smallest payload")
	fs.IntVar(&cfg.MaxSize, "max-size", cfg.MaxSize, "largest payload")
	fs.StringVar(&cfg.USB.Vendor, "usb-vendor", cfg.USB.Vendor, "usb vendor id (hex)")
	fs.StringVar(&cfg.USB.Product, "usb-product", cfg.USB.Product, "usb product id (hex)")
	fs.StringVar(&cfg.USB.SysRoot, "sysfs", cfg.USB.SysRoot, "where to look for usb devices")
	fs.BoolVar(&cfg.USB.Skip, "skip-usb", cfg.USB.Skip, "skip the usb presence check")
	fs.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "also write a text log to this dir")
	fs.StringVar(&cfg.LogJSON, "log-json", cfg.LogJSON, "also write a JSON log to this file")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "show all log entries")
}

func (c *cli) campaignFlags(fs *pflag.FlagSet) {
	cfg := &c.cfg
	fs.IntVarP(&cfg.Iterations, "iterations", "n", cfg.Iterations, "number of iterations")
	fs.DurationVar(&cfg.ResponseTimeout, "response-timeout", cfg.ResponseTimeout, "how long to wait for the device to answer")
	fs.DurationVar(&cfg.Settle, "settle", cfg.Settle, "pause between closing and reopening the port")
	fs.DurationVar(&cfg.NodeWait, "node-wait", cfg.NodeWait, "how long to wait for the tty to reappear after a reset")
	fs.StringVar(&cfg.ScratchDir, "scratch", cfg.ScratchDir, "where payloads are staged")
	fs.StringVar(&cfg.DevicePrefix, "device-prefix", cfg.DevicePrefix, "path of the scratch dir as seen by the device")
	fs.BoolVar(&cfg.KeepPayloads, "keep-payloads", cfg.KeepPayloads, "leave staged payloads in the scratch dir")
	fs.StringVar(&cfg.FindingsDir, "findings", cfg.FindingsDir, "archive payloads of hangs and crashes here")
}

// loadConfig overlays the config file, if any, then re-applies any flags
// given on the command line so they win over the file.
func (c *cli) loadConfig(cmd *cobra.Command, _ []string) error {
	if c.cfgFile != "" {
		set := map[string]string{}
		cmd.Flags().Visit(func(f *pflag.Flag) {
			if f.Name != "config" {
				set[f.Name] = f.Value.String()
			}
		})
		loaded, err := config.Load(c.cfgFile)
		if err != nil {
			return fmt.Errorf("%w: %s", EPrecondition, err)
		}
		c.cfg = loaded
		for name, val := range set {
			if err := cmd.Flags().Set(name, val); err != nil {
				return err
			}
		}
	}
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %s", EPrecondition, err)
	}
	return nil
}

// setupLogging adds the sinks the config asks for. Safe to call again.
func setupLogging(cfg config.Config, campaign string) error {
	log.SetPrefix("mintfuzz")
	if cfg.Verbose {
		log.AddConsoleLog(flags.NA, true)
	} else {
		log.AddConsoleLog(flags.Operator, false)
	}
	if cfg.LogDir != "" && !log.LoggingToFile() {
		fname, err := log.AddFileLog(cfg.LogDir)
		if err != nil {
			return fmt.Errorf("%w: log dir: %s", EPrecondition, err)
		}
		log.Logf("logging to %s", fname)
	}
	if cfg.LogJSON != "" && !log.InStack(zaplog.ZapLogIdent) {
		if err := zaplog.AddZapLog(cfg.LogJSON); err != nil {
			return fmt.Errorf("%w: %s", EPrecondition, err)
		}
	}
	if campaign != "" {
		if err := log.SetAttr("campaign", campaign); err != nil {
			log.Logf("campaign attr: %s", err)
		}
	}
	return nil
}
