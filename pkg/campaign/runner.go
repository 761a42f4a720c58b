// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package campaign runs a fuzz campaign against one device: N iterations of
// generate, stage, send, wait, classify, recover and tally.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/teamsatosys/mintfuzz/pkg/log"
	"github.com/teamsatosys/mintfuzz/pkg/outcome"
	"github.com/teamsatosys/mintfuzz/pkg/payload"
	"github.com/teamsatosys/mintfuzz/pkg/recovery"
	"github.com/teamsatosys/mintfuzz/pkg/session"
)

const (
	ProcessCmd             = "process_file"
	DefaultResponseTimeout = 10 * time.Second
	DefaultProgressEvery   = 100
)

var EInterrupted = errors.New("interrupted by operator")

// Recoverer is satisfied by *recovery.Manager.
type Recoverer interface {
	Recover(ctx context.Context, cur session.Device, f recovery.Fault) (session.Device, bool, error)
}

type Runner struct {
	ID              string
	Iterations      int
	Seed            int64 //recorded in the report; Gen must already use it
	ResponseTimeout time.Duration
	ProgressEvery   int

	Gen      *payload.Generator
	Stager   *Stager
	Recovery Recoverer
	Archive  *Archive //optional

	state State
}

// NewID returns a fresh campaign id: timestamp plus a random suffix.
func NewID() string {
	return log.Timestamp() + "_" + uuid.NewString()[:8]
}

func (r *Runner) State() State { return r.state }

// Run drives the campaign on dev until all iterations are done, the link is
// lost for good, or ctx is cancelled. Whichever session is current at the end
// is closed. An interrupted iteration is not tallied.
func (r *Runner) Run(ctx context.Context, dev session.Device) (rep Report) {
	if r.ID == "" {
		r.ID = NewID()
	}
	if r.ResponseTimeout <= 0 {
		r.ResponseTimeout = DefaultResponseTimeout
	}
	if r.ProgressEvery <= 0 {
		r.ProgressEvery = DefaultProgressEvery
	}
	rep = Report{
		Campaign:  r.ID,
		Port:      dev.Port(),
		Seed:      r.Seed,
		Requested: r.Iterations,
		Started:   time.Now(),
	}
	defer func() {
		if err := dev.Close(); err != nil {
			log.Logf("closing %s: %s", dev.Port(), err)
		}
		if r.state != Aborted {
			r.state = Finished
		}
		rep.State = r.state
		rep.Verdict = outcome.Judge(rep.Tally, r.state == Aborted)
		rep.Ended = time.Now()
		if r.Archive != nil {
			if err := r.Archive.WriteReport(rep); err != nil {
				log.Logf("writing report: %s", err)
			}
		}
	}()

	abort := func(reason string) {
		r.state = Aborted
		rep.Reason = reason
		log.Msgf("Campaign aborted after %d iterations: %s", rep.Tally.Total(), reason)
	}

	if err := r.Stager.Prepare(); err != nil {
		abort(fmt.Sprintf("scratch dir: %s", err))
		return
	}
	log.Msgf("Starting fuzzing with %d iterations (campaign %s, seed %d)...", r.Iterations, r.ID, r.Seed)
	r.state = Running
	for i := 0; i < r.Iterations; i++ {
		if ctx.Err() != nil {
			abort(EInterrupted.Error())
			return
		}
		if i%r.ProgressEvery == 0 {
			log.Msgf("Fuzzing iteration %d/%d", i, r.Iterations)
		}
		p := r.Gen.Generate()
		o, fault, err := r.iterate(ctx, dev, i, p)
		if err != nil {
			abort(err.Error())
			return
		}
		rep.Tally = rep.Tally.Add(o.Kind)
		if o.Kind == outcome.Success {
			log.Debugf("%s", o)
			continue
		}
		r.report(o)
		rep.Findings = append(rep.Findings, r.keep(o, p))

		r.state = Recovering
		next, reconnected, err := r.Recovery.Recover(ctx, dev, fault)
		if err != nil {
			if ctx.Err() != nil {
				abort(EInterrupted.Error())
			} else {
				log.Msgf("Failed to reconnect to device. Please reset manually and restart test.")
				abort(err.Error())
			}
			return
		}
		if reconnected {
			rep.Reconnects++
		}
		dev = next
		r.state = Running
	}
	return
}

// iterate runs one iteration. A non-nil error means the iteration was not
// completed and must not be tallied.
func (r *Runner) iterate(ctx context.Context, dev session.Device, i int, p payload.Payload) (o outcome.Outcome, fault recovery.Fault, err error) {
	o.Iteration = i
	host, devPath, err := r.Stager.Stage(i, p)
	if err != nil {
		return o, 0, err
	}
	defer r.Stager.Cleanup(host)

	log.Debugf("iteration %d: %s -> %s", i, p, devPath)
	if err := dev.SendCommand(ProcessCmd + " " + devPath); err != nil {
		o.Kind, o.Err = outcome.TransportError, err
		return o, recovery.Transport, nil
	}
	start := time.Now()
	line, err := dev.AwaitLine(ctx, r.ResponseTimeout)
	o.Elapsed = time.Since(start)
	switch {
	case err == nil:
		o.Response = line
		if dev.CheckLiveness(ctx) {
			o.Kind = outcome.Success
			return o, 0, nil
		}
		if ctx.Err() != nil {
			return o, 0, EInterrupted
		}
		o.Kind = outcome.Crash
		return o, recovery.Unresponsive, nil
	case errors.Is(err, session.ETimeout):
		o.Kind = outcome.Hang
		return o, recovery.Timeout, nil
	case ctx.Err() != nil:
		return o, 0, EInterrupted
	default:
		o.Kind, o.Err = outcome.TransportError, err
		return o, recovery.Transport, nil
	}
}

func (r *Runner) report(o outcome.Outcome) {
	switch o.Kind {
	case outcome.Hang:
		log.Msgf("HANG: Device timed out on iteration %d", o.Iteration)
	case outcome.Crash:
		log.Msgf("CRASH: Device crashed on iteration %d", o.Iteration)
	default:
		log.Msgf("ERROR: Exception during iteration %d: %s", o.Iteration, o.Err)
	}
}

// keep archives the payload of a failed iteration, if archiving is on.
func (r *Runner) keep(o outcome.Outcome, p payload.Payload) Finding {
	f := Finding{Iteration: o.Iteration, Outcome: o.Kind.String(), Payload: p.String()}
	if r.Archive == nil {
		return f
	}
	fname, err := r.Archive.Save(o, p)
	if err != nil {
		log.Logf("archiving iteration %d: %s", o.Iteration, err)
		return f
	}
	f.File = fname
	return f
}
