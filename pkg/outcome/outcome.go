// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package outcome holds the per-iteration result classification and the
// campaign tally it folds into.
package outcome

import (
	"fmt"
	"time"
)

type Kind int

const (
	Success Kind = iota
	//no response within the iteration deadline
	Hang
	//responded, but then failed the liveness probe
	Crash
	//the transport itself failed during send or await
	TransportError
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Hang:
		return "hang"
	case Crash:
		return "crash"
	case TransportError:
		return "transport error"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Outcome of one iteration. Immutable once produced.
type Outcome struct {
	Iteration int
	Kind      Kind
	Elapsed   time.Duration //time spent waiting for the response
	Response  string        //raw response line, possibly empty
	Err       error         //transport error, for TransportError
}

func (o Outcome) String() string {
	s := fmt.Sprintf("iteration %d: %s after %s", o.Iteration, o.Kind, o.Elapsed.Round(time.Millisecond))
	if o.Err != nil {
		s += ": " + o.Err.Error()
	}
	return s
}

// Tally is the running count of outcomes. Values are never modified in
// place; Add returns the updated tally.
type Tally struct {
	Successes int `yaml:"successes"`
	Hangs     int `yaml:"hangs"`
	Crashes   int `yaml:"crashes"`
}

// Add folds one outcome in. A transport error counts as a crash.
func (t Tally) Add(k Kind) Tally {
	switch k {
	case Success:
		t.Successes++
	case Hang:
		t.Hangs++
	case Crash, TransportError:
		t.Crashes++
	}
	return t
}

func (t Tally) Total() int { return t.Successes + t.Hangs + t.Crashes }

// SuccessRate in percent of total, 0 for an empty tally.
func (t Tally) SuccessRate() float64 {
	if t.Total() == 0 {
		return 0
	}
	return float64(t.Successes) * 100 / float64(t.Total())
}

// Clean means no hang and no crash was seen. Hangs that recovered on their
// own still count against the campaign.
func (t Tally) Clean() bool { return t.Hangs == 0 && t.Crashes == 0 }

type Verdict int

const (
	Pass Verdict = iota
	Fail
)

func (v Verdict) String() string {
	if v == Pass {
		return "PASS"
	}
	return "FAIL"
}

// ExitCode is what the process exits with, for CI.
func (v Verdict) ExitCode() int {
	if v == Pass {
		return 0
	}
	return 1
}

func (v Verdict) MarshalYAML() (interface{}, error) { return v.String(), nil }

// Judge renders the verdict: PASS only for a clean, complete campaign.
func Judge(t Tally, aborted bool) Verdict {
	if aborted || !t.Clean() {
		return Fail
	}
	return Pass
}
