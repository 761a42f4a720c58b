// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package campaign

import (
	"fmt"
	"io"
	"time"

	"github.com/teamsatosys/mintfuzz/pkg/outcome"
)

type State int

const (
	Running State = iota
	Recovering
	Finished
	Aborted
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Recovering:
		return "recovering"
	case Finished:
		return "finished"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalYAML() (interface{}, error) { return s.String(), nil }

// Finding is a hang or crash worth keeping.
type Finding struct {
	Iteration int    `yaml:"iteration"`
	Outcome   string `yaml:"outcome"`
	Payload   string `yaml:"payload"` //kind/length
	File      string `yaml:"file,omitempty"`
}

// Report is the result of a campaign, complete or not.
type Report struct {
	Campaign   string          `yaml:"campaign"`
	Port       string          `yaml:"port"`
	Seed       int64           `yaml:"seed"`
	Requested  int             `yaml:"requested"`
	Tally      outcome.Tally   `yaml:"tally"`
	Reconnects int             `yaml:"reconnects"`
	State      State           `yaml:"state"`
	Reason     string          `yaml:"reason,omitempty"` //why the campaign aborted
	Verdict    outcome.Verdict `yaml:"verdict"`
	Findings   []Finding       `yaml:"findings,omitempty"`
	Started    time.Time       `yaml:"started"`
	Ended      time.Time       `yaml:"ended"`
}

func (r Report) ExitCode() int { return r.Verdict.ExitCode() }

// Results writes the human readable summary.
func (r Report) Results(w io.Writer) {
	fmt.Fprintf(w, "\nFuzzing Results:\n")
	fmt.Fprintf(w, "Total test cases:  %d", r.Tally.Total())
	if r.Tally.Total() != r.Requested {
		fmt.Fprintf(w, " (of %d requested)", r.Requested)
	}
	fmt.Fprintf(w, "\nSuccesses:        %d\n", r.Tally.Successes)
	fmt.Fprintf(w, "Hangs:            %d\n", r.Tally.Hangs)
	fmt.Fprintf(w, "Crashes:          %d\n", r.Tally.Crashes)
	fmt.Fprintf(w, "Success rate:     %.2f%%\n", r.Tally.SuccessRate())
	switch {
	case r.State == Aborted:
		fmt.Fprintf(w, "\nFAILED: campaign aborted: %s\n", r.Reason)
	case r.Verdict == outcome.Pass:
		fmt.Fprintf(w, "\nPASSED: No crashes or hangs detected\n")
	default:
		fmt.Fprintf(w, "\nFAILED: Crashes or hangs detected\n")
	}
}
