// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package outcome

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestTallyAdd(t *testing.T) {
	var zero Tally
	got := zero.Add(Success).Add(Hang).Add(Crash).Add(TransportError).Add(Success)
	want := Tally{Successes: 2, Hangs: 1, Crashes: 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tally mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Tally{}, zero, "Add must not modify the receiver")
	assert.Equal(t, 5, got.Total())
	assert.InDelta(t, 40.0, got.SuccessRate(), 1e-9)
}

func TestJudge(t *testing.T) {
	for _, td := range []struct {
		name    string
		tally   Tally
		aborted bool
		want    Verdict
	}{
		{"empty", Tally{}, false, Pass},
		{"all success", Tally{Successes: 10}, false, Pass},
		{"one hang", Tally{Successes: 9, Hangs: 1}, false, Fail},
		{"one crash", Tally{Successes: 9, Crashes: 1}, false, Fail},
		{"aborted clean", Tally{Successes: 3}, true, Fail},
	} {
		t.Run(td.name, func(t *testing.T) {
			v := Judge(td.tally, td.aborted)
			assert.Equal(t, td.want, v)
			assert.Equal(t, map[Verdict]int{Pass: 0, Fail: 1}[td.want], v.ExitCode())
		})
	}
	assert.Equal(t, 0.0, Tally{}.SuccessRate())
}
