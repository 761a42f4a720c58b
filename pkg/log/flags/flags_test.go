// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package flags

import "testing"

func TestFlagString(t *testing.T) {
	for _, td := range []struct {
		f    Flag
		want string
	}{
		{NA, ""},
		{Operator, "operator"},
		{Operator | Fatal, "operator|fatal"},
		{Verbose | NotFile, "not file|verbose"},
		{Fatal | Flag(0x40), "fatal|0x40"},
	} {
		if got := td.f.String(); got != td.want {
			t.Errorf("%d: want %q, got %q", int(td.f), td.want, got)
		}
	}
}
