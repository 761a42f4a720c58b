// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package flags holds the bits attached to each log entry, deciding which
// sinks display or store it.
package flags

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Flag int

const (
	NA Flag = 0

	//progress and results the operator watching the campaign should see
	Operator Flag = 1 << (iota - 1)
	//logging a fatal error
	Fatal
	//do not write to the file or structured sinks
	NotFile
	//per-exchange detail, only shown when running verbose
	Verbose
)

var allBits = []Flag{Operator, Fatal, NotFile, Verbose}

func (f Flag) MarshalJSON() ([]byte, error) { return json.Marshal(f.String()) }

func (f Flag) String() string {
	switch f {
	case NA:
		return ""
	case Operator:
		return "operator"
	case Fatal:
		return "fatal"
	case NotFile:
		return "not file"
	case Verbose:
		return "verbose"
	}
	for _, bit := range allBits {
		if f&bit > 0 {
			return strings.Join([]string{bit.String(), (f &^ bit).String()}, "|")
		}
	}
	return fmt.Sprintf("0x%x", int(f))
}
