// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

//go:build !linux

package serial

import (
	"errors"
	"fmt"
)

var ENotImplemented = errors.New("serial ports are only implemented for linux")

type Port struct{}

func Supported(baud int) bool { return false }

func Open(dev string, baud int) (*Port, error) {
	return nil, fmt.Errorf("%s: %w", dev, ENotImplemented)
}

func (*Port) Name() string              { return "" }
func (*Port) Read([]byte) (int, error)  { return 0, ENotImplemented }
func (*Port) Write([]byte) (int, error) { return 0, ENotImplemented }
func (*Port) Close() error              { return ENotImplemented }
func (*Port) Flush() error              { return ENotImplemented }
