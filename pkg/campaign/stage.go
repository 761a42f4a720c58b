// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package campaign

import (
	"fmt"
	"os"
	"path"
	fp "path/filepath"

	"github.com/teamsatosys/mintfuzz/pkg/log"
	"github.com/teamsatosys/mintfuzz/pkg/payload"
)

// Stager writes each payload to a scratch file the device is told to
// process. The file is a copy; the in-memory payload is what gets archived.
type Stager struct {
	Dir string
	//if set, the device sees Dir under this path (e.g. its own mass storage
	//root), and process_file is given the device-side path
	DevicePrefix string
	Keep         bool //leave staged files behind after each iteration
}

// Prepare creates Dir if absent.
func (s *Stager) Prepare() error {
	return os.MkdirAll(s.Dir, 0755)
}

func name(i int) string { return fmt.Sprintf("fuzz_%d.bin", i) }

// Stage writes p for iteration i. It returns the host path of the file and
// the path to name in the command.
func (s *Stager) Stage(i int, p payload.Payload) (host, device string, err error) {
	host = fp.Join(s.Dir, name(i))
	if err = os.WriteFile(host, p.Bytes(), 0644); err != nil {
		return "", "", fmt.Errorf("staging iteration %d: %w", i, err)
	}
	device = host
	if s.DevicePrefix != "" {
		device = path.Join(s.DevicePrefix, name(i))
	}
	return host, device, nil
}

// Cleanup removes a staged file unless Keep is set.
func (s *Stager) Cleanup(host string) {
	if s.Keep || host == "" {
		return
	}
	if err := os.Remove(host); err != nil && !os.IsNotExist(err) {
		log.Logf("removing %s: %s", host, err)
	}
}
