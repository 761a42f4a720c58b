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
	"os"
	fp "path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
	"gopkg.in/yaml.v3"

	"github.com/teamsatosys/mintfuzz/pkg/outcome"
	"github.com/teamsatosys/mintfuzz/pkg/payload"
)

const ReportName = "report.yaml"

// Archive keeps the payloads that caused a hang or crash, xz compressed,
// along with the campaign report. One directory per campaign.
type Archive struct {
	dir string
}

func NewArchive(root, campaign string) (*Archive, error) {
	dir := fp.Join(root, campaign)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Archive{dir: dir}, nil
}

func (a *Archive) Dir() string { return a.dir }

// Save stores the payload of a failed iteration and returns the file name.
func (a *Archive) Save(o outcome.Outcome, p payload.Payload) (string, error) {
	kind := strings.ReplaceAll(o.Kind.String(), " ", "_")
	fname := fp.Join(a.dir, fmt.Sprintf("iter_%d_%s.bin.xz", o.Iteration, kind))
	f, err := os.Create(fname)
	if err != nil {
		return "", err
	}
	w, err := xz.NewWriter(f)
	if err != nil {
		f.Close()
		return "", err
	}
	if _, err = w.Write(p.Bytes()); err == nil {
		err = w.Close()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("writing %s: %w", fname, err)
	}
	return fname, nil
}

// WriteReport (over)writes the report file.
func (a *Archive) WriteReport(r Report) error {
	buf, err := yaml.Marshal(r)
	if err != nil {
		return err
	}
	return os.WriteFile(fp.Join(a.dir, ReportName), buf, 0644)
}

// ReadFinding returns the decompressed payload stored by Save.
func ReadFinding(fname string) ([]byte, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r, err := xz.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}
	return io.ReadAll(r)
}
