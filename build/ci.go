// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

//go:build mage

package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	fp "path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
)

//targets for CI to run

type CI mg.Namespace

// unit tests, vet, and a release-tag build; the release build catches test
// helpers (MockPort, tracing) leaking into non-test code
func (CI) UnitTestStage(ctx context.Context) {
	mg.CtxDeps(junit(ctx, "mintfuzz_unit"), Tests.Unit, Tests.Vet, Tests.Release)
}

// session and campaign tests drive a reader goroutine against the mock
// port, so they get a separate pass under -race
func (CI) RaceStage(ctx context.Context) {
	mg.CtxDeps(junit(ctx, "mintfuzz_race"), Tests.Race)
}

func (CI) BuildStage(ctx context.Context) {
	mg.CtxDeps(ctx, BuildAll)
}

// moves mintfuzz and mintfuzz_dbg to the artifact dir and writes
// SHA256SUMS alongside them
func (CI) Artifacts(ctx context.Context) error {
	mg.CtxDeps(ctx, BuildAll)
	if err := os.MkdirAll(ArtifactDir, 0755); err != nil {
		return err
	}
	var sums strings.Builder
	for _, c := range Cmds {
		for _, name := range []string{fp.Base(c), fp.Base(c) + "_dbg"} {
			dst := fp.Join(ArtifactDir, name)
			if err := os.Rename(fp.Join(WorkDir, name), dst); err != nil {
				return err
			}
			sum, err := sha256File(dst)
			if err != nil {
				return err
			}
			fmt.Fprintf(&sums, "%x  %s\n", sum, name)
		}
	}
	return os.WriteFile(fp.Join(ArtifactDir, "SHA256SUMS"), []byte(sums.String()), 0644)
}

// junit returns ctx carrying the junit output path for a stage. Output lands
// in $WORKSPACE so jenkins can pick it up.
func junit(ctx context.Context, stage string) context.Context {
	out := fp.Join(os.Getenv("WORKSPACE"), stage+"_test_out.xml")
	return context.WithValue(ctx, junitKey{}, out)
}

func sha256File(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}
