// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

//go:build mage

/*
 build file for mage build system
 list tgts with
mage -d build -w . -l

 build tgt with
mage -d build -w . tgt
*/

package main

import (
	"context"
	"fmt"
	"os"
	fp "path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
	"github.com/magefile/mage/target"
)

var (
	RepoRoot, WorkDir, ArtifactDir string
	//dirs containing code, for go test/vet
	GoDirs = []string{"./cmd/...", "./pkg/..."}
	Cmds   = []string{"./cmd/mintfuzz"}
)

func init() {
	wd, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	//mage may be run from the repo root or from build/
	if fp.Base(wd) == "build" {
		wd = fp.Dir(wd)
	}
	RepoRoot = wd
	WorkDir = fp.Join(RepoRoot, "work")
	ArtifactDir = fp.Join(RepoRoot, "artifacts")
}

func BuildAll(ctx context.Context) error {
	fmt.Println("mage running")
	mg.CtxDeps(ctx, Bins.Release, Bins.Debug)
	return nil
}

type Bins mg.Namespace

// stripped binaries, without test-only code and tracing
func (Bins) Release(ctx context.Context) error {
	mg.CtxDeps(ctx, workdir)
	return buildeach(map[string]string{"CGO_ENABLED": "0"}, []string{"release"}, "", Cmds...)
}

// binaries with tracing compiled in, suffixed _dbg
func (Bins) Debug(ctx context.Context) error {
	mg.CtxDeps(ctx, workdir)
	return buildeach(map[string]string{"CGO_ENABLED": "0"}, nil, "_dbg", Cmds...)
}

// like go build, but outputs to work dir. Skips binaries newer than all sources.
func buildeach(env map[string]string, tags []string, sfx string, pkgs ...string) error {
	for k, v := range env {
		fmt.Printf("%s=%s\n", k, v)
	}
	for _, p := range pkgs {
		out := fp.Join(WorkDir, fp.Base(p)+sfx)
		rebuild, err := target.Dir(out, fp.Join(RepoRoot, "pkg"), fp.Join(RepoRoot, p))
		if err != nil {
			return err
		}
		if !rebuild {
			fmt.Printf("%s is up to date\n", out)
			continue
		}
		args := []string{"build"}
		if len(tags) > 0 {
			args = append(args, "-tags", strings.Join(tags, " "))
		}
		if len(tags) > 0 && tags[0] == "release" {
			args = append(args, "-ldflags", "-s -w")
		}
		args = append(args, "-o", out, p)
		if err := sh.RunWith(env, "go", args...); err != nil {
			return err
		}
	}
	return nil
}

func workdir() {
	//ignore errors
	_ = os.Mkdir(WorkDir, 0755)
}
