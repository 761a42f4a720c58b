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
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

/* Env vars
RUN - passed to go test -run. Only tests that match the given regex will run.
COUNT - passed to go test -count. Use 1 to bypass test result caching, and
    higher values to repeat tests.
*/

type Tests mg.Namespace

// runs unit tests
func (Tests) Unit(ctx context.Context) error {
	args, err := testArgs(ctx, nil, "")
	if err != nil {
		return err
	}
	return gotest(ctx, nil, args...)
}

// unit tests under the race detector; the session reader goroutine and the
// mock port are the interesting parts
func (Tests) Race(ctx context.Context) error {
	args, err := testArgs(ctx, nil, "")
	if err != nil {
		return err
	}
	return gotest(ctx, []string{"CGO_ENABLED=1"}, append([]string{"-race"}, args...)...)
}

// builds everything with the release tag, which compiles out tracing and
// the mock port
func (Tests) Release(ctx context.Context) error {
	return sh.RunV("go", "build", "-tags", "release", "./cmd/...", "./pkg/...")
}

func (Tests) Vet(ctx context.Context) error {
	return sh.RunV("go", append([]string{"vet"}, GoDirs...)...)
}

// args for 'go test': pkg, -run, -count, -timeout
func testArgs(ctx context.Context, pkgs []string, onlyRun string) ([]string, error) {
	var hasDeadline bool
	var deadline time.Time
	if len(pkgs) == 0 {
		pkgs = GoDirs
	}
	args := []string{}
	//pass timeout arg?
	deadline, hasDeadline = ctx.Deadline()
	if hasDeadline {
		dur := time.Until(deadline) - 20*time.Second //less time than the exact deadline so go test can print out message about what test it's on
		if dur < 0 {
			//already past deadline
			return nil, mg.Fatal(1, "deadline exceeded")
		}
		args = append(args, "-timeout", dur.String())
	}
	args = append(args, pkgs...)

	//limit tests to be run
	if onlyRun != "" {
		args = append(args, "-run", onlyRun)
	} else if run := os.Getenv("RUN"); run != "" {
		args = append(args, "-run", run)
	}

	//run test(s) multiple times
	if count := os.Getenv("COUNT"); count != "" {
		c, err := strconv.Atoi(count)
		if err != nil {
			return nil, mg.Fatalf(3, "COUNT must be unset or numeric: %s", err)
		}
		if c > 0 {
			args = append(args, "-count", count)
		}
	}
	return args, nil
}

type junitKey struct{}

func gotest(ctx context.Context, env []string, args ...string) error {
	//if this is set, run gotestsum and write output to the named file
	junitOut, _ := ctx.Value(junitKey{}).(string)

	env = append(env, os.Environ()...)

	if junitOut != "" {
		gts := exec.CommandContext(ctx, "gotestsum", "--junitfile", junitOut, "--")
		//args after the -- are passed to go test
		gts.Args = append(gts.Args, args...)
		gts.Env = env
		gts.Dir = RepoRoot
		fmt.Printf("running %v...\n", gts.Args)
		out, err := gts.CombinedOutput()
		if err == nil {
			return nil
		}
		fmt.Printf("%v exited with error %q. output:\n%s\n", gts.Args, err, string(out))
		if fi, serr := os.Stat(junitOut); serr == nil && fi.Size() > 100 {
			// the report exists; ci parses it for the details
			return mg.Fatal(4, err)
		}
		fmt.Println("running 'go test' directly for a more informative error...")
	}
	tst := exec.CommandContext(ctx, "go", "test")
	tst.Args = append(tst.Args, args...)
	tst.Env = env
	tst.Dir = RepoRoot
	fmt.Printf("running %v...\n", tst.Args)
	out, err := tst.CombinedOutput()
	if err != nil {
		fmt.Printf("'go test' output:\n%s\n", string(out))
		return mg.Fatal(5, "go test error:", err)
	}
	fmt.Println("'go test' passes")
	return nil
}
