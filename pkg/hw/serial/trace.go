// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

//go:build !release

package serial

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"sync"
)

// Output for tracing, not present in release builds. Enable by assigning a
// writer, or with Debug().
var Output io.Writer

// If Output is non-nil, tracing occurs as functions return. If TraceEnter is
// also true, functions trace upon entry.
var TraceEnter = false

var outMtx sync.Mutex

// If exit is true, sets Output to os.Stderr, nil if false; sets TraceEnter to enter.
func Debug(exit, enter bool) {
	outMtx.Lock()
	defer outMtx.Unlock()
	if exit {
		Output = os.Stderr
	} else {
		Output = nil
	}
	TraceEnter = enter
}

// Trace enter/exit with args. Pass pointers to capture return values (except
// slices). The last arg to the returned func must be an error (pointer).
//
//	defer tracef("Read(b)")(" [b=%q]  =(%d,%s)", b, &n, &err)
func tracef(f string, va ...interface{}) func(rfmt string, vb ...interface{}) {
	outMtx.Lock()
	out, enter := Output, TraceEnter
	outMtx.Unlock()
	if out == nil {
		return func(string, ...interface{}) {}
	}
	callStr := fmt.Sprintf(f, va...)
	retStr := callStr
	if enter {
		fmt.Fprintf(out, ">  %s\n", callStr)
		retStr = " < " + callStr
	}
	return func(rfmt string, vb ...interface{}) {
		for i, v := range vb {
			if t := reflect.TypeOf(v); t != nil && t.Kind() == reflect.Ptr {
				vb[i] = reflect.ValueOf(v).Elem().Interface()
			}
		}
		if vn := len(vb); vn > 0 {
			estr := "<nil>"
			if e, ok := vb[vn-1].(error); ok && e != nil {
				estr = `"` + e.Error() + `"`
			}
			vb[vn-1] = estr
		}
		fmt.Fprintf(out, retStr+rfmt+"\n", vb...)
	}
}
