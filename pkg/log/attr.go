// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package log

import (
	"errors"
	"sync"
)

var (
	attrs    = map[string]interface{}{}
	attrsMtx sync.RWMutex
)

var EAttrExists = errors.New("An attr with this name already exists")

// Attributes describe the current log stack as a whole (log file name,
// campaign id). Structured sinks attach them to every entry.
func GetAttr(key string) (interface{}, bool) {
	attrsMtx.RLock()
	defer attrsMtx.RUnlock()
	v, ok := attrs[key]
	return v, ok
}

// Attr names must be unique; setting an existing name is an error.
func SetAttr(key string, val interface{}) error {
	attrsMtx.Lock()
	defer attrsMtx.Unlock()
	if _, exists := attrs[key]; exists {
		return EAttrExists
	}
	attrs[key] = val
	return nil
}

// Attrs returns a snapshot of all attributes.
func Attrs() map[string]interface{} {
	attrsMtx.RLock()
	defer attrsMtx.RUnlock()
	cp := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		cp[k] = v
	}
	return cp
}

func ClearAttrs() {
	attrsMtx.Lock()
	defer attrsMtx.Unlock()
	for key := range attrs {
		delete(attrs, key)
	}
}
