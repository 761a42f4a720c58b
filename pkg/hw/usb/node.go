// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package usb

import (
	"context"
	"errors"
	"fmt"
	"os"
	fp "path/filepath"
	"time"

	"github.com/rjeczalik/notify"

	"github.com/teamsatosys/mintfuzz/pkg/log"
)

var ENodeTimeout = errors.New("device node did not appear")

// WaitForNode returns once node exists, or ENodeTimeout after max. After a
// watchdog reset the device re-enumerates and its tty node disappears for a
// moment; opening during that window fails for reasons unrelated to the
// device's robustness.
func WaitForNode(ctx context.Context, node string, max time.Duration) error {
	if exists(node) {
		return nil
	}
	if max <= 0 {
		return fmt.Errorf("%s: %w", node, ENodeTimeout)
	}
	events := make(chan notify.EventInfo, 8)
	if err := notify.Watch(fp.Dir(node), events, notify.Create); err != nil {
		return fmt.Errorf("watching %s: %w", fp.Dir(node), err)
	}
	defer notify.Stop(events)

	//may have appeared between the first check and the watch
	if exists(node) {
		return nil
	}
	log.Logf("waiting up to %s for %s to reappear", max, node)
	timer := time.NewTimer(max)
	defer timer.Stop()
	for {
		select {
		case ei := <-events:
			if fp.Base(ei.Path()) == fp.Base(node) && exists(node) {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("%s after %s: %w", node, max, ENodeTimeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
