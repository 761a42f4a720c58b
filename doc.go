// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Subpackages implement an unattended fuzz harness for the Mint device, an
// RP2040 board that takes newline-terminated commands over usb cdc-acm
// serial and exposes a mass storage volume.
//
// A campaign is a fixed number of iterations. Each one generates a payload
// (random binary, printable ascii, unicode drawn from several blocks, or an
// adversarial pattern such as repeated "%n"), stages it as a file, tells the
// device to `process_file` it, and waits a bounded time for an answer. The
// device is then pinged; anything but "pong" is a crash.
//
//   - pkg/payload: payload generator. A seed fully determines the sequence,
//     so any failing iteration can be regenerated (mintfuzz payloads).
//
//   - pkg/session: the serial session. A reader goroutine turns bytes into
//     lines; every wait has a deadline. I/O failures are *TransportError,
//     distinct from ETimeout.
//
//   - pkg/recovery: after a hang or crash, decides whether the session is
//     still usable and, if not, closes it, waits for the device to
//     re-enumerate, and reopens it once.
//
//   - pkg/campaign: the iteration loop, tally, findings archive and report.
//
//   - pkg/hw/serial, pkg/hw/usb: termios setup and sysfs device lookup.
//
//   - pkg/log: stackable logger; sinks for console, file, memory and zap.
//
// The exit status of cmd/mintfuzz is 0 only if no iteration hung or crashed.
//
// Use `mage` to build and test.
package mintfuzz
