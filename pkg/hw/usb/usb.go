// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package usb locates the Mint device by vendor/product id via sysfs, and
// waits for its tty node to come back after the device resets.
package usb

import (
	"errors"
	"fmt"
	"os"
	fp "path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/teamsatosys/mintfuzz/pkg/log"
)

const (
	MintVendor  = 0x239a //Adafruit
	MintProduct = 0x8029 //RP2040 MSC
	DefaultRoot = "/sys/bus/usb/devices"
)

var EMissing = errors.New("no matching usb device found")

// Device is one enumerated usb device matching the requested ids.
type Device struct {
	SysPath      string
	Vendor       uint16
	Product      uint16
	Manufacturer string
	ProductName  string
	Serial       string
	Ttys         []string //e.g. /dev/ttyACM0, from interface tty subdirs
}

func (d Device) String() string {
	s := fmt.Sprintf("%04x:%04x at %s", d.Vendor, d.Product, d.SysPath)
	if d.ProductName != "" {
		s += " (" + d.ProductName + ")"
	}
	if len(d.Ttys) > 0 {
		s += " tty=" + strings.Join(d.Ttys, ",")
	}
	return s
}

// Find scans root (normally DefaultRoot) for devices with the given ids.
// Unreadable entries are logged and skipped.
func Find(root string, vendor, product uint16) ([]Device, error) {
	entries, err := fp.Glob(fp.Join(root, "*", "idVendor"))
	if err != nil {
		return nil, err
	}
	var devs []Device
	for _, e := range entries {
		dir := fp.Dir(e)
		v, err := readHex(e)
		if err != nil {
			log.Logf("%s: %s", e, err)
			continue
		}
		if v != vendor {
			continue
		}
		p, err := readHex(fp.Join(dir, "idProduct"))
		if err != nil {
			log.Logf("%s: %s", dir, err)
			continue
		}
		if p != product {
			log.Logf("skipping %04x:%04x at %s", v, p, dir)
			continue
		}
		devs = append(devs, Device{
			SysPath:      dir,
			Vendor:       v,
			Product:      p,
			Manufacturer: readStr(fp.Join(dir, "manufacturer")),
			ProductName:  readStr(fp.Join(dir, "product")),
			Serial:       readStr(fp.Join(dir, "serial")),
			Ttys:         ttys(dir),
		})
	}
	return devs, nil
}

// Present is the one-time precondition check done before a campaign. It
// returns EMissing if no device matches.
func Present(root string, vendor, product uint16) (Device, error) {
	devs, err := Find(root, vendor, product)
	if err != nil {
		return Device{}, err
	}
	if len(devs) == 0 {
		return Device{}, fmt.Errorf("%04x:%04x under %s: %w", vendor, product, root, EMissing)
	}
	for _, d := range devs {
		log.Logf("Found device %s", d)
	}
	return devs[0], nil
}

// cdc acm interfaces appear as <dev>/<dev>:<cfg>.<intf>/tty/ttyACMn
func ttys(dir string) []string {
	matches, _ := fp.Glob(fp.Join(dir, fp.Base(dir)+":*", "tty", "tty*"))
	var nodes []string
	for _, m := range matches {
		nodes = append(nodes, "/dev/"+fp.Base(m))
	}
	sort.Strings(nodes)
	return nodes
}

func readStr(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func readHex(path string) (uint16, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(b)), 16, 16)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}
	return uint16(v), nil
}

// ParseID parses a vendor or product id, with or without 0x prefix.
func ParseID(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("bad usb id %q: %w", s, err)
	}
	return uint16(v), nil
}
