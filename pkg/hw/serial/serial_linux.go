// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package serial configures a tty for raw, 8N1, line-oriented traffic with
// the Mint device's USB CDC console. Only implemented for linux.
package serial

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

var bauds = map[int]uint32{
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
	460800: unix.B460800,
	921600: unix.B921600,
}

// Supported reports whether baud can be configured.
func Supported(baud int) bool {
	_, ok := bauds[baud]
	return ok
}

type Port struct {
	f    *os.File
	name string
}

// Open opens and configures dev. The descriptor is left non-blocking so the
// runtime poller can interrupt a pending Read when the port is closed.
func Open(dev string, baud int) (*Port, error) {
	speed, ok := bauds[baud]
	if !ok {
		return nil, fmt.Errorf("%s: unsupported baud rate %d", dev, baud)
	}
	f, err := os.OpenFile(dev, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0666)
	if err != nil {
		return nil, err
	}
	p := &Port{f: f, name: dev}
	err = p.control(func(fd int) error {
		opts, err := unix.IoctlGetTermios(fd, unix.TCGETS)
		if err != nil {
			return err
		}
		rawMode(opts, speed)
		if err := unix.IoctlSetTermios(fd, unix.TCSETS, opts); err != nil {
			return err
		}
		return unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIOFLUSH)
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("configuring %s: %w", dev, err)
	}
	return p, nil
}

// no echo, no line discipline, no flow control, 8N1
func rawMode(opts *unix.Termios, speed uint32) {
	opts.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.INPCK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF
	opts.Iflag |= unix.IGNPAR

	opts.Oflag &^= unix.OPOST | unix.ONLCR | unix.OCRNL | unix.ONOCR | unix.ONLRET

	opts.Cflag &^= unix.CSIZE | unix.PARENB | unix.PARODD | unix.HUPCL | unix.CRTSCTS | unix.CBAUD | unix.CSTOPB
	opts.Cflag |= unix.CREAD | unix.CS8 | unix.CLOCAL | speed

	opts.Lflag &^= unix.ISIG | unix.ICANON | unix.IEXTEN | unix.ECHO | unix.ECHOE | unix.ECHOK | unix.ECHOCTL | unix.ECHOKE

	for i := range opts.Cc {
		opts.Cc[i] = 0
	}
	opts.Cc[unix.VMIN] = 1

	opts.Ispeed = speed
	opts.Ospeed = speed
}

// control runs fn on the raw descriptor. Unlike f.Fd(), this does not put the
// file back into blocking mode.
func (p *Port) control(fn func(fd int) error) error {
	rc, err := p.f.SyscallConn()
	if err != nil {
		return err
	}
	var ferr error
	err = rc.Control(func(fd uintptr) { ferr = fn(int(fd)) })
	if err != nil {
		return err
	}
	return ferr
}

func (p *Port) Name() string { return p.name }

func (p *Port) Read(b []byte) (n int, err error) {
	defer tracef("Read(b)")(" [b=%q]  =(%d,%s)", b, &n, &err)
	return p.f.Read(b)
}

func (p *Port) Write(b []byte) (n int, err error) {
	defer tracef("Write(%q)", b)("=(%d,%s)", &n, &err)
	return p.f.Write(b)
}

func (p *Port) Close() (err error) {
	defer tracef("Close()")("=%s", &err)
	return p.f.Close()
}

// Flush discards data received but not read, and data written but not sent.
func (p *Port) Flush() (err error) {
	defer tracef("Flush()")("=%s", &err)
	return p.control(func(fd int) error {
		return unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIOFLUSH)
	})
}
