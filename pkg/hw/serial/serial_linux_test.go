// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package serial

import (
	"bufio"
	"fmt"
	"os"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// openPty returns the master side of a new pseudo-terminal and the path of
// its slave, which stands in for the device's tty.
func openPty(t *testing.T) (*os.File, string) {
	t.Helper()
	m, err := os.OpenFile("/dev/ptmx", os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		t.Skipf("no pty support: %s", err)
	}
	var ptn int
	rc, err := m.SyscallConn()
	if err != nil {
		t.Fatal(err)
	}
	var cerr error
	err = rc.Control(func(fd uintptr) {
		if cerr = unix.IoctlSetPointerInt(int(fd), unix.TIOCSPTLCK, 0); cerr != nil {
			return
		}
		ptn, cerr = unix.IoctlGetInt(int(fd), unix.TIOCGPTN)
	})
	if err == nil {
		err = cerr
	}
	if err != nil {
		m.Close()
		t.Skipf("pty setup: %s", err)
	}
	t.Cleanup(func() { m.Close() })
	return m, fmt.Sprintf("/dev/pts/%d", ptn)
}

func TestOpenUnsupportedBaud(t *testing.T) {
	if Supported(12345) {
		t.Fatal("12345 should not be supported")
	}
	if !Supported(115200) {
		t.Fatal("115200 must be supported")
	}
	if _, err := Open("/dev/null", 12345); err == nil {
		t.Error("no error for unsupported baud")
	}
}

func TestOpenMissing(t *testing.T) {
	_, err := Open("/dev/does-not-exist-mintfuzz", 115200)
	if !os.IsNotExist(err) {
		t.Errorf("want not-exist error, got %v", err)
	}
}

func TestPtyRoundTrip(t *testing.T) {
	master, slave := openPty(t)
	p, err := Open(slave, 115200)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	if p.Name() != slave {
		t.Errorf("name: want %s got %s", slave, p.Name())
	}

	if _, err := p.Write([]byte("ping\n")); err != nil {
		t.Fatal(err)
	}
	line, err := bufio.NewReader(master).ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	//raw mode: no CRLF translation
	if line != "ping\n" {
		t.Errorf("master read %q", line)
	}

	if _, err := master.Write([]byte("pong\n")); err != nil {
		t.Fatal(err)
	}
	got, err := bufio.NewReader(p).ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if got != "pong\n" {
		t.Errorf("port read %q", got)
	}
}

func TestCloseUnblocksRead(t *testing.T) {
	_, slave := openPty(t)
	p, err := Open(slave, 115200)
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() {
		_, err := p.Read(make([]byte, 16))
		done <- err
	}()
	time.Sleep(50 * time.Millisecond)
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-done:
		if err == nil {
			t.Error("read returned without error after close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Read still blocked after Close")
	}
}
