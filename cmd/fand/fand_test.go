// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package fand

import (
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/platinasystems/ecfand/internal/ctl"
	"github.com/platinasystems/ecfand/internal/ec"
)

type write struct {
	addr uint16
	b    byte
}

// fakePort always reports a ready controller (status 0x01 satisfies both
// handshake waits) and records every out.
type fakePort struct {
	data   []byte
	writes []write
}

func (p *fakePort) Inb(addr uint16) (byte, error) {
	if addr == ec.PortCmd {
		return 0x01, nil
	}
	b := byte(0)
	if len(p.data) > 0 {
		b = p.data[0]
		p.data = p.data[1:]
	}
	return b, nil
}

func (p *fakePort) Outb(addr uint16, b byte) error {
	p.writes = append(p.writes, write{addr, b})
	return nil
}

func (p *fakePort) dutyWrites() (n int, last byte) {
	for i, w := range p.writes {
		if w.addr == ec.PortCmd && w.b == ec.WriteCmd {
			n++
			// value follows the fan selector
			if i+2 < len(p.writes) {
				last = p.writes[i+2].b
			}
		}
	}
	return
}

func testCommand(t *testing.T, p *fakePort) (*Command, *ctl.File) {
	t.Helper()
	old := ctl.Path
	ctl.Path = filepath.Join(t.TempDir(), "ctl")
	t.Cleanup(func() { ctl.Path = old })
	cf, err := ctl.Create()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { cf.Close() })
	conn := ec.NewWith(p)
	conn.WaitInterval = 0
	return &Command{Conn: conn, Ctl: cf, Tick: time.Hour}, cf
}

// readings on the wire: cpu 85, gpu 60, duty raw 178 (70%), rpm 3489
var sensors = []byte{85, 60, 178, 0x02, 0x6a}

func TestManualRequestAppliedOnce(t *testing.T) {
	p := &fakePort{data: append([]byte{}, sensors...)}
	c, cf := testCommand(t, p)
	cf.SetAutoMode(false)
	if err := cf.RequestDuty(85); err != nil {
		t.Fatal(err)
	}

	c.tick(false)
	if n, raw := p.dutyWrites(); n != 1 || raw != 216 {
		t.Fatal("after first tick:", n, "duty writes, last raw", raw)
	}
	if cf.ManualApplied() != 85 {
		t.Error("applied", cf.ManualApplied())
	}

	// the request is consumed; the hardware is free to be overridden
	// by its own firmware without this loop fighting it
	p.data = append([]byte{}, sensors...)
	c.tick(false)
	if n, _ := p.dutyWrites(); n != 1 {
		t.Error("request re-applied:", n, "duty writes")
	}
}

func TestAutoPolicy(t *testing.T) {
	p := &fakePort{data: append([]byte{}, sensors...)}
	c, cf := testCommand(t, p)

	// cpu 85 at 70% duty crosses the 80° rise threshold
	c.tick(false)
	if n, raw := p.dutyWrites(); n != 1 || raw != 255 {
		t.Fatal("after first tick:", n, "duty writes, last raw", raw)
	}
	if cf.LastAutoDuty() != 100 {
		t.Error("last auto duty", cf.LastAutoDuty())
	}

	// same sample again: the policy already asked for 100, don't
	// hammer the controller with the identical command
	p.data = append([]byte{}, sensors...)
	c.tick(false)
	if n, _ := p.dutyWrites(); n != 1 {
		t.Error("redundant duty write:", n)
	}
}

func TestReadingsMirrored(t *testing.T) {
	p := &fakePort{data: append([]byte{}, sensors...)}
	c, cf := testCommand(t, p)
	cf.SetAutoMode(false)
	c.tick(false)
	if cf.CpuTemp() != 85 || cf.GpuTemp() != 60 {
		t.Error("temps", cf.CpuTemp(), cf.GpuTemp())
	}
	if cf.FanDuty() != 70 || cf.FanRpm() != 3489 {
		t.Error("fan", cf.FanDuty(), cf.FanRpm())
	}
}

func TestShouldExitStopsMain(t *testing.T) {
	dir := t.TempDir()
	defer func(s string) { ec.DebugBank = s }(ec.DebugBank)
	ec.DebugBank = filepath.Join(dir, "io")
	bank := make([]byte, ec.RegBankSize)
	copy(bank[ec.RegCpuTemp:], []byte{61})
	if err := ioutil.WriteFile(ec.DebugBank, bank, 0644); err != nil {
		t.Fatal(err)
	}

	p := &fakePort{}
	c, cf := testCommand(t, p)
	cf.SetAutoMode(false)
	c.Tick = 10 * time.Millisecond

	done := make(chan error, 1)
	go func() { done <- c.Main() }()
	time.Sleep(50 * time.Millisecond)
	cf.SetShouldExit()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("worker ignored should_exit")
	}
}

func TestCloseBeforeMain(t *testing.T) {
	// the SIGTERM handler can close a command Main never ran
	c := &Command{}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	// and a Main started afterwards must stop within its first tick
	p := &fakePort{data: append([]byte{}, sensors...)}
	c, cf := testCommand(t, p)
	cf.SetAutoMode(false)
	c.Tick = 10 * time.Millisecond
	c.Close()
	done := make(chan error, 1)
	go func() { done <- c.Main() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		// the snapshot probe alone may back off for over a second
		t.Fatal("closed worker kept running")
	}
}

func TestInfoHget(t *testing.T) {
	p := &fakePort{data: append([]byte{}, sensors...)}
	c, cf := testCommand(t, p)
	cf.SetAutoMode(false)
	c.Info.ctl = cf
	c.tick(false)

	var reply string
	for key, want := range map[string]string{
		"fan.duty":         "70",
		"fan.rpm":          "3489",
		"temp.cpu.units.C": "85",
		"temp.gpu.units.C": "60",
		"fan.speed":        "manual",
	} {
		if err := c.Info.Hget(key, &reply); err != nil {
			t.Error(key, ":", err)
		} else if reply != want {
			t.Error(key, ": got", reply, "want", want)
		}
	}
	if err := c.Info.Hget("bogus", &reply); err == nil {
		t.Error("unknown key answered:", reply)
	}
}
