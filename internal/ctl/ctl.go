// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package ctl is the control state shared between the privileged worker and
// every unprivileged consumer: a fixed-layout record at the head of one
// page of /run/ecfand/ctl, mapped MAP_SHARED by each process.
//
// There are no locks. This is safe because each mutable field has exactly
// one writer: the worker owns the sensor readings and the two
// last-applied-duty fields; consumers own auto_mode and
// manual_requested_duty; should_exit may be set by anyone but only ever
// moves 0→1. All access goes through tear-free atomic loads and stores.
package ctl

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"unsafe"

	"github.com/platinasystems/ecfand/internal/ec"
)

var Path = "/run/ecfand/ctl"

const (
	magic   = 'E' | 'C'<<8 | 'F'<<16 | '1'<<24
	version = 1

	// field offsets; each a naturally aligned int32
	offMagic         = 0
	offVersion       = 4
	offShouldExit    = 8
	offAutoMode      = 12
	offCpuTemp       = 16
	offGpuTemp       = 20
	offFanDuty       = 24
	offFanRpm        = 28
	offLastAutoDuty  = 32
	offManualRequest = 36
	offManualApplied = 40

	Size = 44
)

type File struct {
	f   *os.File
	mem []byte
}

// Create makes a fresh control file: zeroed fields, auto mode selected.
// The supervisor calls this before the worker process exists.
func Create() (*File, error) {
	if err := os.MkdirAll(filepath.Dir(Path), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(Path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0664)
	if err != nil {
		return nil, err
	}
	if err = f.Truncate(int64(os.Getpagesize())); err != nil {
		f.Close()
		return nil, err
	}
	c, err := mapFile(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	c.store(offMagic, magic)
	c.store(offVersion, version)
	c.store(offAutoMode, 1)
	return c, nil
}

// Open maps an existing control file. A file that isn't one is left
// exactly as found.
func Open() (*File, error) {
	f, err := os.OpenFile(Path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() < int64(os.Getpagesize()) {
		f.Close()
		return nil, fmt.Errorf("%s: not an ecfand control file", Path)
	}
	c, err := mapFile(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	if c.load(offMagic) != magic || c.load(offVersion) != version {
		c.Close()
		return nil, fmt.Errorf("%s: not an ecfand control file", Path)
	}
	return c, nil
}

// OpenOrCreate lets a standalone worker run without a supervisor.
func OpenOrCreate() (*File, error) {
	c, err := Open()
	if err != nil {
		c, err = Create()
	}
	return c, err
}

// mapFile expects the file to already span the page it maps; Create
// grows it, Open verifies it.
func mapFile(f *os.File) (*File, error) {
	mem, err := syscall.Mmap(int(f.Fd()), 0, os.Getpagesize(),
		syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return &File{f: f, mem: mem}, nil
}

// Close unmaps and closes; the file itself stays for other processes.
func (c *File) Close() error {
	err := syscall.Munmap(c.mem)
	c.mem = nil
	if e := c.f.Close(); err == nil {
		err = e
	}
	return err
}

// Unlink removes the control file; supervisor teardown only.
func (c *File) Unlink() error { return os.Remove(Path) }

// Chown hands the file to the invoking desktop user so unprivileged
// commands can write their fields.
func (c *File) Chown(uid, gid int) error { return c.f.Chown(uid, gid) }

func (c *File) load(off int) int32 {
	return atomic.LoadInt32((*int32)(unsafe.Pointer(&c.mem[off])))
}

func (c *File) store(off int, v int32) {
	atomic.StoreInt32((*int32)(unsafe.Pointer(&c.mem[off])), v)
}

func (c *File) ShouldExit() bool { return c.load(offShouldExit) != 0 }

// SetShouldExit is monotonic; nothing ever clears it.
func (c *File) SetShouldExit() { c.store(offShouldExit, 1) }

func (c *File) AutoMode() bool { return c.load(offAutoMode) != 0 }

func (c *File) SetAutoMode(on bool) {
	var v int32
	if on {
		v = 1
	}
	c.store(offAutoMode, v)
}

func (c *File) CpuTemp() int { return int(c.load(offCpuTemp)) }
func (c *File) GpuTemp() int { return int(c.load(offGpuTemp)) }
func (c *File) FanDuty() int { return int(c.load(offFanDuty)) }
func (c *File) FanRpm() int  { return int(c.load(offFanRpm)) }

// SetReadings records a sensor sample; worker only.
func (c *File) SetReadings(cpu, gpu, duty, rpm int) {
	c.store(offCpuTemp, int32(cpu))
	c.store(offGpuTemp, int32(gpu))
	c.store(offFanDuty, int32(duty))
	c.store(offFanRpm, int32(rpm))
}

func (c *File) LastAutoDuty() int     { return int(c.load(offLastAutoDuty)) }
func (c *File) SetLastAutoDuty(d int) { c.store(offLastAutoDuty, int32(d)) }

// ManualRequest returns the pending manual duty, 0 for none. The zero
// sentinel is safe here: no valid request may sit below the manual floor.
func (c *File) ManualRequest() int { return int(c.load(offManualRequest)) }

// RequestDuty asks the worker to drive the fan at pct; consumers only.
// A request is consumed by being applied once, not by being cleared, so
// re-forcing the same value requires a different request in between.
func (c *File) RequestDuty(pct int) error {
	if pct < ec.MinManualDuty || pct > ec.MaxDuty {
		return fmt.Errorf("duty %d%% outside [%d,%d]",
			pct, ec.MinManualDuty, ec.MaxDuty)
	}
	c.store(offManualRequest, int32(pct))
	return nil
}

func (c *File) ManualApplied() int     { return int(c.load(offManualApplied)) }
func (c *File) SetManualApplied(d int) { c.store(offManualApplied, int32(d)) }
