// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package ec speaks the embedded controller's two-port handshake protocol.
// The controller has no interrupt or DMA interface; every register access is
// a fixed sequence of status polls and data port transfers. A Conn must be
// the only path to the ports: interleaved handshakes corrupt the
// controller's state machine and there is no software recovery from that.
package ec

import (
	"fmt"
	"sync"
	"time"

	"github.com/platinasystems/ioport"
	"github.com/platinasystems/log"
)

const (
	DefaultWaitMax      = 100
	DefaultWaitInterval = time.Millisecond
)

// Port does byte-wide I/O on the controller ports.
type Port interface {
	Inb(addr uint16) (byte, error)
	Outb(addr uint16, b byte) error
}

type ioPort struct{}

func (ioPort) Inb(a uint16) (byte, error)  { return ioport.Inb(a) }
func (ioPort) Outb(a uint16, b byte) error { return ioport.Outb(a, b) }

type Conn struct {
	mutex sync.Mutex
	port  Port

	// Status poll bound: WaitMax iterations, WaitInterval apart. The
	// defaults give the controller 100ms to move each byte.
	WaitMax      int
	WaitInterval time.Duration
}

// New returns a Conn on the machine's controller ports. The probe read
// doubles as the port reservation check; its failure is fatal to callers.
func New() (*Conn, error) {
	c := NewWith(ioPort{})
	if _, err := c.port.Inb(PortCmd); err != nil {
		return nil, fmt.Errorf("ec: can't reserve ports: %v", err)
	}
	return c, nil
}

// NewWith returns a Conn on the given port implementation.
func NewWith(p Port) *Conn {
	return &Conn{
		port:         p,
		WaitMax:      DefaultWaitMax,
		WaitInterval: DefaultWaitInterval,
	}
}

// wait polls the status port until the flag bit has the wanted value. A
// stuck controller can't be aborted mid-sequence, so on timeout the caller
// proceeds to its next step anyway; wait only reports that it gave up.
func (c *Conn) wait(flag uint, want byte) error {
	data, err := c.port.Inb(PortCmd)
	for i := 0; (data>>flag)&1 != want && err == nil; i++ {
		if i >= c.WaitMax {
			return fmt.Errorf(
				"ec: wait port 0x%x data 0x%x flag %d want %d: timeout",
				PortCmd, data, flag, want)
		}
		time.Sleep(c.WaitInterval)
		data, err = c.port.Inb(PortCmd)
	}
	return err
}

// ReadReg reads one register through the handshake path. A non-nil error
// means some wait timed out and the returned byte may be garbage; callers
// treat that as stale data, not as fatal.
func (c *Conn) ReadReg(off byte) (byte, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	err := c.wait(IBF, 0)
	c.port.Outb(PortCmd, ReadCmd)

	if e := c.wait(IBF, 0); err == nil {
		err = e
	}
	c.port.Outb(PortData, off)

	if e := c.wait(OBF, 1); err == nil {
		err = e
	}
	v, _ := c.port.Inb(PortData)
	return v, err
}

// Do issues a command with an argument byte and a value byte: the 4-step
// write handshake. Intermediate timeouts are logged and the sequence
// continues; only the final input-buffer wait decides success.
func (c *Conn) Do(op, arg, value byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.wait(IBF, 0); err != nil {
		log.Print("warning: ", err)
	}
	c.port.Outb(PortCmd, op)

	if err := c.wait(IBF, 0); err != nil {
		log.Print("warning: ", err)
	}
	c.port.Outb(PortData, arg)

	if err := c.wait(IBF, 0); err != nil {
		log.Print("warning: ", err)
	}
	c.port.Outb(PortData, value)

	return c.wait(IBF, 0)
}

// SetDuty drives the fan at pct of full PWM. Requests below the stall floor
// or above 100 are rejected before anything reaches the controller.
func (c *Conn) SetDuty(pct int) error {
	if pct < MinDirectDuty || pct > MaxDuty {
		return fmt.Errorf("ec: duty %d%% outside [%d,%d]",
			pct, MinDirectDuty, MaxDuty)
	}
	return c.Do(WriteCmd, fanMain, DutyToRaw(pct))
}

// Readings is one sample of the sensors this daemon cares about.
type Readings struct {
	CpuTemp int // °C
	GpuTemp int // °C
	Duty    int // percent of full PWM
	Rpm     int
}

// Readings samples each register through the handshake path. The first
// failed read aborts the sample; the caller keeps its previous values.
func (c *Conn) Readings() (Readings, error) {
	var r Readings
	cpu, err := c.ReadReg(RegCpuTemp)
	if err != nil {
		return r, err
	}
	gpu, err := c.ReadReg(RegGpuTemp)
	if err != nil {
		return r, err
	}
	duty, err := c.ReadReg(RegFanDuty)
	if err != nil {
		return r, err
	}
	hi, err := c.ReadReg(RegRpmHi)
	if err != nil {
		return r, err
	}
	lo, err := c.ReadReg(RegRpmLo)
	if err != nil {
		return r, err
	}
	r.CpuTemp = int(cpu)
	r.GpuTemp = int(gpu)
	r.Duty = DutyFromRaw(duty)
	r.Rpm = RpmFromRaw(hi, lo)
	return r, nil
}

// DecodeReadings extracts a sample from a bulk register bank snapshot.
func DecodeReadings(bank []byte) (Readings, error) {
	var r Readings
	if len(bank) < RegBankSize {
		return r, fmt.Errorf("ec: short bank: %d of %d bytes",
			len(bank), RegBankSize)
	}
	r.CpuTemp = int(bank[RegCpuTemp])
	r.GpuTemp = int(bank[RegGpuTemp])
	r.Duty = DutyFromRaw(bank[RegFanDuty])
	r.Rpm = RpmFromRaw(bank[RegRpmHi], bank[RegRpmLo])
	return r, nil
}
