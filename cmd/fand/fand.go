// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package fand is the privileged worker: the one process allowed to write
// the controller ports. It reconciles pending manual requests and the auto
// duty policy against fresh sensor readings once per tick, and mirrors the
// readings into the shared control file for everyone else.
package fand

import (
	"fmt"
	"net/rpc"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/platinasystems/atsock"
	"github.com/platinasystems/log"
	"github.com/platinasystems/parms"
	"github.com/platinasystems/redis/publisher"

	"github.com/platinasystems/ecfand/cmd"
	"github.com/platinasystems/ecfand/internal/autoduty"
	"github.com/platinasystems/ecfand/internal/ctl"
	"github.com/platinasystems/ecfand/internal/ec"
	"github.com/platinasystems/ecfand/lang"
)

const DefaultTick = 200 * time.Millisecond

// RpcName is the abstract socket the readings RPC answers on.
const RpcName = "ecfand"

type Command struct {
	// Conn and Ctl may be preset by embedders and tests; Main fills
	// them from the real hardware and /run path when nil.
	Conn *ec.Conn
	Ctl  *ctl.File
	Tick time.Duration

	Info
	mu    sync.Mutex
	stop  chan struct{}
	pub   *publisher.Publisher
	rpc   *atsock.RpcServer
	last  map[string]int
	lasts map[string]string
}

// stopCh lazily makes the stop channel; the SIGTERM handler may Close
// this command before Main has run.
func (c *Command) stopCh() chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop == nil {
		c.stop = make(chan struct{})
	}
	return c.stop
}

// Info answers the readings RPC; shared with cmd/show.
type Info struct {
	mutex sync.Mutex
	ctl   *ctl.File
}

func (*Command) String() string { return "fand" }

func (*Command) Usage() string { return "fand [-tick DURATION]" }

func (*Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "fan control worker daemon",
	}
}

func (*Command) Man() lang.Alt {
	return lang.Alt{
		lang.EnUS: `
DESCRIPTION
	The fand daemon owns the embedded controller's ports. Each tick it
	applies any pending manual duty request, refreshes the shared
	readings from the controller's register bank, and, in auto mode,
	applies the hysteretic auto duty policy.

	Readings are published to redis when a redis server is present and
	served over the @` + RpcName + ` rpc socket; neither is required.`,
	}
}

func (*Command) Kind() cmd.Kind { return cmd.Daemon }

func (c *Command) Close() error {
	if c.Ctl != nil {
		c.Ctl.SetShouldExit()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop == nil {
		c.stop = make(chan struct{})
	}
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
	return nil
}

func (c *Command) Main(args ...string) error {
	var err error

	stop := c.stopCh()
	parm, args := parms.New(args, "-tick")
	if len(args) > 0 {
		return fmt.Errorf("%v: unexpected", args)
	}
	if s := parm.ByName["-tick"]; len(s) > 0 {
		if c.Tick, err = time.ParseDuration(s); err != nil {
			return err
		}
	}
	if c.Tick == 0 {
		c.Tick = DefaultTick
	}
	if c.Conn == nil {
		if c.Conn, err = ec.New(); err != nil {
			return err
		}
	}
	if c.Ctl == nil {
		if c.Ctl, err = ctl.OpenOrCreate(); err != nil {
			return err
		}
		defer c.Ctl.Close()
	}

	haveBank := c.probeBank()
	if !haveBank {
		// no snapshot interface; the handshake path must work or
		// this worker can never produce a reading
		if _, err = c.Conn.ReadReg(ec.RegCpuTemp); err != nil {
			return fmt.Errorf("no sensor source: %v", err)
		}
		log.Print("notice: ", ec.DebugBank,
			" missing, using per-register reads")
	}

	c.last = make(map[string]int)
	c.lasts = make(map[string]string)
	c.Info.ctl = c.Ctl

	if c.pub, err = publisher.New(); err != nil {
		log.Print("warning: publisher: ", err)
		c.pub = nil
	}
	if c.rpc, err = atsock.NewRpcServer(RpcName); err != nil {
		log.Print("warning: rpc: ", err)
	} else {
		rpc.Register(&c.Info)
		defer c.rpc.Close()
	}

	t := time.NewTicker(c.Tick)
	defer t.Stop()
	for !c.Ctl.ShouldExit() {
		c.tick(haveBank)
		select {
		case <-stop:
			log.Print("notice: stopped")
			return nil
		case <-t.C:
		}
	}
	log.Print("notice: exiting")
	return nil
}

// tick is one pass of the reconcile loop: manual request first, then a
// readings refresh, then the auto policy. Exactly this order; the policy
// must see the duty the hardware is actually running.
func (c *Command) tick(haveBank bool) {
	if mr := c.Ctl.ManualRequest(); mr != 0 && mr != c.Ctl.ManualApplied() {
		if err := c.Conn.SetDuty(mr); err != nil {
			log.Print("warning: manual duty: ", err)
		}
		// a request is consumed by one application, never cleared
		c.Ctl.SetManualApplied(mr)
	}

	if r, err := c.sample(haveBank); err != nil {
		log.Print("warning: readings skipped: ", err)
	} else {
		c.Ctl.SetReadings(r.CpuTemp, r.GpuTemp, r.Duty, r.Rpm)
	}

	if c.Ctl.AutoMode() {
		temp := c.Ctl.CpuTemp()
		if t := c.Ctl.GpuTemp(); t > temp {
			temp = t
		}
		d, ok := autoduty.NextDuty(temp, c.Ctl.FanDuty())
		if ok && d != c.Ctl.LastAutoDuty() {
			if err := c.Conn.SetDuty(d); err != nil {
				log.Print("warning: auto duty: ", err)
			}
			c.Ctl.SetLastAutoDuty(d)
		}
	}

	c.publish()
}

func (c *Command) sample(haveBank bool) (ec.Readings, error) {
	if haveBank {
		bank, err := ec.ReadBank()
		if err != nil {
			return ec.Readings{}, err
		}
		return ec.DecodeReadings(bank)
	}
	return c.Conn.Readings()
}

// probeBank waits briefly for the kernel snapshot interface; ec_sys may
// still be loading when this daemon starts.
func (c *Command) probeBank() bool {
	b := &backoff.Backoff{
		Min:    50 * time.Millisecond,
		Max:    500 * time.Millisecond,
		Factor: 2,
	}
	for !ec.HaveBank() {
		if b.Attempt() >= 5 {
			return false
		}
		time.Sleep(b.Duration())
	}
	return true
}

// publish mirrors changed readings to redis, best effort: without a redis
// server the Publisher just fails quietly.
func (c *Command) publish() {
	if c.pub == nil {
		return
	}
	for k, v := range map[string]int{
		"fan.duty":         c.Ctl.FanDuty(),
		"fan.rpm":          c.Ctl.FanRpm(),
		"temp.cpu.units.C": c.Ctl.CpuTemp(),
		"temp.gpu.units.C": c.Ctl.GpuTemp(),
	} {
		if last, found := c.last[k]; !found || v != last {
			c.pub.Print(k, ": ", v)
			c.last[k] = v
		}
	}
	speed := "manual"
	if c.Ctl.AutoMode() {
		speed = "auto"
	}
	if speed != c.lasts["fan.speed"] {
		c.pub.Print("fan.speed: ", speed)
		c.lasts["fan.speed"] = speed
	}
}

// Hget serves one named reading to rpc clients.
func (i *Info) Hget(key string, reply *string) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	if i.ctl == nil {
		return fmt.Errorf("not running")
	}
	switch key {
	case "fan.duty":
		*reply = fmt.Sprint(i.ctl.FanDuty())
	case "fan.rpm":
		*reply = fmt.Sprint(i.ctl.FanRpm())
	case "temp.cpu.units.C":
		*reply = fmt.Sprint(i.ctl.CpuTemp())
	case "temp.gpu.units.C":
		*reply = fmt.Sprint(i.ctl.GpuTemp())
	case "fan.speed":
		if i.ctl.AutoMode() {
			*reply = "auto"
		} else {
			*reply = "manual"
		}
	default:
		return fmt.Errorf("%s: unknown", key)
	}
	return nil
}
