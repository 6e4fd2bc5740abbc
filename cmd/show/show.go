// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package show reports the current fan and temperature readings. It asks a
// running worker over rpc, falls back to the mapped control file, and as a
// last resort reads the controller directly, which needs root.
package show

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/platinasystems/atsock"

	"github.com/platinasystems/ecfand/cmd"
	"github.com/platinasystems/ecfand/internal/assert"
	"github.com/platinasystems/ecfand/internal/ctl"
	"github.com/platinasystems/ecfand/internal/ec"
	"github.com/platinasystems/ecfand/lang"
)

// RpcName must match the worker's server socket.
const RpcName = "ecfand"

type Command struct{}

func (*Command) String() string { return "show" }

func (*Command) Usage() string { return "show" }

func (*Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "show fan duty, speed and temperatures",
	}
}

func (*Command) Man() lang.Alt {
	return lang.Alt{
		lang.EnUS: `
DESCRIPTION
	Print the current readings. With no worker running this talks to
	the embedded controller itself and must run as root.`,
	}
}

func (*Command) Kind() cmd.Kind { return cmd.DontFork }

type readings struct {
	duty, rpm, cpu, gpu int
	mode                string
}

func (*Command) Main(args ...string) error {
	if len(args) > 0 {
		return fmt.Errorf("%v: unexpected", args)
	}
	r, err := fromRpc()
	if err != nil {
		r, err = fromCtl()
	}
	if err != nil {
		r, err = fromHardware()
	}
	if err != nil {
		return err
	}
	if isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Printf("FAN duty:\t%d%%\n", r.duty)
		fmt.Printf("FAN speed:\t%d RPM\n", r.rpm)
		fmt.Printf("CPU temp:\t%d°C\n", r.cpu)
		fmt.Printf("GPU temp:\t%d°C\n", r.gpu)
		fmt.Printf("mode:\t\t%s\n", r.mode)
	} else {
		fmt.Print("fan.duty: ", r.duty, "\n")
		fmt.Print("fan.rpm: ", r.rpm, "\n")
		fmt.Print("temp.cpu.units.C: ", r.cpu, "\n")
		fmt.Print("temp.gpu.units.C: ", r.gpu, "\n")
		fmt.Print("fan.speed: ", r.mode, "\n")
	}
	return nil
}

func fromRpc() (r readings, err error) {
	cl, err := atsock.NewRpcClient(RpcName)
	if err != nil {
		return
	}
	defer cl.Close()
	for _, x := range []struct {
		key string
		n   *int
	}{
		{"fan.duty", &r.duty},
		{"fan.rpm", &r.rpm},
		{"temp.cpu.units.C", &r.cpu},
		{"temp.gpu.units.C", &r.gpu},
	} {
		var s string
		if err = cl.Call("Info.Hget", x.key, &s); err != nil {
			return
		}
		fmt.Sscan(s, x.n)
	}
	err = cl.Call("Info.Hget", "fan.speed", &r.mode)
	return
}

func fromCtl() (r readings, err error) {
	cf, err := ctl.Open()
	if err != nil {
		return
	}
	defer cf.Close()
	r.duty = cf.FanDuty()
	r.rpm = cf.FanRpm()
	r.cpu = cf.CpuTemp()
	r.gpu = cf.GpuTemp()
	r.mode = "manual"
	if cf.AutoMode() {
		r.mode = "auto"
	}
	return
}

func fromHardware() (r readings, err error) {
	if err = assert.Root(); err != nil {
		return
	}
	conn, err := ec.New()
	if err != nil {
		return
	}
	var sample ec.Readings
	if ec.HaveBank() {
		var bank []byte
		if bank, err = ec.ReadBank(); err != nil {
			return
		}
		sample, err = ec.DecodeReadings(bank)
	} else {
		sample, err = conn.Readings()
	}
	if err != nil {
		return
	}
	r.duty = sample.Duty
	r.rpm = sample.Rpm
	r.cpu = sample.CpuTemp
	r.gpu = sample.GpuTemp
	r.mode = "none"
	return
}
