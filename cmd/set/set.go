// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package set requests a manual fan duty. With a worker running this is a
// single write into the shared control file and the worker applies it on
// its next tick; without one it degrades to the one-shot direct write the
// original command line tool did, which needs root and allows the wider
// [40,100] test range.
package set

import (
	"fmt"
	"strconv"

	"github.com/platinasystems/ecfand/cmd"
	"github.com/platinasystems/ecfand/internal/assert"
	"github.com/platinasystems/ecfand/internal/ctl"
	"github.com/platinasystems/ecfand/internal/ec"
	"github.com/platinasystems/ecfand/internal/pidfile"
	"github.com/platinasystems/ecfand/lang"
)

type Command struct{}

func (*Command) String() string { return "set" }

func (*Command) Usage() string { return "set DUTY" }

func (*Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "set manual fan duty in percent",
	}
}

func (*Command) Man() lang.Alt {
	return lang.Alt{
		lang.EnUS: `
DESCRIPTION
	Request DUTY percent of full fan drive and leave auto mode. Through
	a running worker DUTY must be within [` +
			strconv.Itoa(ec.MinManualDuty) + `,` +
			strconv.Itoa(ec.MaxDuty) + `]; the one-shot direct
	path accepts [` + strconv.Itoa(ec.MinDirectDuty) + `,` +
			strconv.Itoa(ec.MaxDuty) + `] and needs root.`,
	}
}

func (*Command) Kind() cmd.Kind { return cmd.DontFork }

func (*Command) Main(args ...string) error {
	if len(args) != 1 {
		return fmt.Errorf("DUTY: missing")
	}
	pct, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%s: %v", args[0], err)
	}

	if _, err = pidfile.Pid("fand"); err == nil {
		cf, err := ctl.Open()
		if err != nil {
			return err
		}
		defer cf.Close()
		if err = cf.RequestDuty(pct); err != nil {
			return err
		}
		cf.SetAutoMode(false)
		return nil
	}

	// no worker; drive the controller directly like the original
	// one-shot tool
	if pct < ec.MinDirectDuty || pct > ec.MaxDuty {
		return fmt.Errorf("invalid fan duty %d", pct)
	}
	if err = assert.Root(); err != nil {
		return err
	}
	conn, err := ec.New()
	if err != nil {
		return err
	}
	return conn.SetDuty(pct)
}
