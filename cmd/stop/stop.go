// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package stop provides the named command that asks the fand worker to
// exit through the control file, escalating to SIGTERM if it has to.
package stop

import (
	"fmt"
	"syscall"
	"time"

	"github.com/platinasystems/ecfand/cmd"
	"github.com/platinasystems/ecfand/internal/ctl"
	"github.com/platinasystems/ecfand/internal/pidfile"
	"github.com/platinasystems/ecfand/lang"
)

const grace = 3 * time.Second

type Command struct{}

func (*Command) String() string { return "stop" }

func (*Command) Usage() string { return "stop" }

func (*Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "stop the fan control worker",
	}
}

func (*Command) Man() lang.Alt {
	return lang.Alt{
		lang.EnUS: `
DESCRIPTION
	Stop sets should_exit in the shared control file and waits for the
	worker's pidfile to clear. A worker that outlives the grace period
	gets a SIGTERM, which needs the privilege the worker runs with.`,
	}
}

func (*Command) Kind() cmd.Kind { return cmd.DontFork }

func (*Command) Main(args ...string) error {
	if len(args) > 0 {
		return fmt.Errorf("%v: unexpected", args)
	}
	pid, err := pidfile.Pid("fand")
	if err != nil {
		return fmt.Errorf("not running")
	}
	cf, err := ctl.Open()
	if err != nil {
		return err
	}
	cf.SetShouldExit()
	cf.Close()

	for deadline := time.Now().Add(grace); time.Now().Before(deadline); {
		if _, err = pidfile.Pid("fand"); err != nil {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err = syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("pid %d won't stop: %v", pid, err)
	}
	return nil
}
