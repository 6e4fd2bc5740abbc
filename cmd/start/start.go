// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package start provides the supervisor: it creates the shared control
// file, spawns the fand worker as a root child, then drops its own
// credentials to the invoking desktop user and waits. The worker is the
// only process that ever keeps the elevated rights the ports need.
package start

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/platinasystems/log"
	"github.com/platinasystems/parms"

	"github.com/platinasystems/ecfand"
	"github.com/platinasystems/ecfand/cmd"
	"github.com/platinasystems/ecfand/internal/assert"
	"github.com/platinasystems/ecfand/internal/ctl"
	"github.com/platinasystems/ecfand/internal/pidfile"
	"github.com/platinasystems/ecfand/internal/prog"
	"github.com/platinasystems/ecfand/lang"
)

// how long the worker gets to notice should_exit before we give up on it
const grace = 3 * time.Second

type Command struct{}

func (*Command) String() string { return "start" }

func (*Command) Usage() string { return "start [-tick DURATION]" }

func (*Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "start the fan control worker and supervise it",
	}
}

func (*Command) Man() lang.Alt {
	return lang.Alt{
		lang.EnUS: `
DESCRIPTION
	Start creates the shared control file, spawns the fand worker as a
	direct child that keeps root, then drops to the invoking user
	(SUDO_UID/SUDO_GID) and waits. Termination signals are relayed to
	the worker through the control file's should_exit flag; if the
	worker dies on its own, start exits with failure rather than run
	without it.

OPTIONS
	-tick DURATION
		Worker loop interval, default 200ms.`,
	}
}

func (*Command) Kind() cmd.Kind { return cmd.DontFork }

func (*Command) Main(args ...string) error {
	parm, args := parms.New(args, "-tick")
	if len(args) > 0 {
		return fmt.Errorf("%v: unexpected", args)
	}
	if err := assert.Root(); err != nil {
		return err
	}
	if pid, err := pidfile.Pid("fand"); err == nil {
		return fmt.Errorf("already running, pid %d", pid)
	}

	cf, err := ctl.Create()
	if err != nil {
		return err
	}
	defer cf.Close()

	uid, gid := sudoUser()
	if uid != 0 {
		if err = cf.Chown(uid, gid); err != nil {
			log.Print("warning: chown control file: ", err)
		}
	}

	wargs := []string{"fand"}
	if tick := parm.ByName["-tick"]; len(tick) > 0 {
		wargs = append(wargs, "-tick", tick)
	}
	w := prog.Command(wargs...)
	w.Stdin = nil
	w.Stdout = nil
	w.Stderr = nil
	w.Dir = "/"
	// final daemon stage: the worker stays our waitable child
	w.Env = append(prog.DaemonEnv(), ecfand.DaemonFlag+"=grandchild")
	w.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
		Pgid:   0,
	}
	if err = w.Start(); err != nil {
		return err
	}

	// nothing after this point needs root; the control file is the only
	// channel back to the worker
	if uid != 0 {
		if err = drop(uid, gid); err != nil {
			cf.SetShouldExit()
			w.Wait()
			return err
		}
	}

	died := make(chan error, 1)
	go func() { died <- w.Wait() }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case s := <-sig:
		log.Print("notice: ", s, ", stopping")
		cf.SetShouldExit()
		select {
		case <-died:
		case <-time.After(grace):
			return fmt.Errorf("worker didn't exit")
		}
	case err = <-died:
		// the worker must never run unsupervised, and we must never
		// run headless; die with it
		if err != nil {
			return fmt.Errorf("worker: %v", err)
		}
		return fmt.Errorf("worker exited")
	}

	// file removal is best effort; after the privilege drop the /run
	// directory may refuse us, and the next start truncates anyway
	cf.Unlink()
	return nil
}

func sudoUser() (uid, gid int) {
	uid, _ = strconv.Atoi(os.Getenv("SUDO_UID"))
	gid, _ = strconv.Atoi(os.Getenv("SUDO_GID"))
	return
}

func drop(uid, gid int) error {
	if err := syscall.Setgroups([]int{gid}); err != nil {
		return fmt.Errorf("setgroups: %v", err)
	}
	if err := syscall.Setgid(gid); err != nil {
		return fmt.Errorf("setgid: %v", err)
	}
	if err := syscall.Setuid(uid); err != nil {
		return fmt.Errorf("setuid: %v", err)
	}
	return nil
}
