// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package ecfand plots and dispatches the fan controller's commands. It's a
// single busybox style binary: the supervisor, the privileged worker daemon
// and the one-shot consumer commands are all personalities of one
// executable, so the worker is always spawned from the very program that
// configured it.
package ecfand

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/platinasystems/flags"
	"github.com/platinasystems/log"

	"github.com/platinasystems/ecfand/cmd"
	"github.com/platinasystems/ecfand/internal/pidfile"
	"github.com/platinasystems/ecfand/internal/prog"
	"github.com/platinasystems/ecfand/lang"
)

// DaemonFlag marks the stages of the daemon double fork in the child's
// environment: unset, then "child", then "grandchild" running the loop.
const DaemonFlag = "__ECFAND_DAEMON__"

var Exit = os.Exit

type ByName map[string]cmd.Cmd

// Plot commands on the map; a duplicate name is a programming error.
func (byName ByName) Plot(cmds ...cmd.Cmd) {
	for _, v := range cmds {
		name := v.String()
		if _, found := byName[name]; found {
			panic(fmt.Errorf("%s: duplicate", name))
		}
		byName[name] = v
	}
}

// Main runs the args[0] command. When run w/o args this uses os.Args and
// exits instead of returns on error.
//
// If the args has "-h", "-help", or "--help", this prints the command's
// usage and description instead of running it; likewise "-usage".
//
// If the command is a daemon, this fork exec's itself twice to disassociate
// the daemon from the tty and initiating process.
func (byName ByName) Main(args ...string) (err error) {
	var isDaemon bool

	if len(args) == 0 {
		args = os.Args
		if len(args) == 0 {
			return
		}
		defer func() {
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n",
					prog.Base(), err)
				Exit(1)
			}
		}()
	} else {
		// args is re-sliced below; keep the reporting name
		base := filepath.Base(args[0])
		defer func() {
			if isDaemon {
				if err != nil {
					log.Print("daemon", "err", err)
				}
			} else if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n",
					base, err)
			}
		}()
	}
	if _, found := byName[args[0]]; !found {
		args = args[1:]
	}
	if len(args) < 1 {
		return byName.help()
	}
	name := args[0]
	args = args[1:]
	flag, args := flags.New(args,
		[]string{"-h", "-help", "--help"},
		[]string{"-usage", "--usage"})
	v, found := byName[name]
	if !found {
		if name == "help" {
			return byName.help(args...)
		}
		return fmt.Errorf("%s: command not found", name)
	}
	switch {
	case flag.ByName["-h"]:
		fmt.Println(Usage(v))
		fmt.Println(v.Apropos())
		if m, found := v.(manner); found {
			fmt.Println(m.Man())
		}
		return nil
	case flag.ByName["-usage"]:
		fmt.Println(Usage(v))
		return nil
	}
	isDaemon = cmd.WhatKind(v).IsDaemon()
	if !isDaemon {
		return v.Main(args...)
	}
	switch os.Getenv(DaemonFlag) {
	case "":
		c := prog.Command(append([]string{name}, args...)...)
		c.Stdin = nil
		c.Stdout = nil
		c.Stderr = nil
		c.Dir = "/"
		c.Env = append(prog.DaemonEnv(), DaemonFlag+"=child")
		c.SysProcAttr = &syscall.SysProcAttr{
			Setsid: true,
			Pgid:   0,
		}
		err = c.Start()
	case "child":
		syscall.Umask(002)
		rout, wout, terr := os.Pipe()
		if terr != nil {
			return terr
		}
		rerr, werr, terr := os.Pipe()
		if terr != nil {
			return terr
		}
		go log.LinesFrom(rout, name, "info")
		go log.LinesFrom(rerr, name, "err")
		c := prog.Command(append([]string{name}, args...)...)
		c.Stdin = nil
		c.Stdout = wout
		c.Stderr = werr
		c.Env = append(prog.DaemonEnv(), DaemonFlag+"=grandchild")
		c.SysProcAttr = &syscall.SysProcAttr{
			Setsid: true,
			Pgid:   0,
		}
		signal.Ignore(syscall.SIGTERM)
		err = c.Start()
	case "grandchild":
		pidfn, terr := pidfile.New(name)
		if terr != nil {
			return terr
		}
		sigch := make(chan os.Signal, 1)
		signal.Notify(sigch, syscall.SIGTERM)
		go terminate(v, pidfn, sigch)
		err = v.Main(args...)
		os.Remove(pidfn)
	}
	return
}

func terminate(v cmd.Cmd, pidfn string, ch chan os.Signal) {
	for sig := range ch {
		if sig == syscall.SIGTERM {
			if method, found := v.(closer); found {
				method.Close()
			}
			os.Remove(pidfn)
			os.Exit(0)
		}
		os.Remove(pidfn)
		break
	}
}

func (byName ByName) help(args ...string) error {
	if len(args) > 0 {
		v, found := byName[args[0]]
		if !found {
			return fmt.Errorf("%s: command not found", args[0])
		}
		fmt.Println(Usage(v))
		fmt.Println(v.Apropos())
		return nil
	}
	keys := make([]string, 0, len(byName))
	for k := range byName {
		if !cmd.WhatKind(byName[k]).IsHidden() {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%-12s%s\n", k, byName[k].Apropos())
	}
	return nil
}

type closer interface {
	Close() error
}

type manner interface {
	Man() lang.Alt
}

type Usager interface {
	Usage() string
}

func Usage(v Usager) string {
	return fmt.Sprint("usage:\t", v.Usage())
}
