// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package pidfile records daemon pids in /run/ecfand/pids
package pidfile

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

var Dir = "/run/ecfand/pids"

// New records this process' pid in Dir/name and returns the file name.
func New(name string) (string, error) {
	if err := os.MkdirAll(Dir, 0755); err != nil {
		return "", err
	}
	pid := os.Getpid()
	fn := filepath.Join(Dir, name)
	f, err := os.Create(fn)
	if err != nil {
		return "", err
	}
	defer f.Close()
	fmt.Fprintln(f, pid)
	return fn, nil
}

// Path returns Dir + "/" + name if name isn't already prefaced by Dir
func Path(name string) string {
	if strings.HasPrefix(name, Dir) {
		return name
	}
	return filepath.Join(Dir, name)
}

// Pid returns the recorded, still running pid of the named daemon, or an
// error if there is no pidfile or the process is gone.
func Pid(name string) (int, error) {
	buf, err := ioutil.ReadFile(Path(name))
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(buf)))
	if err != nil {
		return 0, err
	}
	if err = syscall.Kill(pid, 0); err != nil {
		return 0, fmt.Errorf("pid %d: %v", pid, err)
	}
	return pid, nil
}

func Remove(name string) error {
	return os.Remove(Path(name))
}

func RemoveAll() {
	pids, err := filepath.Glob(filepath.Join(Dir, "*"))
	if err == nil {
		for _, fn := range pids {
			os.Remove(fn)
		}
		os.Remove(Dir)
	}
}
