// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package ctl

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func testPath(t *testing.T) {
	t.Helper()
	old := Path
	Path = filepath.Join(t.TempDir(), "ctl")
	t.Cleanup(func() { Path = old })
}

func TestCreateDefaults(t *testing.T) {
	testPath(t)
	c, err := Create()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if !c.AutoMode() {
		t.Error("fresh state should select auto mode")
	}
	if c.ShouldExit() {
		t.Error("fresh state shouldn't ask for exit")
	}
	if c.ManualRequest() != 0 {
		t.Error("fresh state has a pending request")
	}
}

func TestSharedAcrossMappings(t *testing.T) {
	testPath(t)
	w, err := Create()
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	r, err := Open()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	// worker-owned fields seen by the consumer mapping
	w.SetReadings(61, 48, 70, 3500)
	if r.CpuTemp() != 61 || r.GpuTemp() != 48 {
		t.Error("temps", r.CpuTemp(), r.GpuTemp())
	}
	if r.FanDuty() != 70 || r.FanRpm() != 3500 {
		t.Error("fan", r.FanDuty(), r.FanRpm())
	}

	// consumer-owned fields seen by the worker mapping
	if err = r.RequestDuty(85); err != nil {
		t.Fatal(err)
	}
	r.SetAutoMode(false)
	if w.ManualRequest() != 85 {
		t.Error("request", w.ManualRequest())
	}
	if w.AutoMode() {
		t.Error("auto mode should be off")
	}

	r.SetShouldExit()
	if !w.ShouldExit() {
		t.Error("exit flag didn't cross")
	}
}

func TestRequestDutyRange(t *testing.T) {
	testPath(t)
	c, err := Create()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	for _, pct := range []int{0, 40, 59, 101} {
		if err = c.RequestDuty(pct); err == nil {
			t.Error(pct, "%: expected rejection")
		}
	}
	if c.ManualRequest() != 0 {
		t.Error("rejected request stored:", c.ManualRequest())
	}
	for _, pct := range []int{60, 100} {
		if err = c.RequestDuty(pct); err != nil {
			t.Error(pct, "%:", err)
		}
	}
}

func TestOpenRejectsForeignFile(t *testing.T) {
	testPath(t)
	if err := ioutil.WriteFile(Path, make([]byte, 4096), 0644); err != nil {
		t.Fatal(err)
	}
	if c, err := Open(); err == nil {
		c.Close()
		t.Error("mapped a file with no magic")
	}
}

func TestOpenLeavesForeignFileAlone(t *testing.T) {
	testPath(t)
	if err := ioutil.WriteFile(Path, []byte("short and strange"), 0644); err != nil {
		t.Fatal(err)
	}
	if c, err := Open(); err == nil {
		c.Close()
		t.Fatal("mapped a foreign file")
	}
	fi, err := os.Stat(Path)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Size() != int64(len("short and strange")) {
		t.Error("rejected file was resized to", fi.Size())
	}
}

func TestOpenWithoutFile(t *testing.T) {
	testPath(t)
	if c, err := Open(); err == nil {
		c.Close()
		t.Error("opened a control file that doesn't exist")
	}
}
