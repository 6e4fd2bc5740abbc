// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package autoduty

import "testing"

func TestTable(t *testing.T) {
	for _, x := range []struct {
		temp, duty int
		want       int
		ok         bool
	}{
		{85, 70, 100, true},  // hot, ramp straight to full
		{85, 100, 0, false},  // already there
		{72, 100, 90, true},  // cooled into the 90 band
		{72, 90, 0, false},   // dead zone: no rise below 80, no fall above 75
		{66, 90, 0, false},   // still inside the 70/65 dead zone
		{64, 90, 80, true},   // dropped past the falling threshold
		{40, 100, 90, true},  // cool-down steps one band per decision
		{31, 40, 50, true},   // minimum active band
		{28, 50, 0, false},   // nothing below the table
		{28, 60, 50, true},   // settle to the floor band
		{50, 50, 70, true},   // warming through the middle
		{55, 70, 0, false},   // fixed point
	} {
		d, ok := NextDuty(x.temp, x.duty)
		if ok != x.ok || d != x.want {
			t.Error(x.temp, "°C at", x.duty, "%: got", d, ok,
				"want", x.want, x.ok)
		}
	}
}

func TestNoChangeIsIdempotent(t *testing.T) {
	for temp := 0; temp <= 110; temp++ {
		for duty := 40; duty <= 100; duty += 5 {
			if _, ok := NextDuty(temp, duty); !ok {
				if d, ok := NextDuty(temp, duty); ok {
					t.Fatal(temp, duty, ": flipped to", d)
				}
			}
		}
	}
}

// A temperature oscillating strictly inside a rising/falling threshold
// pair must cause at most one duty transition, however long it runs.
func TestNoFlapping(t *testing.T) {
	for _, start := range []int{70, 80, 90} {
		duty := start
		transitions := 0
		for i := 0; i < 200; i++ {
			temp := 66 + i%4 // strictly between fall 65 and rise 70
			if d, ok := NextDuty(temp, duty); ok {
				duty = d
				transitions++
			}
		}
		if transitions > 1 {
			t.Error("start", start, "%:", transitions, "transitions")
		}
	}
}

func TestReachesFixedPoint(t *testing.T) {
	// from any state, a constant temperature settles in a few steps
	for temp := 20; temp <= 100; temp += 7 {
		duty := 40
		var steps int
		for ; steps < 10; steps++ {
			d, ok := NextDuty(temp, duty)
			if !ok {
				break
			}
			duty = d
		}
		if steps == 10 {
			t.Error(temp, "°C never settles")
		}
	}
}
