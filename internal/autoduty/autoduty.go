// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package autoduty decides fan duty from temperature.
//
// The policy is a monotone staircase with hysteresis: a rising threshold
// only raises the duty when the fan is below that step's target, and each
// falling threshold sits several degrees under its rising partner, so a
// temperature wandering inside the dead zone never toggles the fan. The
// tables are behavioral compatibility surface; don't retune them casually.
package autoduty

type step struct {
	temp int // °C
	duty int // percent
}

var rising = []step{
	{80, 100},
	{70, 90},
	{60, 80},
	{50, 70},
	{40, 60},
	{30, 50},
}

var falling = []step{
	{75, 90},
	{65, 80},
	{55, 70},
	{45, 60},
	{35, 50},
}

// NextDuty returns the duty the fan should change to for the given
// temperature and current duty. ok is false when no rule fires and the
// duty should stay as it is.
func NextDuty(temp, duty int) (int, bool) {
	for _, s := range rising {
		if temp >= s.temp && duty < s.duty {
			return s.duty, true
		}
	}
	for _, s := range falling {
		if temp <= s.temp && duty > s.duty {
			return s.duty, true
		}
	}
	return 0, false
}
