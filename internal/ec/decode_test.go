// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package ec

import (
	"fmt"
	"testing"
)

func ExampleDutyFromRaw() {
	fmt.Println(DutyFromRaw(178), DutyFromRaw(255))
	// Output: 70 100
}

func TestDutyRoundTrip(t *testing.T) {
	// rounding from_raw plus truncating to_raw bounds the round trip
	// at 2 raw counts
	for b := 0; b <= 255; b++ {
		pct := DutyFromRaw(byte(b))
		raw := int(DutyToRaw(pct))
		if d := raw - b; d < -2 || d > 2 {
			t.Error("raw", b, "-> ", pct, "% -> ", raw)
		}
	}
}

func TestDutyToRaw(t *testing.T) {
	for _, x := range []struct {
		pct int
		raw byte
	}{
		{40, 102},
		{60, 153},
		{85, 216}, // truncation matters here: never 217
		{100, 255},
	} {
		if raw := DutyToRaw(x.pct); raw != x.raw {
			t.Error(x.pct, "%: got", raw, "want", x.raw)
		}
	}
}

func TestRpmFromRaw(t *testing.T) {
	if rpm := RpmFromRaw(0, 0); rpm != 0 {
		t.Error("stopped fan: got", rpm)
	}
	for _, x := range [][2]byte{{0, 1}, {1, 0}, {2, 0x6a}, {0xff, 0xff}} {
		if rpm := RpmFromRaw(x[0], x[1]); rpm <= 0 {
			t.Error("raw", x, ": got", rpm)
		}
	}
	// 2156220 / 0x026a == 3489
	if rpm := RpmFromRaw(0x02, 0x6a); rpm != 3489 {
		t.Error("got", rpm, "want 3489")
	}
}
