// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package ec

// rpmScale relates the controller's tachometer period register to RPM.
const rpmScale = 2156220

// DutyFromRaw converts the duty register to a percentage, rounding to
// nearest.
func DutyFromRaw(b byte) int {
	return (int(b)*100 + 127) / 255
}

// DutyToRaw converts a percentage to the duty register encoding. It
// truncates: 85% must encode as raw 216, not 217. With a rounding
// from_raw and a truncating to_raw the round trip can move a raw value
// by up to 2 counts.
func DutyToRaw(pct int) byte {
	return byte(pct * 255 / 100)
}

// RpmFromRaw converts the tachometer period bytes to RPM; a zero period
// means the fan isn't spinning.
func RpmFromRaw(hi, lo byte) int {
	raw := int(hi)<<8 | int(lo)
	if raw == 0 {
		return 0
	}
	return rpmScale / raw
}
