// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package ec

// The embedded controller answers on two fixed ISA ports. Everything below
// is hardware defined for this controller family and compiled in.
const (
	PortCmd  uint16 = 0x66 // status on read, command on write
	PortData uint16 = 0x62

	// status port flag bits
	OBF = 0 // output buffer full
	IBF = 1 // input buffer full

	ReadCmd  byte = 0x80
	WriteCmd byte = 0x99

	// argument byte selecting the main fan in a WriteCmd sequence
	fanMain byte = 0x01
)

// Register offsets within the controller's bank.
const (
	RegCpuTemp byte = 0x07
	RegGpuTemp byte = 0xcd
	RegFanDuty byte = 0xce
	RegRpmHi   byte = 0xd0
	RegRpmLo   byte = 0xd1
)

const (
	// RegBankSize is what one bulk snapshot of the register bank holds.
	RegBankSize = 256

	// MinDirectDuty is the absolute floor for any duty write; the fan
	// stalls below it.
	MinDirectDuty = 40

	// MinManualDuty is the floor enforced on daemon manual requests.
	MinManualDuty = 60

	MaxDuty = 100
)
