// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package ec

import (
	"fmt"
	"io"
	"os"
)

// DebugBank is the kernel's flat snapshot of the controller's register bank
// (CONFIG_ACPI_EC_DEBUGFS, modprobe ec_sys). Reading it doesn't interact
// with the controller's command state machine, so polling loops prefer it
// over one handshake per register. There is no bulk write equivalent.
var DebugBank = "/sys/kernel/debug/ec/ec0/io"

// HaveBank reports whether the kernel snapshot is present.
func HaveBank() bool {
	_, err := os.Stat(DebugBank)
	return err == nil
}

// ReadBank reads one full snapshot of the register bank.
func ReadBank() ([]byte, error) {
	f, err := os.Open(DebugBank)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	bank := make([]byte, RegBankSize)
	n, err := io.ReadFull(f, bank)
	if err != nil {
		return nil, fmt.Errorf("ec: %s: read %d of %d bytes: %v",
			DebugBank, n, RegBankSize, err)
	}
	return bank, nil
}
