// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package assert has condition checks shared by the privileged commands.
package assert

import (
	"errors"
	"os"
)

var ErrNotRoot = errors.New("you aren't root")

func Root() error {
	if os.Geteuid() != 0 {
		return ErrNotRoot
	}
	return nil
}
