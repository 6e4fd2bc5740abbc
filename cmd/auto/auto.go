// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package auto hands fan control back to the worker's auto duty policy.
package auto

import (
	"fmt"

	"github.com/platinasystems/ecfand/cmd"
	"github.com/platinasystems/ecfand/internal/ctl"
	"github.com/platinasystems/ecfand/lang"
)

type Command struct{}

func (*Command) String() string { return "auto" }

func (*Command) Usage() string { return "auto" }

func (*Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "select the auto duty policy",
	}
}

func (*Command) Kind() cmd.Kind { return cmd.DontFork }

func (*Command) Main(args ...string) error {
	if len(args) > 0 {
		return fmt.Errorf("%v: unexpected", args)
	}
	cf, err := ctl.Open()
	if err != nil {
		return fmt.Errorf("no worker: %v", err)
	}
	defer cf.Close()
	cf.SetAutoMode(true)
	return nil
}
