// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Ecfand is a fan controller for laptops whose embedded controller answers
// on the legacy 0x66/0x62 port pair.
package main

import (
	"github.com/platinasystems/ecfand"
	"github.com/platinasystems/ecfand/cmd/auto"
	"github.com/platinasystems/ecfand/cmd/fand"
	"github.com/platinasystems/ecfand/cmd/set"
	"github.com/platinasystems/ecfand/cmd/show"
	"github.com/platinasystems/ecfand/cmd/start"
	"github.com/platinasystems/ecfand/cmd/stop"
)

func main() {
	byName := make(ecfand.ByName)
	byName.Plot(
		&auto.Command{},
		&fand.Command{},
		&set.Command{},
		&show.Command{},
		&start.Command{},
		&stop.Command{},
	)
	byName.Main()
}
