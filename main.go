// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/wares-build/wares/cmd/wares"

func main() {
	cmd.Execute()
}
