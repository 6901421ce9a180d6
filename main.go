// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/pyrt-dev/pyrt/cmd/pyrt"

func main() {
	cmd.Execute()
}
