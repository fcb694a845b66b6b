// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/invowk/extpack/cmd/extpack"

func main() {
	cmd.Execute()
}
