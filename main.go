// SPDX-License-Identifier: MPL-2.0

// svcload discovers service providers across resolved module graphs.
package main

import cmd "github.com/invowk/svcload/cmd/svcload"

func main() {
	cmd.Execute()
}
