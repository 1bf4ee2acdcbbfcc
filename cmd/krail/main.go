// SPDX-License-Identifier: MPL-2.0

// Command krail assembles a CLI from command modules discovered on disk.
package main

import "krail-cli/internal/cli"

func main() {
	cli.Execute()
}
