// SPDX-License-Identifier: MPL-2.0

package main

import "github.com/dcoupld/envschema/cmd/envschema"

func main() {
	cmd.Execute()
}
