// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package main

import (
	"os"

	"github.com/sakura/springbreak/cmd/springbreak/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
