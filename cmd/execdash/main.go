package main

import (
	"os"

	"github.com/odyssey-erp/execdash/cmd/execdash/cli"
)

var version = "dev"

func main() {
	if err := cli.NewRootCommand(version).Execute(); err != nil {
		os.Exit(1)
	}
}
