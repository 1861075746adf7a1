package main

import (
	"os"

	"github.com/jacokyle01/game-review/src/cli"
)

var version = "dev"

func main() {
	if err := cli.NewRootCmd(version).Execute(); err != nil {
		os.Exit(1)
	}
}
