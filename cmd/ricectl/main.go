package main

import (
	"os"

	"github.com/xela07ax/ricemarket-console/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
