package main

import (
	"os"

	"github.com/vitalvas/routeprobe/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
