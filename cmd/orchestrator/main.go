package main

import (
	"os"

	"github.com/daydemir/orchestrator/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
