package main

import (
	"os"

	"github.com/Quaser41/Autonomous-Trader/cmd/trader/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
