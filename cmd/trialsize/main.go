package main

import (
	"os"

	"github.com/trialsize/trialsize/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
