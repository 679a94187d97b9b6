package main

import (
	"os"

	"github.com/rustyeddy/signalsim/cmd/signalsim/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
