package main

import (
	"os"

	"github.com/shotfleet/shotfleet/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
