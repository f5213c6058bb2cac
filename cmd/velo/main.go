package main

import (
	"os"

	"github.com/velocigo/velo/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
