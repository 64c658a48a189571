package main

import (
	"os"

	"github.com/schemalens/schemalens/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
