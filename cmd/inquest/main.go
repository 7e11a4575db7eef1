package main

import (
	"os"

	"inquest/cmd/inquest/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
