package main

import (
	"os"

	"samor/cmd/samor/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
