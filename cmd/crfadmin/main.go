package main

import (
	"os"

	"crf-system/cmd/crfadmin/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
