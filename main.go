package main

import (
	"os"

	"github.com/souchan25/virtualHealthAssistant/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
