package main

import (
	"os"

	"github.com/anirudhms/vani/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
