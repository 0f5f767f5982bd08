package main

import (
	"os"

	"github.com/leica1994/dubverse/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
