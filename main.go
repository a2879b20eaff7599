package main

import (
	"fmt"
	"os"

	_ "github.com/projectqai/brovakt/logging"

	"github.com/projectqai/brovakt/cmd"
	_ "github.com/projectqai/brovakt/cmd/run"
	_ "github.com/projectqai/brovakt/version"
)

func main() {
	if err := cmd.CMD.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
