package main

import (
	"fmt"
	"os"

	"github.com/Dicklesworthstone/devbar/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "devbar:", err)
		os.Exit(1)
	}
}
