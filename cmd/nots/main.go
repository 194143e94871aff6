package main

import (
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"nots/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
