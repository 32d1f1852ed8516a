package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	cmd := newRoot().Command()
	if err := cmd.Execute(); err != nil {
		var usage usageError
		if errors.As(err, &usage) {
			fmt.Fprintln(os.Stderr, cmd.UsageString())
		}
		os.Exit(1)
	}
}
