// Command gridio inspects, checks and subsets grid files.
package main

import (
	"fmt"
	"os"

	"github.com/batchatco/go-native-gridio/cmd/gridio/cmd"
)

func main() {
	if err := cmd.NewRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
