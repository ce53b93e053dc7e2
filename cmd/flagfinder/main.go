// Command flagfinder はFlagFinderのAPIサーバーを起動する。
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/flagfinder/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "flagfinder: %v\n", err)
		os.Exit(1)
	}
}
