// Package main provides the mistfall operational CLI: version, schema
// inspection, and offline schema-document validation. It never writes to a
// store on a host's behalf — that's the library's job, not the CLI's.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
