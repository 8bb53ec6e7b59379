// Package main is the entry point for the dining philosophers server.
// It only handles dependency injection and server initialization.
// NO table logic belongs here.
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
