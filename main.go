// Package main is the entry point for the memoscope CLI.
package main

import "memoscope.dev/pkg/memoscope/cmd"

func main() {
	cmd.Execute()
}
