// Package main is the entry point for the defectbench CLI.
package main

import "defectbench.dev/pkg/defectbench/cmd"

func main() {
	cmd.Execute()
}
