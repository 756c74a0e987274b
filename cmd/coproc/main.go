// Package main is the single-binary entrypoint for coproc.
package main

import "github.com/coproc-network/coproc/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
