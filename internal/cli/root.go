// Package cli implements the coproc command-line interface using Cobra.
// The serve command runs the daemon; every other command talks to a
// running daemon over its HTTP API.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "coproc",
	Short: "coproc — verifiable computation task settlement",
	Long: `coproc runs the task lifecycle and settlement engine for a
zero-knowledge co-processor network: requesters escrow payment for
computations, operators submit proofs, and verified results settle
rewards.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
