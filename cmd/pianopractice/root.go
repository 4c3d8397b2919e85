package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd builds the cobra command tree. The teacher's go.mod lists
// cobra but its own main.go parses flags directly with the stdlib flag
// package; here cobra actually drives the CLI.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pianopractice",
		Short: "Real-time pitch-aware piano practice companion",
		Long: "pianopractice runs the pitch detector, confirmation engine, and " +
			"score followers against a WAV fixture or a synthetic tone stream.",
	}

	root.AddCommand(newListenCmd())
	root.AddCommand(newBenchCmd())
	return root
}
