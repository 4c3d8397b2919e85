// Command pianopractice runs the real-time pitch-aware practice pipeline
// against a WAV fixture or a synthetic tone, either printing events to
// stdout or driving the terminal dashboard.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
