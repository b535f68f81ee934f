// Command nv is the notevault CLI: a single-user, local-first encrypted
// note store with version history and optional remote-copy sync.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
