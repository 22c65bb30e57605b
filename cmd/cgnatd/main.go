package main

import (
	"fmt"
	"os"

	"github.com/flowforge/cgnat/pkg/config"
)

func main() {
	prefix, rest := config.SplitDriverPrefix(os.Args[1:])
	if len(prefix) > 0 {
		// Exported unparsed as CGNAT_DRIVER_PREFIX; nothing in this
		// module reads it back.
		os.Setenv("CGNAT_DRIVER_PREFIX", joinArgs(prefix))
	}

	rootCmd.SetArgs(rest)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func joinArgs(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}
