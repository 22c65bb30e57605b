//go:build !linux

package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/flowforge/cgnat/pkg/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the NAT dataplane (Linux only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return errors.New("cgnatd: the AF_PACKET dataplane is only supported on Linux")
	},
}

func init() {
	config.BindFlags(runCmd, rootViper)
	rootCmd.AddCommand(runCmd)
}
