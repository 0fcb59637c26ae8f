package main

import (
	"github.com/spf13/cobra"
)

// RootCmd is the main command for the quicbridged binary, grounded on
// distribution-distribution's registry.RootCmd: a bare root command
// whose only job is to host subcommands and print usage when called
// without one.
var RootCmd = &cobra.Command{
	Use:   "quicbridged",
	Short: "quicbridged runs a QUIC engine listener",
	Long:  "quicbridged runs a QUIC engine listener in front of an HTTP framing mux.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Usage()
	},
}

func init() {
	RootCmd.AddCommand(ServeCmd)
}
