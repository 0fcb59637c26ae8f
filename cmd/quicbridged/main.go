// Command quicbridged is the process-level entry point for the QUIC
// engine ("cmd/quicbridged"), grounded on
// distribution-distribution's registry command (RootCmd/ServeCmd) for
// its cobra/pflag CLI shape.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
