package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// set through `-ldflags "-X main.version=... -X main.commit=..."`.
var (
	version = "dev"
	commit  = "dev"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the version of the exporter",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "bitcoind-exporter %s (%s)\n",
			version, commit)
	},
}
