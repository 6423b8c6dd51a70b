package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// set at build time with -ldflags "-X main.version=..."
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "soapd",
		Short: "SOAP service host",
		Long: `soapd hosts SOAP 1.1 and 1.2 services over HTTP.

Endpoints, encoders, authorization and rate limits are read from a YAML
configuration file. The built-in calculator service is available to
endpoints as service "calculator".`,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "soapd %s (%s)\n", version, runtime.Version())
		},
	}
}
