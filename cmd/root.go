package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"EchoFM/server"
)

var rootCmd = &cobra.Command{
	Use:   "echofm",
	Short: "EchoFM is a community audio sharing service.",
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
