package cmd

import (
	"github.com/spf13/cobra"

	"EchoFM/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the EchoFM server",
	Long:  `Start the EchoFM HTTP server: upload intake, moderation API and the streaming endpoint.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
