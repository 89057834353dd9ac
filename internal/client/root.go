package client

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8080"

// NewRootCmd builds the messenger CLI. The server defaults to
// $MESSENGER_SERVER, then localhost:8080.
func NewRootCmd() *cobra.Command {
	var server string
	root := &cobra.Command{
		Use:           "messenger",
		Short:         "Direct messaging client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	def := os.Getenv("MESSENGER_SERVER")
	if def == "" {
		def = defaultServer
	}
	root.PersistentFlags().StringVar(&server, "server", def, "messenger server base URL")

	newClient := func() *Client { return New(server) }
	root.AddCommand(newSendCmd(newClient), newListenCmd(newClient), newHistoryCmd(newClient))
	return root
}

// Execute runs the CLI until ctx is cancelled or the command returns.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
