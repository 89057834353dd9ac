package client

import (
	"fmt"
	"io"
	"time"

	"messenger/internal/models"

	"github.com/spf13/cobra"
)

func printMessage(w io.Writer, m models.Message) {
	if m.DeleteTimestamp > 0 {
		fmt.Fprintf(w, "%s -> %s: %s (expires %s)\n", m.Sender, m.Recipient, m.Content,
			time.Unix(m.DeleteTimestamp, 0).UTC().Format(time.RFC3339))
		return
	}
	fmt.Fprintf(w, "%s -> %s: %s\n", m.Sender, m.Recipient, m.Content)
}

func newListenCmd(newClient func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "listen <nickname>",
		Short: "Register a nickname and print incoming messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "listening as %s\n", args[0])
			return newClient().Listen(cmd.Context(), args[0], func(m models.Message) {
				printMessage(out, m)
			})
		},
	}
}
