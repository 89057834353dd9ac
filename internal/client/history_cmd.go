package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCmd(newClient func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "history <nickname>",
		Short: "Print a user's stored conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msgs, err := newClient().History(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(msgs) == 0 {
				fmt.Fprintln(out, "no messages")
				return nil
			}
			for _, m := range msgs {
				printMessage(out, m)
			}
			return nil
		},
	}
}
