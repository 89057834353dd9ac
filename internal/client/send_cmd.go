package client

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"messenger/internal/models"

	"github.com/spf13/cobra"
)

func newSendCmd(newClient func() *Client) *cobra.Command {
	var (
		from     string
		to       string
		expireIn time.Duration
	)
	cmd := &cobra.Command{
		Use:   "send --from <nickname> --to <nickname> <text...>",
		Short: "Send a direct message to a connected user",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if from == "" || to == "" {
				return errors.New("--from and --to are required")
			}
			if expireIn < 0 {
				return errors.New("--expire-in must not be negative")
			}
			m := models.Message{Sender: from, Recipient: to, Content: strings.Join(args, " ")}
			if expireIn > 0 {
				m.DeleteTimestamp = time.Now().Add(expireIn).Unix()
			}
			if err := newClient().Send(cmd.Context(), m); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent to %s\n", to)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "sender nickname")
	cmd.Flags().StringVar(&to, "to", "", "recipient nickname")
	cmd.Flags().DurationVar(&expireIn, "expire-in", 0, "expire both conversation logs after this duration")
	return cmd
}
