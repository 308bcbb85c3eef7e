package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "test-notify",
		Short: "Ask the daemon to publish a test ntfy message",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			result, err := client.testNotification(cmd.Context())
			if err != nil {
				return err
			}
			return writeOutput(cmd, asJSON, result, func() string {
				marker := "skipped"
				if result.Sent {
					marker = "sent"
				}
				return fmt.Sprintf("[%s] %s", marker, result.Message)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the daemon response as JSON")
	return cmd
}
