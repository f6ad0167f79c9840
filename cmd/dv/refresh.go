package main

import "github.com/spf13/cobra"

var refreshCmd = &cobra.Command{
	Use:   "refresh <id> <key>",
	Short: "clear a once guard so its next test reports true again",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildContext(cmd.Context())
		if err != nil {
			return err
		}
		return c.Refresh(cmd.Context(), args[0], args[1])
	},
}
