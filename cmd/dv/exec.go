package main

import (
	"github.com/spf13/cobra"

	"github.com/km0e/dv/internal/user"
)

var execTTY bool

var execCmd = &cobra.Command{
	Use:   "exec -- <program> [args...]",
	Short: "run a command on the registered user, optionally through an interactive pty",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildContext(cmd.Context())
		if err != nil {
			return err
		}
		script := user.SplitScript(args[0], args[1:]...)
		return c.Exec(cmd.Context(), "this", script, execTTY)
	},
}

func init() {
	execCmd.Flags().BoolVar(&execTTY, "tty", false, "bridge an interactive pty instead of capturing output")
}
