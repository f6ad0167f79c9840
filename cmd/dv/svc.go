package main

import "github.com/spf13/cobra"

var svcCmd = &cobra.Command{
	Use:   "svc",
	Short: "service manager operations",
}

var svcEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "enable a service at boot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildContext(cmd.Context())
		if err != nil {
			return err
		}
		return c.SvcEnable(cmd.Context(), "this", args[0])
	},
}

var svcRestartCmd = &cobra.Command{
	Use:   "restart <name>",
	Short: "restart a service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildContext(cmd.Context())
		if err != nil {
			return err
		}
		return c.SvcRestart(cmd.Context(), "this", args[0])
	},
}

func init() {
	svcCmd.AddCommand(svcEnableCmd, svcRestartCmd)
}
