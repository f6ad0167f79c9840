package main

import "github.com/spf13/cobra"

var pmConfirm bool

var pmCmd = &cobra.Command{
	Use:   "pm",
	Short: "package manager operations",
}

var pmInstallCmd = &cobra.Command{
	Use:   "install <package...>",
	Short: "install packages through the device's detected package manager",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildContext(cmd.Context())
		if err != nil {
			return err
		}
		return c.PmInstall(cmd.Context(), "this", args, pmConfirm)
	},
}

func init() {
	pmInstallCmd.Flags().BoolVar(&pmConfirm, "confirm", false, "pass the package manager's auto-confirm flag")
	pmCmd.AddCommand(pmInstallCmd)
}
