package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var dlTTLSeconds int64

var dlCmd = &cobra.Command{
	Use:   "dl <url>",
	Short: "download url through the conditional-GET cache and print the cached file path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildContext(cmd.Context())
		if err != nil {
			return err
		}
		var ttl *int64
		if dlTTLSeconds > 0 {
			ttl = &dlTTLSeconds
		}
		path, err := c.Dl(cmd.Context(), args[0], ttl)
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

func init() {
	dlCmd.Flags().Int64Var(&dlTTLSeconds, "ttl", 0, "skip the network entirely if the cached file is younger than this many seconds")
}
