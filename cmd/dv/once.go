package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "report or record whether a (id, key) guard has fired",
}

var onceTestCmd = &cobra.Command{
	Use:   "test <id> <key>",
	Short: "print whether the guard has not yet fired",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildContext(cmd.Context())
		if err != nil {
			return err
		}
		done, err := c.Once(args[0], args[1]).Test(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(done)
		return nil
	},
}

var onceExecuteCmd = &cobra.Command{
	Use:   "execute <id> <key>",
	Short: "record that the guard has fired",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildContext(cmd.Context())
		if err != nil {
			return err
		}
		return c.Once(args[0], args[1]).Execute(cmd.Context())
	},
}

func init() {
	onceCmd.AddCommand(onceTestCmd, onceExecuteCmd)
}
