package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/km0e/dv/internal/dverr"
	"github.com/km0e/dv/internal/sync"
)

var syncOpts []string

var syncCmd = &cobra.Command{
	Use:   "sync <src> <dst>",
	Short: "reconcile dst against src through the sync engine",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildContext(cmd.Context())
		if err != nil {
			return err
		}
		u, err := c.GetUser("this")
		if err != nil {
			return err
		}

		opts, err := parseOpts(syncOpts)
		if err != nil {
			return err
		}

		eng := &sync.Engine{Src: u.Facade, Dst: u.Facade, DstUID: "this", DB: c.DB, Prompter: c.Interactor}
		entries, err := eng.Scan(cmd.Context(), args[0], args[1], opts)
		if err != nil {
			return err
		}
		if c.DryRun {
			return nil
		}
		return eng.Execute(cmd.Context(), entries)
	},
}

func init() {
	syncCmd.Flags().StringSliceVar(&syncOpts, "opt", nil, "comma-separated policy bits: overwrite,update,delete-dst,delete-src,upload,download")
}

var optNames = map[string]sync.Opt{
	"overwrite":  sync.Overwrite,
	"update":     sync.Update,
	"delete-dst": sync.DeleteDst,
	"delete-src": sync.DeleteSrc,
	"upload":     sync.Upload,
	"download":   sync.Download,
}

func parseOpts(names []string) ([]sync.Opt, error) {
	opts := make([]sync.Opt, 0, len(names))
	for _, n := range names {
		opt, ok := optNames[strings.TrimSpace(n)]
		if !ok {
			return nil, dverr.New(dverr.Unknown, "unrecognized --opt value: "+n)
		}
		opts = append(opts, opt)
	}
	return opts, nil
}
