// Command dv is a thin CLI exerciser over internal/dvctx: one subcommand
// per Context operation, enough to drive every package from a terminal
// without constituting a full configuration-management CLI (spec.md §1's
// Non-goals explicitly leave the full argument surface out of scope).
//
// Grounded on rclone's cmd/cmd.go + cmd/*/*.go split (one cobra.Command per
// verb, root command owning shared persistent flags) via spf13/cobra, the
// CLI library rclone itself depends on.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/km0e/dv/internal/dvcfg"
	"github.com/km0e/dv/internal/dvctx"
	"github.com/km0e/dv/internal/interactor"
	"github.com/km0e/dv/internal/kv"
	"github.com/km0e/dv/internal/sshconfig"
	"github.com/km0e/dv/internal/user/local"
	"github.com/km0e/dv/internal/user/sshuser"
	"github.com/km0e/dv/internal/varpath"
)

var cfg = dvcfg.New()

// sshAlias, when non-empty, dials that Host block from --ssh-config
// instead of registering the local backend as "this".
var sshAlias string

var rootCmd = &cobra.Command{
	Use:           "dv",
	Short:         "dv drives file sync, package install, and service management across local and SSH-reachable hosts",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&sshAlias, "ssh-alias", "", "SSH config Host alias to operate on instead of the local machine")
	cfg.AddFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(syncCmd, execCmd, pmCmd, svcCmd, dotutilCmd, onceCmd, refreshCmd, dlCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildContext opens the configured database and registers a single user
// named "this": either the local machine or, when --ssh-alias is set, a
// dialed SSH backend. Every subcommand calls this once in its RunE.
func buildContext(ctx context.Context) (*dvctx.Context, error) {
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}
	db, err := kv.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	it := interactor.New()
	c := dvctx.New(db, it, cfg.CacheDir, cfg.DryRun)

	vars := varpath.Vars{"os": currentOS()}
	if sshAlias == "" {
		if _, err := c.AddUser("this", local.New(), vars, true); err != nil {
			return nil, err
		}
		return c, nil
	}

	f, err := os.Open(cfg.SSHConfig)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sshCfg, err := sshconfig.Parse(f)
	if err != nil {
		return nil, err
	}
	backend, err := sshuser.Dial(ctx, sshCfg, sshAlias, os.Getenv("DV_SSH_PASSWORD"))
	if err != nil {
		return nil, err
	}
	if _, err := c.AddUser("this", backend, vars, true); err != nil {
		return nil, err
	}
	return c, nil
}
