// Package dvcfg binds the handful of process-level settings cmd/dv needs
// before it can build a dvctx.Context: where to find the user's SSH config,
// where the download cache and KV database live, and whether to run in
// dry-run mode. Flags are bound with github.com/spf13/pflag, the same
// library rclone's own cmd package declares in go.mod for exactly this job
// (cobra embeds a pflag.FlagSet per command), rather than stdlib flag.
package dvcfg

import (
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
)

// Config holds the flags every dv subcommand consults (spec §1's "out of
// scope" top-level argument surface is the subcommand-specific flags below
// this; these four are the shared ambient settings).
type Config struct {
	SSHConfig string
	CacheDir  string
	DBPath    string
	DryRun    bool
}

// defaultDir returns ~/.dv, falling back to ".dv" if the home directory
// can't be resolved (e.g. no HOME set in a minimal container).
func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dv"
	}
	return filepath.Join(home, ".dv")
}

// defaultSSHConfig returns ~/.ssh/config, the standard OpenSSH location
// internal/sshconfig.Parse expects.
func defaultSSHConfig() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ssh", "config")
}

// New returns a Config with defaults filled in, before flag registration.
func New() *Config {
	dir := defaultDir()
	return &Config{
		SSHConfig: defaultSSHConfig(),
		CacheDir:  filepath.Join(dir, "cache"),
		DBPath:    filepath.Join(dir, "dv.db"),
	}
}

// AddFlags registers c's fields onto flags, matching rclone's cmd package
// pattern of binding config fields directly onto a *pflag.FlagSet (e.g.
// cmd.Root.PersistentFlags()) rather than a separate parse step. Intended
// to be called once on a cobra command's PersistentFlags().
func (c *Config) AddFlags(flags *pflag.FlagSet) {
	flags.StringVar(&c.SSHConfig, "ssh-config", c.SSHConfig, "path to the SSH client config file")
	flags.StringVar(&c.CacheDir, "cache-dir", c.CacheDir, "directory for downloaded files and their cache metadata")
	flags.StringVar(&c.DBPath, "db", c.DBPath, "path to the sqlite state database")
	flags.BoolVar(&c.DryRun, "dry-run", c.DryRun, "report actions without performing them")
}

// EnsureDirs creates CacheDir and DBPath's parent directory if missing, so
// callers can open the sqlite file and cache dir unconditionally afterward.
func (c *Config) EnsureDirs() error {
	if c.CacheDir != "" {
		if err := os.MkdirAll(c.CacheDir, 0o755); err != nil {
			return err
		}
	}
	if dir := filepath.Dir(c.DBPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
