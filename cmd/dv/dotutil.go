package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/km0e/dv/internal/dotutil"
	"github.com/km0e/dv/internal/dvctx"
)

var (
	schemaPath  string
	sourcePaths []string
	dotApps     []string
	dotOpts     []string
)

var dotutilCmd = &cobra.Command{
	Use:   "dotutil",
	Short: "reconcile dotfile apps against a schema/source catalog pair",
}

var dotutilSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "copy each --app from its source catalog onto the registered user",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildContext(cmd.Context())
		if err != nil {
			return err
		}
		if err := loadCatalogs(c); err != nil {
			return err
		}
		apps, err := buildApps()
		if err != nil {
			return err
		}
		return c.DotSync(cmd.Context(), "this", apps)
	},
}

var dotutilUploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "copy each --app from the registered user back into its source catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildContext(cmd.Context())
		if err != nil {
			return err
		}
		if err := loadCatalogs(c); err != nil {
			return err
		}
		apps, err := buildApps()
		if err != nil {
			return err
		}
		return c.DotUpload(cmd.Context(), "this", apps)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{dotutilSyncCmd, dotutilUploadCmd} {
		cmd.Flags().StringVar(&schemaPath, "schema", "", "path to the target-side TOML schema catalog")
		cmd.Flags().StringArrayVar(&sourcePaths, "source", nil, "path=root of a source-side TOML catalog (repeatable)")
		cmd.Flags().StringArrayVar(&dotApps, "app", nil, "app name to reconcile (repeatable); --opt applies to all")
		cmd.Flags().StringSliceVar(&dotOpts, "opt", nil, "policy bits applied to every --app, see `dv sync --opt`")
	}
	dotutilCmd.AddCommand(dotutilSyncCmd, dotutilUploadCmd)
}

func loadCatalogs(c *dvctx.Context) error {
	du := c.Dotutil()
	if schemaPath != "" {
		content, err := os.ReadFile(schemaPath)
		if err != nil {
			return err
		}
		schema, err := dotutil.LoadSchema(string(content))
		if err != nil {
			return err
		}
		du.AddSchema(schema)
	}
	u, err := c.GetUser("this")
	if err != nil {
		return err
	}
	for _, spec := range sourcePaths {
		path, root, _ := strings.Cut(spec, "=")
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		source, err := dotutil.LoadSource(string(content), u.Facade, root)
		if err != nil {
			return err
		}
		du.AddSource(source)
	}
	return nil
}

func buildApps() ([]dotutil.App, error) {
	opts, err := parseOpts(dotOpts)
	if err != nil {
		return nil, err
	}
	apps := make([]dotutil.App, 0, len(dotApps))
	for _, name := range dotApps {
		apps = append(apps, dotutil.App{Name: name, Opts: opts})
	}
	return apps, nil
}
