package dotutil

import (
	"context"
	"path"

	"github.com/km0e/dv/internal/dverr"
	"github.com/km0e/dv/internal/facade"
	"github.com/km0e/dv/internal/kv"
	"github.com/km0e/dv/internal/osclass"
	"github.com/km0e/dv/internal/sync"
)

// App is one requested dotfile app sync: its catalog name plus the policy
// vector governing ambiguous pairs (DotConfig in the Rust original; its
// copy_action string is this Opts vector generalized to the typed form
// internal/sync already uses).
type App struct {
	Name string
	Opts []sync.Opt
}

// DotUtil holds the target-side schema (one active catalog, last one
// loaded wins — matching dv-wrap's add_schema overwriting self.schema) and
// any number of named source catalogs (dv-wrap's self.source map).
type DotUtil struct {
	Schema  *Schema
	Sources map[string]*Source
}

// New builds an empty DotUtil; callers register catalogs via AddSchema/AddSource.
func New() *DotUtil {
	return &DotUtil{Sources: map[string]*Source{}}
}

// AddSchema replaces the active target-side catalog.
func (d *DotUtil) AddSchema(s *Schema) { d.Schema = s }

// AddSource registers a source catalog under its own name.
func (d *DotUtil) AddSource(s *Source) { d.Sources[s.Name] = s }

// Sync reconciles each requested app from whichever registered source
// declares it (for targetOS) into dst, trying destination candidates in
// schema order until one scans and executes cleanly (spec §4.8: "pick the
// first source path that exists, then try each destination candidate in
// order").
func (d *DotUtil) Sync(ctx context.Context, dst *facade.Facade, dstUID string, db kv.DB, prompter sync.Prompter, targetOS osclass.Os, apps []App) error {
	for _, app := range apps {
		source, sourcePaths, ok := d.findSource(app.Name, targetOS)
		if !ok {
			return dverr.New(dverr.NotFound, "app "+app.Name+" not found in any source catalog")
		}
		schemaPaths, ok := d.Schema.SearchCompatible(app.Name, targetOS)
		if !ok {
			return dverr.New(dverr.NotFound, "app "+app.Name+" not found in schema catalog")
		}

		eng := &sync.Engine{Src: source.Facade, Dst: dst, DstUID: dstUID, DB: db, Prompter: prompter}
		for alias, srcRel := range sourcePaths.Paths {
			dstCandidates, ok := schemaPaths.Paths[alias]
			if !ok {
				continue
			}
			srcPath := path.Join(source.Root, srcRel)
			exists, err := source.Facade.Exist(ctx, srcPath)
			if err != nil {
				return err
			}
			if !exists {
				// Matches the original's asymmetric behavior: a missing
				// source alias stops this app's sync entirely rather than
				// skipping just that alias.
				break
			}
			if err := syncFirstCandidate(ctx, eng, srcPath, dstCandidates, app.Opts); err != nil {
				return dverr.Wrap(dverr.Unknown, "app "+app.Name+" alias "+alias, err)
			}
		}
	}
	return nil
}

// Upload is Sync's mirror: for each requested app, each schema alias names
// destination-side candidates to read from (on src), and the registered
// source catalog names the single canonical path to write into.
func (d *DotUtil) Upload(ctx context.Context, src *facade.Facade, srcUID string, db kv.DB, prompter sync.Prompter, targetOS osclass.Os, apps []App) error {
	for _, app := range apps {
		source, sourcePaths, ok := d.findSource(app.Name, targetOS)
		if !ok {
			return dverr.New(dverr.NotFound, "app "+app.Name+" not found in any source catalog")
		}
		schemaPaths, ok := d.Schema.SearchCompatible(app.Name, targetOS)
		if !ok {
			return dverr.New(dverr.NotFound, "app "+app.Name+" not found in schema catalog")
		}

		eng := &sync.Engine{Src: src, Dst: source.Facade, DstUID: srcUID, DB: db, Prompter: prompter}
		for alias, srcCandidates := range schemaPaths.Paths {
			dstRel, ok := sourcePaths.Paths[alias]
			if !ok {
				continue
			}
			dstPath := path.Join(source.Root, dstRel)
			if err := uploadFirstCandidate(ctx, eng, src, srcCandidates, dstPath, app.Opts); err != nil {
				return dverr.Wrap(dverr.Unknown, "app "+app.Name+" alias "+alias, err)
			}
		}
	}
	return nil
}

func (d *DotUtil) findSource(app string, targetOS osclass.Os) (*Source, AppSourcePaths, bool) {
	for _, source := range d.Sources {
		if paths, ok := source.searchCompatible(app, targetOS); ok {
			return source, paths, true
		}
	}
	return nil, AppSourcePaths{}, false
}

// syncFirstCandidate tries each dst candidate in order until one scans and
// executes without error (spec §4.8).
func syncFirstCandidate(ctx context.Context, eng *sync.Engine, srcPath string, dstCandidates []string, opts []sync.Opt) error {
	var lastErr error
	for _, dstPath := range dstCandidates {
		entries, err := eng.Scan(ctx, srcPath, dstPath, opts)
		if err != nil {
			lastErr = err
			continue
		}
		if err := eng.Execute(ctx, entries); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = dverr.New(dverr.NotFound, "no destination candidate for "+srcPath)
	}
	return lastErr
}

// uploadFirstCandidate tries each src candidate in order until one exists
// and scans/executes cleanly into dstPath.
func uploadFirstCandidate(ctx context.Context, eng *sync.Engine, src *facade.Facade, srcCandidates []string, dstPath string, opts []sync.Opt) error {
	var lastErr error
	for _, srcPath := range srcCandidates {
		exists, err := src.Exist(ctx, srcPath)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		entries, err := eng.Scan(ctx, srcPath, dstPath, opts)
		if err != nil {
			lastErr = err
			continue
		}
		if err := eng.Execute(ctx, entries); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = dverr.New(dverr.NotFound, "no source candidate for "+dstPath)
	}
	return lastErr
}
