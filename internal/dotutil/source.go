package dotutil

import (
	"context"

	"github.com/BurntSushi/toml"

	"github.com/km0e/dv/internal/dverr"
	"github.com/km0e/dv/internal/facade"
	"github.com/km0e/dv/internal/osclass"
	"github.com/km0e/dv/internal/sync"
)

// AppSourcePaths is one app's alias -> single source-relative path, for one
// OS — the source catalog's shape is the schema catalog's mirror image:
// exactly one path per alias instead of a candidate list.
type AppSourcePaths struct {
	Paths map[string]string `toml:"paths"`
}

type rawSource struct {
	Name   string                            `toml:"name"`
	Schema map[string]map[string]AppSourcePaths `toml:"schema"`
}

// Source is one source root: a facade rooted at Root on some user, plus a
// per-app, per-OS catalog of single paths relative to that root.
type Source struct {
	Facade *facade.Facade
	Root   string
	Name   string
	Apps   map[string]map[osclass.Os]AppSourcePaths
}

// LoadSource parses a source TOML document (spec §6's "source" shape) and
// binds it to facade/root.
func LoadSource(content string, f *facade.Facade, root string) (*Source, error) {
	var raw rawSource
	if _, err := toml.Decode(content, &raw); err != nil {
		return nil, dverr.Wrap(dverr.Toml, "decode source catalog", err)
	}
	src := &Source{Facade: f, Root: root, Name: raw.Name, Apps: make(map[string]map[osclass.Os]AppSourcePaths, len(raw.Schema))}
	for app, byOS := range raw.Schema {
		parsed := make(map[osclass.Os]AppSourcePaths, len(byOS))
		for osKey, paths := range byOS {
			parsed[osclass.Parse(osKey)] = paths
		}
		src.Apps[app] = parsed
	}
	return src, nil
}

// searchCompatible mirrors Schema.SearchCompatible for the source side.
func (s *Source) searchCompatible(app string, target osclass.Os) (AppSourcePaths, bool) {
	byOS, ok := s.Apps[app]
	if !ok {
		return AppSourcePaths{}, false
	}
	for _, candidate := range target.Chain() {
		if paths, ok := byOS[candidate]; ok {
			return paths, true
		}
	}
	return AppSourcePaths{}, false
}

// Engine is the capability Sync/Upload need to scan one path pair into
// entries — satisfied by *sync.Engine, with Src/Dst swapped by the caller
// depending on direction.
type Engine interface {
	Scan(ctx context.Context, sp, dp string, opts []sync.Opt) ([]sync.Entry, error)
}
