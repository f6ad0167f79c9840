// Package dotutil is the dotfile source/schema catalog and sync
// orchestrator spec §4.8 describes: a "schema" TOML catalog (per-app,
// per-OS, alias -> target-side path candidates) and one or more "source"
// TOML catalogs (per-app, per-OS, alias -> single source-side path),
// reconciled through the sync engine with Os.Chain() fallback when the
// destination's exact OS has no entry.
//
// Grounded on dv-wrap/src/ops/dotutils/{schema,source}.rs
// (original_source) for the two-catalog shape and the "first existing
// source path, then first destination candidate that scans clean" sync
// flow. TOML decoding uses github.com/BurntSushi/toml, the catalog-parsing
// idiom the rest of the pack reaches for (apptainer-apptainer, k3s-io-k3s,
// canonical-lxd, purpleidea-mgmt all decode config this way).
package dotutil

import (
	"github.com/BurntSushi/toml"

	"github.com/km0e/dv/internal/dverr"
	"github.com/km0e/dv/internal/osclass"
)

// AppPaths is one app's alias -> path-candidates map for a single OS.
type AppPaths struct {
	Paths map[string][]string
}

// rawSchema is the TOML shape on disk: os keys are plain strings
// ("linux", "linux/alpine", ...), parsed into osclass.Os by LoadSchema.
type rawSchema struct {
	Name   string                          `toml:"name"`
	Schema map[string]map[string]AppPaths `toml:"schema"`
}

// Schema is a parsed target-side catalog: per app, per OS, alias ->
// candidate paths (spec §6's "schema" TOML shape).
type Schema struct {
	Name   string
	Apps   map[string]map[osclass.Os]AppPaths
}

// LoadSchema parses a schema TOML document (spec §6).
func LoadSchema(content string) (*Schema, error) {
	var raw rawSchema
	if _, err := toml.Decode(content, &raw); err != nil {
		return nil, dverr.Wrap(dverr.Toml, "decode schema catalog", err)
	}
	s := &Schema{Name: raw.Name, Apps: make(map[string]map[osclass.Os]AppPaths, len(raw.Schema))}
	for app, byOS := range raw.Schema {
		parsed := make(map[osclass.Os]AppPaths, len(byOS))
		for osKey, paths := range byOS {
			parsed[osclass.Parse(osKey)] = paths
		}
		s.Apps[app] = parsed
	}
	return s, nil
}

// SearchCompatible finds app's path candidates for target, falling back
// through target.Chain() (spec §4.8: "unknown OS falls back along
// Os::next_compatible chain").
func (s *Schema) SearchCompatible(app string, target osclass.Os) (AppPaths, bool) {
	byOS, ok := s.Apps[app]
	if !ok {
		return AppPaths{}, false
	}
	for _, candidate := range target.Chain() {
		if paths, ok := byOS[candidate]; ok {
			return paths, true
		}
	}
	return AppPaths{}, false
}
