// Package facade wraps a user.Backend with the normalization pipeline
// (spec §4.3): every path crosses this boundary through varpath.Normalize
// exactly once, so backends themselves only ever see already-canonical
// paths. Grounded on rclone's fs.Fs/fs.Object split — a facade over a
// backend that canonicalizes once at construction/call time, not per
// internal step.
package facade

import (
	"context"
	"sort"

	"github.com/km0e/dv/internal/dverr"
	"github.com/km0e/dv/internal/ptyio"
	"github.com/km0e/dv/internal/user"
	"github.com/km0e/dv/internal/varpath"
)

// Facade is the typed, normalized view of a user.Backend spec §4.3 defines.
type Facade struct {
	Backend user.Backend
	Vars    varpath.Vars
}

// New wraps backend with vars for path normalization.
func New(backend user.Backend, vars varpath.Vars) *Facade {
	return &Facade{Backend: backend, Vars: vars}
}

func (f *Facade) normalize(path string) (string, error) {
	return varpath.Normalize(path, f.Vars)
}

// Exist reports whether path exists (invariant 1 of spec §3, universal
// property 1 of spec §8: exist(p) <-> file_attributes(p).1.is_some()).
func (f *Facade) Exist(ctx context.Context, path string) (bool, error) {
	_, attrs, err := f.FileAttributes(ctx, path)
	if err != nil {
		return false, err
	}
	return attrs != nil, nil
}

// FileAttributes normalizes path once, then delegates to the backend.
func (f *Facade) FileAttributes(ctx context.Context, path string) (string, *user.FileAttributes, error) {
	norm, err := f.normalize(path)
	if err != nil {
		return "", nil, err
	}
	return f.Backend.FileAttributes(ctx, norm)
}

// GetMtime returns path's mtime, nil if it doesn't exist, or an error if it
// exists but carries no mtime (the facade treats that as malformed
// metadata, not a missing path).
func (f *Facade) GetMtime(ctx context.Context, path string) (*int64, error) {
	_, attrs, err := f.FileAttributes(ctx, path)
	if err != nil {
		return nil, err
	}
	if attrs == nil {
		return nil, nil
	}
	if attrs.MTime == nil {
		return nil, dverr.New(dverr.Unknown, "file exists with no mtime: "+path)
	}
	return attrs.MTime, nil
}

// CheckPath classifies path as a CheckInfo, failing with NotFound if
// missing.
func (f *Facade) CheckPath(ctx context.Context, path string) (user.CheckInfo, error) {
	canonical, attrs, err := f.FileAttributes(ctx, path)
	if err != nil {
		return user.CheckInfo{}, err
	}
	if attrs == nil {
		return user.CheckInfo{}, dverr.New(dverr.NotFound, path)
	}
	if attrs.IsDir() {
		files, err := f.glob(ctx, canonical)
		if err != nil {
			return user.CheckInfo{}, err
		}
		return user.CheckInfo{Kind: user.CheckDir, Path: canonical, Files: files}, nil
	}
	return user.CheckInfo{Kind: user.CheckFile, File: user.Metadata{Path: canonical, Attr: *attrs}}, nil
}

// CheckDir classifies path, failing unless it is a directory.
func (f *Facade) CheckDir(ctx context.Context, path string) (user.CheckInfo, error) {
	info, err := f.CheckPath(ctx, path)
	if err != nil {
		return user.CheckInfo{}, err
	}
	if info.Kind != user.CheckDir {
		return user.CheckInfo{}, dverr.New(dverr.MismatchedKinds, path+" is not a directory")
	}
	return info, nil
}

// Glob normalizes path once, then recursively walks it.
func (f *Facade) Glob(ctx context.Context, path string) ([]user.Metadata, error) {
	norm, err := f.normalize(path)
	if err != nil {
		return nil, err
	}
	return f.glob(ctx, norm)
}

func (f *Facade) glob(ctx context.Context, normalized string) ([]user.Metadata, error) {
	metas, err := f.Backend.GlobFileMeta(ctx, normalized)
	if err != nil {
		return nil, err
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Path < metas[j].Path })
	return metas, nil
}

// Rm normalizes path once, then deletes it (idempotent).
func (f *Facade) Rm(ctx context.Context, path string) error {
	norm, err := f.normalize(path)
	if err != nil {
		return err
	}
	return f.Backend.Rm(ctx, norm)
}

// Open normalizes path once, then opens it with default attributes.
func (f *Facade) Open(ctx context.Context, path string, flags user.OpenFlags) (user.FileHandle, error) {
	return f.OpenWithAttr(ctx, path, flags, user.FileAttributes{})
}

// OpenWithAttr normalizes path once, then opens it, applying attrs to a
// freshly created file.
func (f *Facade) OpenWithAttr(ctx context.Context, path string, flags user.OpenFlags, attrs user.FileAttributes) (user.FileHandle, error) {
	norm, err := f.normalize(path)
	if err != nil {
		return nil, err
	}
	return f.Backend.Open(ctx, norm, flags, attrs)
}

// Exec runs script non-interactively.
func (f *Facade) Exec(ctx context.Context, script user.Script) (user.Output, error) {
	return f.Backend.Exec(ctx, script)
}

// Pty runs script interactively.
func (f *Facade) Pty(ctx context.Context, script user.Script, size ptyio.WindowSize) (*ptyio.Pty, error) {
	return f.Backend.Pty(ctx, script, size)
}
