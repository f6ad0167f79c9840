// Package local implements the User backend over the host OS: file I/O via
// os, process launch via os/exec, and interactive sessions via
// internal/ptyio. Grounded on backend/local/local.go's stat/glob/exec
// idiom, generalized from rclone's single-root Fs to dv's path-per-call
// Backend contract.
package local

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/km0e/dv/internal/dvlog"
	"github.com/km0e/dv/internal/dverr"
	"github.com/km0e/dv/internal/ptyio"
	"github.com/km0e/dv/internal/user"
)

// maxParentCreateRetries bounds the auto-create-parent-and-retry loop so a
// permission error on mkdir can't spin forever (spec §4.2).
const maxParentCreateRetries = 8

// Backend is the local-machine implementation of user.Backend.
type Backend struct{}

// New returns a local Backend. There is no per-instance state: every call
// takes an already-normalized path.
func New() *Backend { return &Backend{} }

var _ user.Backend = (*Backend)(nil)

// FileAttributes stats path. A missing path is reported as (path, nil, nil)
// per invariant 1 — never as an error.
func (b *Backend) FileAttributes(ctx context.Context, path string) (string, *user.FileAttributes, error) {
	info, err := os.Lstat(path)
	if os.IsNotExist(err) {
		return path, nil, nil
	}
	if err != nil {
		return path, nil, dverr.Wrap(dverr.IO, "stat "+path, err)
	}
	return path, attrsFromInfo(info), nil
}

func attrsFromInfo(info fs.FileInfo) *user.FileAttributes {
	size := info.Size()
	mtime := info.ModTime().Unix()
	// Permissions carries the full os.FileMode bits (type + perm), not just
	// Perm(), so callers like the facade's directory check can recover
	// fs.ModeDir without a second stat.
	mode := uint32(info.Mode())
	a := &user.FileAttributes{Size: &size, MTime: &mtime, Permissions: &mode}
	if sys, ok := platformOwnerAttrs(info); ok {
		a.UID, a.GID = sys.UID, sys.GID
	}
	return a
}

// GlobFileMeta walks dir recursively, returning files only. Directories are
// pruned from the result (but still descended into); symlinks and special
// files are logged and skipped, matching spec §4.2's "glob_file_meta" note.
func (b *Backend) GlobFileMeta(ctx context.Context, dir string) ([]user.Metadata, error) {
	var out []user.Metadata
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return dverr.Wrap(dverr.IO, "opendir "+dir, err)
			}
			dvlog.Errorf(path, "skip on stat error: %v", err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			dvlog.Errorf(path, "skip on stat error: %v", err)
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 || !info.Mode().IsRegular() {
			dvlog.Debugf(path, "skipping non-regular file")
			return nil
		}
		out = append(out, user.Metadata{Path: path, Attr: *attrsFromInfo(info)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Open returns a bidirectional stream over path. With Create set, a missing
// parent directory is created and the open retried, bounded by
// maxParentCreateRetries.
func (b *Backend) Open(ctx context.Context, path string, flags user.OpenFlags, attrs user.FileAttributes) (user.FileHandle, error) {
	osFlags := toOSFlags(flags)
	perm := os.FileMode(0o644)
	if attrs.Permissions != nil {
		perm = os.FileMode(*attrs.Permissions)
	}

	var f *os.File
	var err error
	for attempt := 0; attempt <= maxParentCreateRetries; attempt++ {
		f, err = os.OpenFile(path, osFlags, perm)
		if err == nil {
			return f, nil
		}
		if !os.IsNotExist(err) || !flags.Has(user.Create) {
			return nil, dverr.Wrap(dverr.IO, "open "+path, err)
		}
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, dverr.Wrap(dverr.IO, "create parent of "+path, mkErr)
		}
	}
	return nil, dverr.Wrap(dverr.IO, "open "+path+" (parent creation exhausted)", err)
}

func toOSFlags(flags user.OpenFlags) int {
	var f int
	switch {
	case flags.Has(user.Read) && flags.Has(user.Write):
		f = os.O_RDWR
	case flags.Has(user.Write):
		f = os.O_WRONLY
	default:
		f = os.O_RDONLY
	}
	if flags.Has(user.Append) {
		f |= os.O_APPEND
	}
	if flags.Has(user.Create) {
		f |= os.O_CREATE
	}
	if flags.Has(user.Truncate) {
		f |= os.O_TRUNC
	}
	if flags.Has(user.Exclude) {
		f |= os.O_EXCL
	}
	return f
}

// Exec runs script non-interactively, capturing stdout/stderr to memory.
func (b *Backend) Exec(ctx context.Context, script user.Script) (user.Output, error) {
	cmd, cleanup, err := resolveCmd(ctx, script)
	if err != nil {
		return user.Output{}, err
	}
	defer cleanup()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Stdin = nil

	runErr := cmd.Run()
	code, err := exitCodeOf(runErr)
	if err != nil {
		return user.Output{}, err
	}
	return user.Output{Code: code, Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, nil
}

// Pty runs script interactively via a locally allocated pty.
func (b *Backend) Pty(ctx context.Context, script user.Script, size ptyio.WindowSize) (*ptyio.Pty, error) {
	cmd, cleanup, err := resolveCmd(ctx, script)
	if err != nil {
		return nil, err
	}
	pty, err := ptyio.OpenLocal(ctx, cmd, size)
	if err != nil {
		cleanup()
		return nil, err
	}
	return pty, nil
}

// Rm deletes path. A missing file is success, matching spec's "idempotent"
// requirement.
func (b *Backend) Rm(ctx context.Context, path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return dverr.Wrap(dverr.IO, "rm "+path, err)
	}
	return nil
}

func exitCodeOf(runErr error) (int, error) {
	if runErr == nil {
		return 0, nil
	}
	if ee, ok := runErr.(*exec.ExitError); ok {
		return mapExitCode(ee), nil
	}
	return 1, dverr.Wrap(dverr.IO, "exec", runErr)
}

// resolveCmd turns a Script into a runnable *exec.Cmd plus a cleanup func
// (a no-op except for ScriptFile, which must delete its temp file on the
// non-interactive Exec path — the interactive Pty path relies on the
// script's own self-delete trailer instead, since Pty has no synchronous
// point after the process exits).
func resolveCmd(ctx context.Context, script user.Script) (*exec.Cmd, func(), error) {
	noop := func() {}
	switch script.Kind {
	case user.Split:
		return exec.CommandContext(ctx, script.Program, script.Args...), noop, nil
	case user.Whole:
		return shellCommand(ctx, script.Line), noop, nil
	case user.ScriptFile:
		path, err := writeTempScript(script.Executor, script.Input)
		if err != nil {
			return nil, noop, err
		}
		cmd := interpreterCommand(ctx, script.Executor, path)
		return cmd, func() { _ = os.Remove(path) }, nil
	default:
		return nil, noop, dverr.New(dverr.Unsupported, "unknown script kind")
	}
}

func shellCommand(ctx context.Context, line string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", line)
	}
	return exec.CommandContext(ctx, "/bin/sh", "-c", line)
}

func interpreterCommand(ctx context.Context, executor user.Executor, path string) *exec.Cmd {
	if executor == user.Powershell {
		return exec.CommandContext(ctx, "powershell", "-NoProfile", "-File", path)
	}
	return exec.CommandContext(ctx, "/bin/sh", path)
}

// writeTempScript writes input plus the interpreter-appropriate self-delete
// trailer (spec §6) to a fresh file in the OS temp dir.
func writeTempScript(executor user.Executor, input string) (string, error) {
	pattern := "dv-*.sh"
	trailer := "\ntrap 'rm -f -- \"$0\"' EXIT;"
	if executor == user.Powershell {
		pattern = "dv-*.ps1"
		trailer = "\r\nRemove-Item $MyInvocation.MyCommand.Path"
	}
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", dverr.Wrap(dverr.IO, "create temp script", err)
	}
	defer f.Close()
	if _, err := io.WriteString(f, input+trailer); err != nil {
		return "", dverr.Wrap(dverr.IO, "write temp script", err)
	}
	if err := f.Chmod(0o700); err != nil {
		return "", dverr.Wrap(dverr.IO, "chmod temp script", err)
	}
	return f.Name(), nil
}
