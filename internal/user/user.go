// Package user defines the capability set every backend (local, SSH)
// implements: file attributes, directory walking, open/exec/pty, and
// deletion. The facade (internal/facade) normalizes paths once and
// delegates everything else straight through to a Backend.
package user

import (
	"context"
	"io"
	"io/fs"

	"github.com/km0e/dv/internal/ptyio"
)

// FileAttributes mirrors spec §3: every field optional; mtime is the only
// one the sync engine consults, expressed as seconds since epoch.
type FileAttributes struct {
	Size        *int64
	UID         *uint32
	GID         *uint32
	Permissions *uint32
	ATime       *int64
	MTime       *int64
}

// IsDir reports whether Permissions carries fs.ModeDir. Backends stash the
// full os.FileMode (type bits and all) here, not just Perm(), precisely so
// callers can tell a directory from a regular file without a second stat.
func (a FileAttributes) IsDir() bool {
	return a.Permissions != nil && fs.FileMode(*a.Permissions)&fs.ModeDir != 0
}

// Metadata is one entry in a directory glob.
type Metadata struct {
	Path string
	Attr FileAttributes
}

// CheckInfoKind tags the CheckInfo union.
type CheckInfoKind int

const (
	CheckDir CheckInfoKind = iota
	CheckFile
)

// CheckInfo is the tagged union spec §3 describes: Dir{path, files} or File(Metadata).
type CheckInfo struct {
	Kind  CheckInfoKind
	Path  string      // set when Kind == CheckDir
	Files []Metadata  // set when Kind == CheckDir
	File  Metadata    // set when Kind == CheckFile
}

// OpenFlags is the bitmask spec §3 defines for Backend.Open.
type OpenFlags uint8

const (
	Read OpenFlags = 1 << iota
	Write
	Append
	Create
	Truncate
	Exclude
)

// Has reports whether all bits in want are set in f.
func (f OpenFlags) Has(want OpenFlags) bool { return f&want == want }

// Output is the result of a non-interactive exec.
type Output struct {
	Code   int
	Stdout []byte
	Stderr []byte
}

// Executor selects the interpreter for a Script of kind ScriptFile.
type Executor int

const (
	Sh Executor = iota
	Powershell
)

// ScriptKind tags the Script union (spec §4.2): Whole, Split (argv), or
// ScriptFile (write a temp file, execute it, self-delete).
type ScriptKind int

const (
	Whole ScriptKind = iota
	Split
	ScriptFile
)

// Script is the command-to-run value every exec/pty call takes.
type Script struct {
	Kind ScriptKind

	// Whole
	Line string

	// Split
	Program string
	Args    []string

	// ScriptFile
	Executor Executor
	Input    string
}

// WholeScript builds a shell-parsed (local) / raw (SSH) command line.
func WholeScript(line string) Script { return Script{Kind: Whole, Line: line} }

// SplitScript builds an argv-form command.
func SplitScript(program string, args ...string) Script {
	return Script{Kind: Split, Program: program, Args: args}
}

// ScriptInput builds a temp-file script executed by the given interpreter.
func ScriptInput(executor Executor, input string) Script {
	return Script{Kind: ScriptFile, Executor: executor, Input: input}
}

// FileHandle is the bidirectional async byte stream Backend.Open returns.
type FileHandle interface {
	io.Reader
	io.Writer
	io.Closer
}

// Backend is the capability set every User concretely implements.
// Invariant 1 (spec §3): FileAttributes never errors to say "missing" —
// it returns (canonicalPath, nil attrs) instead.
type Backend interface {
	// FileAttributes stats path, returning its own canonicalized form. A
	// nil *FileAttributes (not an error) means the path doesn't exist.
	FileAttributes(ctx context.Context, path string) (canonicalPath string, attrs *FileAttributes, err error)

	// GlobFileMeta recursively walks dir, returning files only (directories
	// pruned from the result; symlinks and special files are logged and
	// skipped, not errored).
	GlobFileMeta(ctx context.Context, dir string) ([]Metadata, error)

	// Open returns a bidirectional stream. When flags has Create set and the
	// path's parent is missing, the backend creates missing parents and
	// retries (bounded, to avoid looping forever on a permission error).
	Open(ctx context.Context, path string, flags OpenFlags, attrs FileAttributes) (FileHandle, error)

	// Exec runs script non-interactively: stdin is null, stdout+stderr
	// captured to memory.
	Exec(ctx context.Context, script Script) (Output, error)

	// Pty runs script interactively, returning the pty triple.
	Pty(ctx context.Context, script Script, size ptyio.WindowSize) (*ptyio.Pty, error)

	// Rm deletes path. Idempotent: a missing file is success.
	Rm(ctx context.Context, path string) error
}
