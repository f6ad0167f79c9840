package sshuser

import (
	"bytes"
	"context"
	"crypto/rand"
	"math/big"
	"os"
	"path"
	"sort"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/km0e/dv/internal/dverr"
	"github.com/km0e/dv/internal/dvlog"
	"github.com/km0e/dv/internal/ptyio"
	"github.com/km0e/dv/internal/user"
)

const maxParentCreateRetries = 8

var _ user.Backend = (*Backend)(nil)

// FileAttributes stats path over SFTP. A missing path is (path, nil, nil)
// per invariant 1.
func (b *Backend) FileAttributes(ctx context.Context, p string) (string, *user.FileAttributes, error) {
	info, err := b.sftp.Lstat(p)
	if os.IsNotExist(err) {
		return p, nil, nil
	}
	if err != nil {
		return p, nil, dverr.Wrap(dverr.SFTP, "stat "+p, err)
	}
	size := info.Size()
	mtime := info.ModTime().Unix()
	// Full os.FileMode bits, matching internal/user/local: the facade's
	// directory check relies on the type bits, not just Perm().
	mode := uint32(info.Mode())
	return p, &user.FileAttributes{Size: &size, MTime: &mtime, Permissions: &mode}, nil
}

// GlobFileMeta recursively walks dir over SFTP, returning files only.
func (b *Backend) GlobFileMeta(ctx context.Context, dir string) ([]user.Metadata, error) {
	walker := b.sftp.Walk(dir)
	var out []user.Metadata
	first := true
	for walker.Step() {
		if err := walker.Err(); err != nil {
			if first {
				return nil, dverr.Wrap(dverr.SFTP, "opendir "+dir, err)
			}
			dvlog.Errorf(walker.Path(), "skip on stat error: %v", err)
			continue
		}
		first = false
		info := walker.Stat()
		if info.IsDir() {
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 || !info.Mode().IsRegular() {
			dvlog.Debugf(walker.Path(), "skipping non-regular file")
			continue
		}
		size := info.Size()
		mtime := info.ModTime().Unix()
		out = append(out, user.Metadata{Path: walker.Path(), Attr: user.FileAttributes{Size: &size, MTime: &mtime}})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Open returns an SFTP file handle. With Create set, a missing parent is
// created (via createParent) and the open retried.
func (b *Backend) Open(ctx context.Context, p string, flags user.OpenFlags, attrs user.FileAttributes) (user.FileHandle, error) {
	sftpFlags := toSFTPFlags(flags)

	var f *sftp.File
	var err error
	for attempt := 0; attempt <= maxParentCreateRetries; attempt++ {
		f, err = b.sftp.OpenFile(p, sftpFlags)
		if err == nil {
			if attrs.Permissions != nil {
				_ = f.Chmod(os.FileMode(*attrs.Permissions))
			}
			return f, nil
		}
		if !flags.Has(user.Create) || !dverr.IsNotFound(translateSFTPErr(err)) {
			return nil, dverr.Wrap(dverr.SFTP, "open "+p, err)
		}
		if cpErr := b.createParent(p); cpErr != nil {
			return nil, cpErr
		}
	}
	return nil, dverr.Wrap(dverr.SFTP, "open "+p+" (parent creation exhausted)", err)
}

func toSFTPFlags(flags user.OpenFlags) int {
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

// createParent strips the final "/"-segment of path and attempts mkdir; on
// NoSuchFile OR Failure it recurses on the parent and retries. Two status
// codes map to the recursion trigger because some SFTP servers conflate
// them (spec §4.2.2, Open Question 1).
func (b *Backend) createParent(p string) error {
	parent := path.Dir(p)
	if parent == "." || parent == "/" {
		return nil
	}
	err := b.sftp.Mkdir(parent)
	if err == nil {
		return nil
	}
	if se, ok := err.(*sftp.StatusError); ok &&
		(se.Code() == uint32(sftpFxNoSuchFile) || se.Code() == uint32(sftpFxFailure)) {
		if pErr := b.createParent(parent); pErr != nil {
			return pErr
		}
		err = b.sftp.Mkdir(parent)
		if err != nil && !os.IsExist(err) {
			return dverr.Wrap(dverr.SFTP, "mkdir "+parent, err)
		}
		return nil
	}
	if os.IsExist(err) {
		return nil
	}
	return dverr.Wrap(dverr.SFTP, "mkdir "+parent, err)
}

// SFTP status codes per the protocol spec; named here rather than imported
// since pkg/sftp doesn't export them as typed constants.
const (
	sftpFxNoSuchFile = 2
	sftpFxFailure    = 4
)

func translateSFTPErr(err error) error {
	if os.IsNotExist(err) {
		return dverr.New(dverr.NotFound, "not found")
	}
	if se, ok := err.(*sftp.StatusError); ok && se.Code() == uint32(sftpFxNoSuchFile) {
		return dverr.New(dverr.NotFound, "not found")
	}
	return err
}

// Exec runs script non-interactively over a fresh SSH session.
func (b *Backend) Exec(ctx context.Context, script user.Script) (user.Output, error) {
	line, cleanup, err := b.resolveCommandLine(script)
	if err != nil {
		return user.Output{}, err
	}
	defer cleanup()

	session, err := b.client.NewSession()
	if err != nil {
		return user.Output{}, dverr.Wrap(dverr.SSH, "new session", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	runErr := session.Run(line)
	code, err := sshExitCode(runErr)
	if err != nil {
		return user.Output{}, err
	}
	return user.Output{Code: code, Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, nil
}

// Pty runs script interactively over a pty-requesting SSH session.
func (b *Backend) Pty(ctx context.Context, script user.Script, size ptyio.WindowSize) (*ptyio.Pty, error) {
	line, cleanup, err := b.resolveCommandLine(script)
	if err != nil {
		return nil, err
	}
	session, err := b.client.NewSession()
	if err != nil {
		cleanup()
		return nil, dverr.Wrap(dverr.SSH, "new session", err)
	}
	pty, err := ptyio.OpenSSH(ctx, session, line, size, os.Getenv("TERM"))
	if err != nil {
		cleanup()
		return nil, err
	}
	return pty, nil
}

// Rm deletes path over SFTP. Idempotent: a missing file is success.
func (b *Backend) Rm(ctx context.Context, p string) error {
	err := b.sftp.Remove(p)
	if err != nil && !os.IsNotExist(err) {
		return dverr.Wrap(dverr.SFTP, "rm "+p, err)
	}
	return nil
}

func sshExitCode(runErr error) (int, error) {
	if runErr == nil {
		return 0, nil
	}
	if ee, ok := runErr.(*ssh.ExitError); ok {
		return ee.ExitStatus(), nil
	}
	return 1, dverr.Wrap(dverr.SSH, "exec", runErr)
}

// resolveCommandLine turns a Script into a line runnable by the remote
// shell. ScriptFile uploads the script to a random temp name via SFTP
// first, per spec §4.2.2's temp-script upload contract.
func (b *Backend) resolveCommandLine(script user.Script) (string, func(), error) {
	noop := func() {}
	switch script.Kind {
	case user.Whole:
		return script.Line, noop, nil
	case user.Split:
		return quoteArgv(script.Program, script.Args), noop, nil
	case user.ScriptFile:
		remotePath, err := b.uploadTempScript(script.Executor, script.Input)
		if err != nil {
			return "", noop, err
		}
		return runLine(script.Executor, remotePath), func() { _ = b.sftp.Remove(remotePath) }, nil
	default:
		return "", noop, dverr.New(dverr.Unsupported, "unknown script kind")
	}
}

func quoteArgv(program string, args []string) string {
	line := program
	for _, a := range args {
		line += " '" + a + "'"
	}
	return line
}

func runLine(executor user.Executor, remotePath string) string {
	if executor == user.Powershell {
		return "powershell -NoProfile -File " + remotePath
	}
	return "sh " + remotePath
}

// uploadTempScript generates a random 6-char filename prefixed with ".tmp"
// and opens it via SFTP with CREATE|WRITE|EXCLUDE; a name collision retries
// up to 5 times with a fresh suffix each attempt (spec §4.2.2).
func (b *Backend) uploadTempScript(executor user.Executor, input string) (string, error) {
	trailer := "\ntrap 'rm -f -- \"$0\"' EXIT;"
	if executor == user.Powershell {
		trailer = "\r\nRemove-Item $MyInvocation.MyCommand.Path"
	}
	payload := input + trailer

	const maxAttempts = 5
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		name := ".tmp" + randomSuffix(6)
		f, err := b.sftp.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_EXCL)
		if err != nil {
			lastErr = err
			continue
		}
		if _, err := f.Write([]byte(payload)); err != nil {
			_ = f.Close()
			return "", dverr.Wrap(dverr.SFTP, "write temp script "+name, err)
		}
		if err := f.Close(); err != nil {
			return "", dverr.Wrap(dverr.SFTP, "close temp script "+name, err)
		}
		_ = b.sftp.Chmod(name, 0o700)
		return name, nil
	}
	return "", dverr.Wrap(dverr.SFTP, "create temp script after retries", lastErr)
}

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomSuffix(n int) string {
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(suffixAlphabet))))
		if err != nil {
			// crypto/rand failure is effectively unrecoverable here; fall
			// back to a fixed character rather than panic.
			out[i] = suffixAlphabet[0]
			continue
		}
		out[i] = suffixAlphabet[idx.Int64()]
	}
	return string(out)
}
