package ptyio

import (
	"context"
	"io"
	"sync"

	"golang.org/x/crypto/ssh"

	"github.com/km0e/dv/internal/dverr"
)

// OpenSSH requests a pty on session and starts cmd, then splits the
// session into the (ctl, writer, reader) triple per spec §4.5: "request_pty
// with the current window size and TERM, then exec; channel split yields
// the three handles."
func OpenSSH(ctx context.Context, session *ssh.Session, cmd string, size WindowSize, term string) (*Pty, error) {
	if term == "" {
		term = "xterm"
	}
	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty(term, int(size.Rows), int(size.Cols), modes); err != nil {
		return nil, dverr.Wrap(dverr.SSH, "request pty", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		return nil, dverr.Wrap(dverr.SSH, "stdin pipe", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		return nil, dverr.Wrap(dverr.SSH, "stdout pipe", err)
	}
	session.Stderr = stderrToStdout{}

	if err := session.Start(cmd); err != nil {
		return nil, dverr.Wrap(dverr.SSH, "start remote pty command", err)
	}

	sc := &sshCtl{session: session}
	return &Pty{
		Ctl:    sc,
		Writer: &sshWriter{stdin: stdin, session: session},
		Reader: &sshReader{r: stdout},
	}, nil
}

// stderrToStdout is unused as a real merge target; sessions route stderr
// into the same channel as stdout on most servers already. Kept as a
// discard sink so Session.Stderr is never nil.
type stderrToStdout struct{}

func (stderrToStdout) Write(p []byte) (int, error) { return len(p), nil }

type sshCtl struct {
	session *ssh.Session
	once    sync.Once
	code    int
	err     error
}

func (c *sshCtl) Wait(ctx context.Context) (int, error) {
	c.once.Do(func() {
		waitErr := c.session.Wait()
		if waitErr == nil {
			c.code = 0
			return
		}
		if ee, ok := waitErr.(*ssh.ExitError); ok {
			c.code = ee.ExitStatus()
			return
		}
		c.code, c.err = 1, dverr.Wrap(dverr.SSH, "remote pty command", waitErr)
	})
	return c.code, c.err
}

type sshWriter struct {
	stdin   io.WriteCloser
	session *ssh.Session
}

func (w *sshWriter) Write(ctx context.Context, p []byte) (int, error) {
	return w.stdin.Write(p)
}

func (w *sshWriter) EOF(ctx context.Context) error {
	return w.stdin.Close()
}

func (w *sshWriter) WindowChange(ctx context.Context, size WindowSize) error {
	return w.session.WindowChange(int(size.Rows), int(size.Cols))
}

type sshReader struct {
	r io.Reader
}

func (r *sshReader) Read(ctx context.Context, p []byte) (int, error) {
	return r.r.Read(p)
}
