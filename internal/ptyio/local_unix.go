//go:build !windows

package ptyio

import (
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"

	"github.com/km0e/dv/internal/dverr"
)

// OpenLocal starts cmd attached to a freshly allocated pty pair, in the
// style of the kr/pty usage seen in sandia-minimega, generalized to the
// maintained creack/pty fork. setsid/TIOCSCTTY and closing the unused pair
// end inside the child are handled by creack/pty's StartWithSize.
func OpenLocal(ctx context.Context, cmd *exec.Cmd, size WindowSize) (*Pty, error) {
	f, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: size.Cols, Rows: size.Rows})
	if err != nil {
		return nil, dverr.Wrap(dverr.IO, "open local pty", err)
	}

	lc := &localCtl{cmd: cmd, f: f}
	return &Pty{
		Ctl:    lc,
		Writer: &localWriter{f: f},
		Reader: &localReader{f: f},
	}, nil
}

// localCtl tracks child exit; it is the single place that calls cmd.Wait,
// since exec.Cmd.Wait is not safe to call twice.
type localCtl struct {
	cmd  *exec.Cmd
	f    *os.File
	once sync.Once
	code int
	err  error
}

func (c *localCtl) Wait(ctx context.Context) (int, error) {
	c.once.Do(func() {
		waitErr := c.cmd.Wait()
		c.code, c.err = exitCode(waitErr)
		_ = c.f.Close()
	})
	return c.code, c.err
}

// exitCode maps a Wait() error to the native exit code, or 128+signal on a
// signal death, matching spec §4.2.1's Local backend exit-code mapping.
func exitCode(waitErr error) (int, error) {
	if waitErr == nil {
		return 0, nil
	}
	ee, ok := waitErr.(*exec.ExitError)
	if !ok {
		return 1, waitErr
	}
	if ws, ok := ee.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal()), nil
	}
	return ee.ExitCode(), nil
}

type localWriter struct {
	f *os.File
}

func (w *localWriter) Write(ctx context.Context, p []byte) (int, error) {
	return w.f.Write(p)
}

func (w *localWriter) EOF(ctx context.Context) error {
	// A pty controller fd has no half-close; the conventional way to signal
	// end-of-input to the foreground process is the terminal EOF character
	// (ASCII EOT, typically bound to Ctrl-D).
	_, err := w.f.Write([]byte{4})
	return err
}

func (w *localWriter) WindowChange(ctx context.Context, size WindowSize) error {
	return pty.Setsize(w.f, &pty.Winsize{Cols: size.Cols, Rows: size.Rows})
}

type localReader struct {
	f *os.File
}

func (r *localReader) Read(ctx context.Context, p []byte) (int, error) {
	n, err := r.f.Read(p)
	if err == io.EOF {
		return n, io.EOF
	}
	return n, err
}
