//go:build windows

package ptyio

import (
	"context"
	"io"
	"os"
	"os/exec"
	"sync"

	"golang.org/x/sys/windows"

	"github.com/km0e/dv/internal/dverr"
)

// OpenLocal allocates a ConPTY and starts cmd with a pseudo-console
// attribute attached to its startup info, per spec §4.5's Windows design:
// CreatePseudoConsole around two pipes, ResizePseudoConsole for resizes,
// ClosePseudoConsole on exit.
//
// The reader, writer and ctl share a "child exited" channel: the
// reader/writer hold their pipe ends open until ctl closes this channel,
// so we never tear down the pipes while ConPTY is still draining into
// them (the ConPTY lifetime-coupling requirement from spec §4.5/§9).
func OpenLocal(ctx context.Context, cmd *exec.Cmd, size WindowSize) (*Pty, error) {
	inR, inW, err := os.Pipe()
	if err != nil {
		return nil, dverr.Wrap(dverr.IO, "conpty stdin pipe", err)
	}
	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, dverr.Wrap(dverr.IO, "conpty stdout pipe", err)
	}

	var hpc windows.Handle
	coord := windows.Coord{X: int16(size.Cols), Y: int16(size.Rows)}
	if err := windows.CreatePseudoConsole(coord, windows.Handle(inR.Fd()), windows.Handle(outW.Fd()), 0, &hpc); err != nil {
		return nil, dverr.Wrap(dverr.IO, "CreatePseudoConsole", err)
	}

	if err := attachPseudoConsole(cmd, hpc); err != nil {
		windows.ClosePseudoConsole(hpc)
		return nil, dverr.Wrap(dverr.IO, "attach pseudo console to child startup info", err)
	}

	if err := cmd.Start(); err != nil {
		windows.ClosePseudoConsole(hpc)
		return nil, dverr.Wrap(dverr.IO, "start conpty child", err)
	}

	// The pipe ends ConPTY now owns are only needed by the child side.
	_ = inR.Close()
	_ = outW.Close()

	exited := make(chan struct{})
	lc := &conptyCtl{cmd: cmd, hpc: hpc, exited: exited}
	return &Pty{
		Ctl:    lc,
		Writer: &conptyWriter{w: inW, hpc: hpc, exited: exited},
		Reader: &conptyReader{r: outR, exited: exited},
	}, nil
}

type conptyCtl struct {
	cmd    *exec.Cmd
	hpc    windows.Handle
	exited chan struct{}
	once   sync.Once
	code   int
	err    error
}

func (c *conptyCtl) Wait(ctx context.Context) (int, error) {
	c.once.Do(func() {
		waitErr := c.cmd.Wait()
		switch ee := waitErr.(type) {
		case nil:
			c.code = 0
		case *exec.ExitError:
			c.code = ee.ExitCode()
		default:
			c.code, c.err = 1, waitErr
		}
		windows.ClosePseudoConsole(c.hpc)
		close(c.exited)
	})
	return c.code, c.err
}

type conptyWriter struct {
	w      *os.File
	hpc    windows.Handle
	exited chan struct{}
}

func (w *conptyWriter) Write(ctx context.Context, p []byte) (int, error) {
	return w.w.Write(p)
}

// EOF waits for the controller to observe the child's exit before closing
// the pipe, so ConPTY never writes into a file descriptor we've torn down.
func (w *conptyWriter) EOF(ctx context.Context) error {
	<-w.exited
	return w.w.Close()
}

func (w *conptyWriter) WindowChange(ctx context.Context, size WindowSize) error {
	coord := windows.Coord{X: int16(size.Cols), Y: int16(size.Rows)}
	return windows.ResizePseudoConsole(w.hpc, coord)
}

type conptyReader struct {
	r      *os.File
	exited chan struct{}
}

func (r *conptyReader) Read(ctx context.Context, p []byte) (int, error) {
	n, err := r.r.Read(p)
	if err == io.EOF {
		<-r.exited
		return n, io.EOF
	}
	return n, err
}
