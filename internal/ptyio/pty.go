// Package ptyio implements the pty triple — ctl/writer/reader — described
// in spec §4.5: three independently awaitable handles so the interactor's
// event loop never needs interior mutability to poll all three at once.
package ptyio

import "context"

// WindowSize is the terminal geometry passed to Open and propagated via
// WindowChange.
type WindowSize struct {
	Cols uint16
	Rows uint16
}

// Ctl is the control handle: Wait blocks until the child/channel exits and
// yields its exit code. Exactly-once: a second call after the first
// returns is undefined (mirrors a oneshot future).
type Ctl interface {
	Wait(ctx context.Context) (int, error)
}

// Writer is the async byte sink feeding the pty's stdin.
type Writer interface {
	Write(ctx context.Context, p []byte) (int, error)
	// EOF signals end of input (closes stdin on the far side). Not
	// idempotent: a second call sends another EOT byte on the local pty and
	// fails on writers that close a pipe.
	EOF(ctx context.Context) error
	WindowChange(ctx context.Context, size WindowSize) error
}

// Reader is the async byte source draining the pty's stdout+stderr.
// Read returning n==0 with a nil error never happens; n==0 together with
// io.EOF signals end of stream.
type Reader interface {
	Read(ctx context.Context, p []byte) (int, error)
}

// Pty is the triple returned by every pty-opening primitive (local,
// SSH-channel, or — on Windows — ConPTY).
type Pty struct {
	Ctl    Ctl
	Writer Writer
	Reader Reader
}
