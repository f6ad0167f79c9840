// Package interactor owns the local TTY for the duration of each
// interactive operation (spec §4.6): Ask bridges a pty's full-duplex
// stream to the local terminal; Confirm is a separate, modal
// accelerator-key prompt. Both share one raw-mode terminal via a scoped
// guard. Grounded on golang.org/x/term's MakeRaw/Restore/GetSize, the only
// raw-mode terminal library used anywhere in the example pack
// (other_examples' si-util.go reaches for the same package, there only for
// IsTerminal/width queries).
package interactor

import (
	"context"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/km0e/dv/internal/dverr"
	"github.com/km0e/dv/internal/ptyio"
)

// Interactor is single-threaded and cooperative: only one Ask/Confirm call
// may be in flight at a time (caller-enforced serialization, spec §5).
//
// Local stdin cannot be probed for "is a byte available" without reading
// it, and a blocking os.Stdin.Read never returns in time for a ctx-driven
// caller to give up on it. So, per spec §4.6's Windows note (generalized
// to every platform rather than special-cased, since the same problem
// exists on POSIX once O_NONBLOCK is off the table as an io.Reader-level
// concern), one dedicated goroutine owns the blocking read loop for the
// life of the Interactor and feeds chunks through a channel; Ask and
// Confirm only ever select on that channel, so both respect ctx
// cancellation and neither spins on a read that can't happen.
type Interactor struct {
	stdin  io.Reader
	stdout io.Writer
	fd     int // terminal fd used for raw-mode and size queries

	in      chan []byte
	inErr   chan error
	pending []byte // leftover bytes from the last chunk consumed
}

// New builds an Interactor over the process's stdin/stdout and starts its
// background stdin reader.
func New() *Interactor {
	i := &Interactor{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		fd:     int(os.Stdin.Fd()),
		in:     make(chan []byte),
		inErr:  make(chan error, 1),
	}
	go i.readStdin()
	return i
}

// readStdin is the sole blocking reader of i.stdin, running for the life of
// the Interactor. It sends each chunk read, then — on error or EOF — sends
// that error once and exits; nothing further is read from stdin after that.
func (i *Interactor) readStdin() {
	buf := make([]byte, 4096)
	for {
		n, err := i.stdin.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			i.in <- chunk
		}
		if err != nil {
			i.inErr <- err
			return
		}
	}
}

// nextChunk blocks until a chunk of stdin, a terminal read error, or ctx
// cancellation is available, consuming any leftover bytes first.
func (i *Interactor) nextChunk(ctx context.Context) ([]byte, error) {
	if len(i.pending) > 0 {
		chunk := i.pending
		i.pending = nil
		return chunk, nil
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case chunk := <-i.in:
		return chunk, nil
	case err := <-i.inErr:
		return nil, err
	}
}

// tryNextByte is a non-blocking poll for a single stdin byte: ok is false
// if nothing is available yet (the normal case between poll ticks).
func (i *Interactor) tryNextByte() (b byte, ok bool, err error) {
	if len(i.pending) > 0 {
		b, i.pending = i.pending[0], i.pending[1:]
		return b, true, nil
	}
	select {
	case chunk := <-i.in:
		if len(chunk) == 0 {
			return 0, false, nil
		}
		b, i.pending = chunk[0], chunk[1:]
		return b, true, nil
	case err := <-i.inErr:
		return 0, false, err
	default:
		return 0, false, nil
	}
}

// rawMode is the scoped guard spec §4.6 requires: every interactive
// primitive acquires it, and its release restores the terminal on every
// exit path, including panics further up the call stack.
type rawMode struct {
	fd    int
	state *term.State
}

func (i *Interactor) acquireRaw() (*rawMode, error) {
	state, err := term.MakeRaw(i.fd)
	if err != nil {
		return nil, dverr.Wrap(dverr.IO, "enter raw mode", err)
	}
	return &rawMode{fd: i.fd, state: state}, nil
}

func (r *rawMode) release() {
	_ = term.Restore(r.fd, r.state)
}

// WindowSize returns the current terminal geometry; callers pass it
// straight to Backend.Pty.
func (i *Interactor) WindowSize() (ptyio.WindowSize, error) {
	cols, rows, err := term.GetSize(i.fd)
	if err != nil {
		return ptyio.WindowSize{}, dverr.Wrap(dverr.IO, "get terminal size", err)
	}
	return ptyio.WindowSize{Cols: uint16(cols), Rows: uint16(rows)}, nil
}

// Ask acquires raw mode, then concurrently forwards local stdin to
// pty.Writer and pty.Reader to local stdout while awaiting pty.Ctl.Wait.
//
// Termination (spec §4.6): when stdin reaches EOF, Writer.EOF is sent once
// and stdin polling stops. When Ctl.Wait completes, if stdin was not
// already EOF'd, Writer.EOF is sent and the exit code returned. Either
// stream erroring propagates that error.
func (i *Interactor) Ask(ctx context.Context, pty *ptyio.Pty) (int, error) {
	raw, err := i.acquireRaw()
	if err != nil {
		return 0, err
	}
	defer raw.release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stdinDone := make(chan error, 1)
	stdinEOF := make(chan struct{})
	go i.pumpStdin(ctx, pty.Writer, stdinDone, stdinEOF)

	stdoutDone := make(chan error, 1)
	go i.pumpStdout(ctx, pty.Reader, stdoutDone)

	code, waitErr := pty.Ctl.Wait(ctx)

	select {
	case <-stdinEOF:
		// stdin already signaled EOF to the writer; nothing more to do.
	default:
		_ = pty.Writer.EOF(ctx)
	}
	cancel()

	if waitErr != nil {
		return 0, waitErr
	}
	if err := <-stdinDone; err != nil && err != io.EOF {
		return 0, err
	}
	if err := <-stdoutDone; err != nil && err != io.EOF {
		return 0, err
	}
	return code, nil
}

// pumpStdin forwards chunks from the background stdin reader to w. Unlike
// reading i.stdin directly, this select respects ctx cancellation even
// while no stdin input is available, so Ask's goroutine exits promptly
// when the pty's child exits instead of leaking until the next keystroke.
func (i *Interactor) pumpStdin(ctx context.Context, w ptyio.Writer, done chan<- error, eof chan<- struct{}) {
	for {
		chunk, err := i.nextChunk(ctx)
		if err != nil {
			if err == context.Canceled || err == context.DeadlineExceeded {
				done <- nil
				return
			}
			_ = w.EOF(ctx)
			close(eof)
			if err == io.EOF {
				done <- nil
			} else {
				done <- err
			}
			return
		}
		if _, werr := w.Write(ctx, chunk); werr != nil {
			done <- werr
			return
		}
	}
}

func (i *Interactor) pumpStdout(ctx context.Context, r ptyio.Reader, done chan<- error) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(ctx, buf)
		if n > 0 {
			if _, werr := i.stdout.Write(buf[:n]); werr != nil {
				done <- werr
				return
			}
		}
		if err != nil {
			if err == io.EOF {
				done <- nil
			} else {
				done <- err
			}
			return
		}
	}
}

// Option is one Confirm choice: an accelerator key plus a hint label.
type Option struct {
	Key  rune
	Hint string
}

// ParseOption splits "C/hint" into its accelerator and hint, falling back
// to the ordinal digit '1'+idx if no accelerator char is given.
func ParseOption(spec string, idx int) Option {
	slash := -1
	for pos, r := range spec {
		if r == '/' {
			slash = pos
			break
		}
	}
	if slash <= 0 {
		return Option{Key: rune('1' + idx), Hint: spec}
	}
	accel := []rune(spec[:slash])
	return Option{Key: accel[0], Hint: spec[slash+1:]}
}

// pollInterval is the key-event poll period Confirm uses (spec §4.6: "polls
// key events at 100 ms").
const pollInterval = 100 * time.Millisecond

// Confirm prints message, enters raw mode, and polls stdin for the first
// byte matching one option's accelerator key, returning its index.
//
// tryNextByte is a genuine non-blocking probe (unlike bufio.Reader.
// Buffered, which stays 0 forever over a blocking os.Stdin — nothing ever
// fills its buffer without a Read call, and the only Read call is the one
// the old Buffered()-gate skipped): it drains whatever the background
// stdin reader has already delivered, or returns ok=false immediately if
// nothing has arrived yet.
func (i *Interactor) Confirm(ctx context.Context, message string, options []Option) (int, error) {
	if _, err := io.WriteString(i.stdout, message+"\n"); err != nil {
		return 0, dverr.Wrap(dverr.IO, "write confirm prompt", err)
	}

	raw, err := i.acquireRaw()
	if err != nil {
		return 0, err
	}
	defer raw.release()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
			b, ok, err := i.tryNextByte()
			if err != nil {
				return 0, dverr.Wrap(dverr.IO, "read confirm key", err)
			}
			if !ok {
				continue
			}
			for idx, opt := range options {
				if rune(b) == opt.Key {
					return idx, nil
				}
			}
		}
	}
}
