// Package dverr defines the error taxonomy shared by every backend and
// operation: a small set of typed kinds plus a predicate that collapses
// the several backend-specific ways of saying "missing" into one check.
package dverr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an Error. Backend-tagged kinds carry an opaque cause from
// that backend; domain kinds are raised directly by dv.
type Kind int

const (
	// Unknown is a catch-all for errors that don't fit another kind.
	Unknown Kind = iota
	// IO wraps a local filesystem error.
	IO
	// SSH wraps a transport-level SSH error (handshake, channel, auth negotiation).
	SSH
	// SFTP wraps an SFTP protocol/status error.
	SFTP
	// Auth is raised when every configured authentication method failed.
	Auth
	// Sqlite wraps a KV-store backend error.
	Sqlite
	// Toml wraps a dotutil catalog parse error.
	Toml
	// HTTP wraps a download-cache transport error.
	HTTP
	// NotFound means the path does not exist. Never use another kind to say this.
	NotFound
	// UnknownVariable means normalize() hit a ${NAME} with no entry in vars.
	UnknownVariable
	// UnknownHome means tilde expansion was attempted with no HOME/HOMEPATH set.
	UnknownHome
	// AuthFailed means every auth method was tried (or none applied) and none succeeded.
	AuthFailed
	// MismatchedKinds means a sync pair is file vs dir, or both sides missing.
	MismatchedKinds
	// Unsupported means the backend has no implementation for the requested operation.
	Unsupported
)

func (k Kind) String() string {
	switch k {
	case IO:
		return "io"
	case SSH:
		return "ssh"
	case SFTP:
		return "sftp"
	case Auth:
		return "auth"
	case Sqlite:
		return "sqlite"
	case Toml:
		return "toml"
	case HTTP:
		return "http"
	case NotFound:
		return "not_found"
	case UnknownVariable:
		return "unknown_variable"
	case UnknownHome:
		return "unknown_home"
	case AuthFailed:
		return "auth_failed"
	case MismatchedKinds:
		return "mismatched_kinds"
	case Unsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Error is the concrete error type every dv package returns.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap lets errors.Is/errors.As walk through to the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// New builds a domain error with no wrapped cause.
func New(k Kind, msg string) error {
	return &Error{Kind: k, Msg: msg}
}

// Wrap attaches a backend kind and message to a lower-level cause, keeping
// the cause reachable via errors.Unwrap/errors.As, the same role
// github.com/pkg/errors.Wrap plays in rclone's own error handling.
func Wrap(k Kind, msg string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: k, Msg: msg, Err: errors.WithStack(cause)}
}

// IsNotFound walks the error chain looking for Kind == NotFound. It is the
// single predicate callers use to decide "does this mean missing?" —
// backends never encode "missing" any other way (invariant 1, spec §3).
func IsNotFound(err error) bool {
	for err != nil {
		if de, ok := err.(*Error); ok {
			if de.Kind == NotFound {
				return true
			}
			err = de.Err
			continue
		}
		cause := errors.Unwrap(err)
		if cause == nil {
			return false
		}
		err = cause
	}
	return false
}

// Of reports the Kind of err, or Unknown if err isn't (or doesn't wrap) a
// *Error.
func Of(err error) Kind {
	for err != nil {
		if de, ok := err.(*Error); ok {
			return de.Kind
		}
		err = errors.Unwrap(err)
	}
	return Unknown
}
