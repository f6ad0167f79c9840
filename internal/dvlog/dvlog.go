// Package dvlog is a thin leveled-logging wrapper: it keeps the call shape
// of rclone's tag+format+args helpers (Debugf/Logf) while delegating the
// actual level/field/output machinery to logrus.
package dvlog

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

var std = logrus.New()

// SetLevel adjusts the package-wide log level ("debug", "info", "warn", "error").
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	std.SetLevel(lvl)
}

func tagField(tag any) *logrus.Entry {
	if tag == nil {
		return logrus.NewEntry(std)
	}
	return std.WithField("tag", fmt.Sprint(tag))
}

// Debugf logs at debug level, tagged with an identifier (a user id, a
// backend name, nil for untagged).
func Debugf(tag any, format string, args ...any) {
	tagField(tag).Debugf(format, args...)
}

// Logf logs at info level.
func Logf(tag any, format string, args ...any) {
	tagField(tag).Infof(format, args...)
}

// Errorf logs at error level. Used for best-effort failures that are
// swallowed by the caller (MultiDB read skips, glob stat failures).
func Errorf(tag any, format string, args ...any) {
	tagField(tag).Errorf(format, args...)
}
