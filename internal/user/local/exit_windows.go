//go:build windows

package local

import (
	"io/fs"
	"os/exec"
)

// mapExitCode implements spec §4.2.1's exit-code mapping on Windows: native
// code, else 1 when the code is absent (no POSIX signal concept here).
func mapExitCode(ee *exec.ExitError) int {
	code := ee.ExitCode()
	if code < 0 {
		return 1
	}
	return code
}

type ownerAttrs struct {
	UID *uint32
	GID *uint32
}

// platformOwnerAttrs: Windows file ownership isn't a simple uid/gid pair,
// so FileAttributes leaves these unset there (both fields are optional per
// spec §3).
func platformOwnerAttrs(info fs.FileInfo) (ownerAttrs, bool) {
	return ownerAttrs{}, false
}
