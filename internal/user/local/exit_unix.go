//go:build !windows

package local

import (
	"io/fs"
	"os/exec"
	"syscall"
)

// mapExitCode implements spec §4.2.1's exit-code mapping: native code, else
// 128+signal on POSIX when the code is absent (the process was killed by a
// signal rather than exiting normally).
func mapExitCode(ee *exec.ExitError) int {
	if ws, ok := ee.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return ee.ExitCode()
}

type ownerAttrs struct {
	UID *uint32
	GID *uint32
}

func platformOwnerAttrs(info fs.FileInfo) (ownerAttrs, bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return ownerAttrs{}, false
	}
	uid, gid := uint32(stat.Uid), uint32(stat.Gid)
	return ownerAttrs{UID: &uid, GID: &gid}, true
}
