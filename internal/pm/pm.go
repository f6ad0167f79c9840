// Package pm is the package-manager catalog spec §4.8 describes: a
// per-manager table of install/update/upgrade argv templates, each split
// into main_args (the subcommand itself) and confirm_args (flags added only
// when the caller wants a non-interactive confirm), dispatched through an
// interactive pty.
//
// Grounded on dv-api/src/util/pm/support/{apk,yay,winget}.rs
// (original_source): each support module there is a thin
// program+args+flags wrapper around the same "run this argv through a
// pty" primitive this package generalizes into data (Manager) instead of
// one Go function per manager.
package pm

import (
	"context"
	"fmt"

	"github.com/km0e/dv/internal/dverr"
	"github.com/km0e/dv/internal/osclass"
	"github.com/km0e/dv/internal/ptyio"
	"github.com/km0e/dv/internal/user"
)

// ArgTemplate is one subcommand's argv shape: MainArgs always runs;
// ConfirmArgs is appended only when the caller asks for non-interactive
// confirmation (e.g. apt-get's "-y"/yay's "--noconfirm").
type ArgTemplate struct {
	MainArgs    []string
	ConfirmArgs []string
}

// Args builds the full argv for this template, appending ConfirmArgs when
// confirm is true, then the trailing packages.
func (t ArgTemplate) Args(confirm bool, packages []string) []string {
	args := append([]string{}, t.MainArgs...)
	if confirm {
		args = append(args, t.ConfirmArgs...)
	}
	return append(args, packages...)
}

// Manager is one package manager's catalog entry.
type Manager struct {
	Name    string
	Program string
	Install ArgTemplate
	Update  ArgTemplate
	Upgrade ArgTemplate
}

// catalogEntry maps a Manager to the osclass.Os value it applies to, mirroring
// dv-api's per-distro detect() dispatch (platform/{alpine,debian,...}.rs)
// collapsed into a data table.
type catalogEntry struct {
	os      osclass.Os
	manager Manager
}

var catalog = []catalogEntry{
	{osclass.Linux(osclass.DistroAlpine), apk},
	{osclass.Linux(osclass.DistroDebian), apt},
	{osclass.Linux(osclass.DistroUbuntu), apt},
	{osclass.Linux(osclass.DistroArch), yay},
	{osclass.Linux(osclass.DistroManjaro), yay},
	{osclass.Windows(), winget},
}

var apk = Manager{
	Name:    "apk",
	Program: "apk",
	Install: ArgTemplate{MainArgs: []string{"add"}, ConfirmArgs: nil},
	Update:  ArgTemplate{MainArgs: []string{"update"}},
	Upgrade: ArgTemplate{MainArgs: []string{"upgrade"}},
}

var apt = Manager{
	Name:    "apt",
	Program: "apt-get",
	Install: ArgTemplate{MainArgs: []string{"install"}, ConfirmArgs: []string{"-y"}},
	Update:  ArgTemplate{MainArgs: []string{"update"}},
	Upgrade: ArgTemplate{MainArgs: []string{"upgrade"}, ConfirmArgs: []string{"-y"}},
}

var yay = Manager{
	Name:    "yay",
	Program: "yay",
	Install: ArgTemplate{MainArgs: []string{"-S"}, ConfirmArgs: []string{"--noconfirm"}},
	Update:  ArgTemplate{MainArgs: []string{"-Sy"}, ConfirmArgs: []string{"--noconfirm"}},
	Upgrade: ArgTemplate{MainArgs: []string{"-Syu"}, ConfirmArgs: []string{"--noconfirm"}},
}

var winget = Manager{
	Name:    "winget",
	Program: "winget",
	Install: ArgTemplate{MainArgs: []string{"install"}, ConfirmArgs: []string{"--accept-package-agreements", "--accept-source-agreements"}},
	Update:  ArgTemplate{MainArgs: []string{"source", "update"}},
	Upgrade: ArgTemplate{MainArgs: []string{"upgrade", "--all"}, ConfirmArgs: []string{"--accept-package-agreements", "--accept-source-agreements"}},
}

// Lookup finds the catalog entry keyed by target, falling back through
// target.Chain() (spec §4.9) to progressively more generic keys until one
// is registered. Each step is an exact key match, not Compatible: Compatible
// is symmetric (a generic entry matches a specific target and vice versa),
// which would let an unrelated specific entry match a generalized candidate
// in this loop.
func Lookup(target osclass.Os) (Manager, bool) {
	for _, candidate := range target.Chain() {
		for _, entry := range catalog {
			if entry.os == candidate {
				return entry.manager, true
			}
		}
	}
	return Manager{}, false
}

// Pty is the narrow capability pm.Install needs: run an argv interactively.
type Pty interface {
	Pty(ctx context.Context, script user.Script, size ptyio.WindowSize) (*ptyio.Pty, error)
}

// Installer bridges a pty session to the local terminal; satisfied by
// *internal/interactor.Interactor.
type Installer interface {
	Ask(ctx context.Context, pty *ptyio.Pty) (int, error)
	WindowSize() (ptyio.WindowSize, error)
}

// Install runs m's install template against backend through interactor,
// appending confirmArgs when confirm is true (spec §4.8: "install(uid,
// packages, confirm) runs program + main_args + (confirm_args if confirm) +
// packages... through an interactive pty").
func Install(ctx context.Context, backend Pty, interactor Installer, m Manager, packages []string, confirm bool) error {
	size, err := interactor.WindowSize()
	if err != nil {
		return err
	}
	script := user.SplitScript(m.Program, m.Install.Args(confirm, packages)...)
	pty, err := backend.Pty(ctx, script, size)
	if err != nil {
		return err
	}
	code, err := interactor.Ask(ctx, pty)
	if err != nil {
		return err
	}
	if code != 0 {
		return dverr.New(dverr.Unknown, fmt.Sprintf("pm install exited with code %d", code))
	}
	return nil
}
