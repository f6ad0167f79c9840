// Package svc is the service-manager catalog: a supplemented feature (see
// DESIGN.md) folded into spec.md §1's "out of scope... simple dispatch
// table" line but budgeted its own share in spec §2 ("Service/package
// catalog ~6%"), so it gets a first-class home here.
//
// Grounded on dv-api/src/util/command/linux/support/{systemd,openrc}.rs
// (original_source): Setup enables the unit at boot, Restart reloads or
// restarts it — the same two verbs those Rust modules expose, generalized
// from one hand-written struct per manager to a data-driven catalog like
// internal/pm.
package svc

import (
	"context"

	"github.com/km0e/dv/internal/dverr"
	"github.com/km0e/dv/internal/osclass"
	"github.com/km0e/dv/internal/user"
)

// Manager is one service manager's catalog entry: script builders for
// enabling a unit at boot and for restarting it now, each given the
// service name at call time.
type Manager struct {
	Name    string
	Setup   func(name string) user.Script
	Restart func(name string) user.Script
}

type catalogEntry struct {
	os      osclass.Os
	manager Manager
}

var systemd = Manager{
	Name: "systemd",
	Setup: func(name string) user.Script {
		return user.SplitScript("systemctl", "enable", name)
	},
	Restart: func(name string) user.Script {
		return user.SplitScript("systemctl", "reload-or-restart", name)
	},
}

var openrc = Manager{
	Name: "openrc",
	Setup: func(name string) user.Script {
		return user.SplitScript("rc-update", "add", name, "default")
	},
	Restart: func(name string) user.Script {
		return user.SplitScript("rc-service", name, "restart")
	},
}

var launchctl = Manager{
	Name: "launchctl",
	Setup: func(name string) user.Script {
		return user.SplitScript("launchctl", "load", "-w", name)
	},
	Restart: func(name string) user.Script {
		return user.SplitScript("launchctl", "kickstart", "-k", name)
	},
}

var scExe = Manager{
	Name: "sc.exe",
	Setup: func(name string) user.Script {
		return user.SplitScript("sc.exe", "config", name, "start=", "auto")
	},
	Restart: func(name string) user.Script {
		return user.SplitScript("powershell", "-NoProfile", "-Command", "Restart-Service", "-Name", name)
	},
}

var catalog = []catalogEntry{
	{osclass.Linux(osclass.DistroAlpine), openrc},
	{osclass.Linux(osclass.DistroUnknown), systemd},
	{osclass.MacOS(), launchctl},
	{osclass.Windows(), scExe},
}

// Lookup finds the catalog entry keyed by target, falling back through
// target.Chain() (spec §4.9) to progressively more generic keys — see
// pm.Lookup for why this is an exact key match rather than Compatible.
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

// Exec is the narrow capability Enable/Restart need.
type Exec interface {
	Exec(ctx context.Context, script user.Script) (user.Output, error)
}

// Enable runs m's Setup script, non-interactively.
func Enable(ctx context.Context, backend Exec, m Manager, name string) error {
	return run(ctx, backend, m.Setup(name))
}

// Restart runs m's Restart script, non-interactively.
func Restart(ctx context.Context, backend Exec, m Manager, name string) error {
	return run(ctx, backend, m.Restart(name))
}

// Uninstall is spec §9 Open Question 2: left Unsupported, matching the
// Rust original's omission — no support module there exposes a teardown
// verb.
func Uninstall(ctx context.Context, backend Exec, m Manager, name string) error {
	return dverr.New(dverr.Unsupported, "service uninstall is not implemented for "+m.Name)
}

func run(ctx context.Context, backend Exec, script user.Script) error {
	out, err := backend.Exec(ctx, script)
	if err != nil {
		return err
	}
	if out.Code != 0 {
		return dverr.New(dverr.Unknown, "service command exited nonzero")
	}
	return nil
}
