package main

import "runtime"

// currentOS maps runtime.GOOS onto the string vocabulary
// internal/osclass.Parse expects for vars["os"]. Distro detection isn't
// attempted here (spec §4.9's distro lattice is populated explicitly via
// Context.SetDeviceInfo once a device has been probed); a bare "linux"
// resolves through osclass.Os.Chain() only to catalog entries keyed by
// plain "linux", "unix" or "unknown", so distro-keyed entries (such as
// every internal/pm entry) are not reached.
func currentOS() string {
	switch runtime.GOOS {
	case "windows":
		return "windows"
	case "darwin":
		return "macos"
	case "linux":
		return "linux"
	default:
		return "unix"
	}
}
