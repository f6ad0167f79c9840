package sync

// Entry is one element of a sync plan (spec §3): a resolved pair plus the
// single Opt bit chosen for it. A zero Opt never appears here — Scan omits
// pairs resolved to "skip".
type Entry struct {
	Src string
	Dst string
	// SrcMtime/DstMtime are the mtimes observed during Scan, nil for a
	// synthetic missing side. Execute re-fetches fresh mtimes after the
	// copy rather than trusting these, since a concurrent change between
	// scan and execute is possible (spec §4.7 execute step).
	SrcMtime *int64
	DstMtime *int64
	Opt      Opt
}
