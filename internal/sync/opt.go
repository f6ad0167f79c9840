// Package sync implements the bidirectional file/directory reconciliation
// algorithm of spec §4.7: a pure Scan phase builds a plan of Entry values
// against a policy vector and the KV "who changed since we last synced"
// record, consulting the interactor only when candidates can't be narrowed
// unambiguously; Execute then applies the plan in order.
//
// Grounded on spec §4.7's algorithm directly, cross-checked against the
// copy/overwrite/delete contract implied by rclone's own
// fs/sync/sync_test.go and fs/operations/copy_test.go fixtures (the engine
// itself survived retrieval only as its test surface — see DESIGN.md).
package sync

// Opt is the bitmask spec §3 defines over a sync decision. Exactly one bit
// is set per Entry at execute time; zero bits means "skip".
type Opt uint8

const (
	Overwrite Opt = 1 << iota
	Update
	DeleteDst
	DeleteSrc
	Upload
	Download
)

// Has reports whether every bit in want is set in o.
func (o Opt) Has(want Opt) bool { return o&want == want }

// Subset reports whether every bit set in o is also set in other — i.e. o
// is a subset of other's bits. The zero Opt is a subset of everything,
// including the zero Opt itself.
func (o Opt) Subset(other Opt) bool { return o&other == o }

// allOpts is the fixed enumeration order used both for candidate-set
// iteration and for building interactor choices, matching the order
// spec §3 lists the bitmask in.
var allOpts = []Opt{Overwrite, Update, DeleteDst, DeleteSrc, Upload, Download}

// label names one candidate bit's interactor choice text, per spec §4.7's
// resolution step ("y/overwrite", "u/update", "d/delete remote",
// "d/delete local", "y/upload", "y/download", plus always a trailing
// "n/skip").
func label(o Opt) string {
	switch o {
	case Overwrite:
		return "y/overwrite"
	case Update:
		return "u/update"
	case DeleteDst:
		return "d/delete remote"
	case DeleteSrc:
		return "d/delete local"
	case Upload:
		return "y/upload"
	case Download:
		return "y/download"
	default:
		return "?/unknown"
	}
}
