package sync

import (
	"context"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/km0e/dv/internal/dverr"
	"github.com/km0e/dv/internal/facade"
	"github.com/km0e/dv/internal/interactor"
	"github.com/km0e/dv/internal/kv"
	"github.com/km0e/dv/internal/user"
)

// Prompter is the narrow interactor surface the engine needs to resolve an
// ambiguous pair. Kept as an interface (rather than a concrete
// *interactor.Interactor field) so Scan is unit-testable without a real
// terminal.
type Prompter interface {
	Confirm(ctx context.Context, message string, options []interactor.Option) (int, error)
}

// Engine is one sync operation's context: the two sides, the KV row they
// share, and the interactor used to break ties. DstUID is the device key
// every KV row is stored under (spec §4.4: rows are keyed by destination
// path under the destination device).
type Engine struct {
	Src      *facade.Facade
	Dst      *facade.Facade
	DstUID   string
	DB       kv.DB
	Prompter Prompter
}

// Scan implements Phase 1 (spec §4.7): resolve both paths, dispatch on
// kind, classify every pair, and resolve ambiguity through opts or the
// interactor. It performs no writes.
func (e *Engine) Scan(ctx context.Context, sp, dp string, opts []Opt) ([]Entry, error) {
	srcPath, srcAttrs, err := e.Src.FileAttributes(ctx, sp)
	if err != nil {
		return nil, err
	}
	dstPath, dstAttrs, err := e.Dst.FileAttributes(ctx, dp)
	if err != nil {
		return nil, err
	}

	srcExists, dstExists := srcAttrs != nil, dstAttrs != nil
	srcIsDir := srcExists && srcAttrs.IsDir()
	dstIsDir := dstExists && dstAttrs.IsDir()

	switch {
	case !srcExists && !dstExists:
		return nil, dverr.New(dverr.MismatchedKinds, "both missing: "+sp+" / "+dp)
	case srcExists && dstExists && srcIsDir != dstIsDir:
		return nil, dverr.New(dverr.MismatchedKinds, "dir/file mismatch: "+sp+" / "+dp)
	case srcIsDir && dstIsDir:
		return e.scanBothDirs(ctx, srcPath, dstPath, opts)
	case srcIsDir && !dstExists:
		return e.scanSrcDirOnly(ctx, srcPath, dstPath, opts)
	case dstIsDir && !srcExists:
		return e.scanDstDirOnly(ctx, srcPath, dstPath, opts)
	default:
		entry, err := e.classifyPair(ctx, srcPath, dstPath, srcAttrs, dstAttrs, opts)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			return nil, nil
		}
		return []Entry{*entry}, nil
	}
}

// scanBothDirs globs both sides and merges them by relative path, sorted by
// raw UTF-8 bytes (spec §9: "do not locale-sort").
func (e *Engine) scanBothDirs(ctx context.Context, srcRoot, dstRoot string, opts []Opt) ([]Entry, error) {
	srcMetas, err := e.Src.Glob(ctx, srcRoot)
	if err != nil {
		return nil, err
	}
	dstMetas, err := e.Dst.Glob(ctx, dstRoot)
	if err != nil {
		return nil, err
	}

	srcByRel := relIndex(srcRoot, srcMetas)
	dstByRel := relIndex(dstRoot, dstMetas)
	rels := unionSortedKeys(srcByRel, dstByRel)

	var entries []Entry
	for _, rel := range rels {
		srcMeta, inSrc := srcByRel[rel]
		dstMeta, inDst := dstByRel[rel]
		srcPath := joinRel(srcRoot, rel)
		dstPath := joinRel(dstRoot, rel)

		var entry *Entry
		var err error
		switch {
		case inSrc && inDst:
			entry, err = e.classifyPair(ctx, srcPath, dstPath, &srcMeta.Attr, &dstMeta.Attr, opts)
		case inSrc:
			entry, err = e.classifyPair(ctx, srcPath, dstPath, &srcMeta.Attr, nil, opts)
		default:
			entry, err = e.classifyPair(ctx, srcPath, dstPath, nil, &dstMeta.Attr, opts)
		}
		if err != nil {
			return nil, err
		}
		if entry != nil {
			entries = append(entries, *entry)
		}
	}
	return entries, nil
}

// scanSrcDirOnly globs src, pairing each file with a synthetic missing dst
// (spec §4.7 step 2, "src dir only").
func (e *Engine) scanSrcDirOnly(ctx context.Context, srcRoot, dstRoot string, opts []Opt) ([]Entry, error) {
	metas, err := e.Src.Glob(ctx, srcRoot)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, m := range metas {
		rel := relPath(srcRoot, m.Path)
		entry, err := e.classifyPair(ctx, m.Path, joinRel(dstRoot, rel), &m.Attr, nil, opts)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			entries = append(entries, *entry)
		}
	}
	return entries, nil
}

// scanDstDirOnly is the mirror of scanSrcDirOnly.
func (e *Engine) scanDstDirOnly(ctx context.Context, srcRoot, dstRoot string, opts []Opt) ([]Entry, error) {
	metas, err := e.Dst.Glob(ctx, dstRoot)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, m := range metas {
		rel := relPath(dstRoot, m.Path)
		entry, err := e.classifyPair(ctx, joinRel(srcRoot, rel), m.Path, nil, &m.Attr, opts)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			entries = append(entries, *entry)
		}
	}
	return entries, nil
}

// classifyPair computes the candidate set for one (src, dst) pair per spec
// §4.7 step 4, then resolves it via opts/interactor. Returns nil, nil when
// the pair resolves to "skip".
func (e *Engine) classifyPair(ctx context.Context, srcPath, dstPath string, srcAttrs, dstAttrs *user.FileAttributes, opts []Opt) (*Entry, error) {
	var candidates Opt
	switch {
	case srcAttrs != nil && dstAttrs == nil:
		candidates = Upload | DeleteSrc
	case srcAttrs == nil && dstAttrs != nil:
		candidates = Download | DeleteDst
	default:
		var err error
		candidates, err = e.selectBoth(ctx, dstPath, srcAttrs, dstAttrs)
		if err != nil {
			return nil, err
		}
	}

	chosen, err := e.resolve(ctx, dstPath, candidates, opts)
	if err != nil {
		return nil, err
	}
	if chosen == 0 {
		return nil, nil
	}

	var srcMtime, dstMtime *int64
	if srcAttrs != nil {
		srcMtime = srcAttrs.MTime
	}
	if dstAttrs != nil {
		dstMtime = dstAttrs.MTime
	}
	return &Entry{Src: srcPath, Dst: dstPath, SrcMtime: srcMtime, DstMtime: dstMtime, Opt: chosen}, nil
}

// selectBoth looks up the stored (version, latest) row for dstPath and sets
// Overwrite when the source side has moved on from the recorded version,
// Update when the destination side has moved on from the recorded latest
// (spec §4.7 step 4, select_both).
func (e *Engine) selectBoth(ctx context.Context, dstPath string, srcAttrs, dstAttrs *user.FileAttributes) (Opt, error) {
	version, latest, found, err := kv.GetAs(ctx, e.DB, e.DstUID, dstPath, kv.ParseInt64)
	if err != nil {
		return 0, err
	}
	var candidates Opt
	if !found || srcAttrs.MTime == nil || *srcAttrs.MTime != version {
		candidates |= Overwrite
	}
	if !found || dstAttrs.MTime == nil || *dstAttrs.MTime != latest {
		candidates |= Update
	}
	return candidates, nil
}

// resolve narrows candidates to a single chosen Opt (spec §4.7 step 5). An
// empty candidate set always resolves to skip, with no interactor
// involvement and regardless of opts. Otherwise opts is scanned in order:
// the first element that is either the zero Opt (explicit skip) or a
// subset of candidates wins; if none matches, the interactor is prompted.
func (e *Engine) resolve(ctx context.Context, dstPath string, candidates Opt, opts []Opt) (Opt, error) {
	if candidates == 0 {
		return 0, nil
	}
	for _, o := range opts {
		if o == 0 {
			return 0, nil
		}
		if o.Subset(candidates) {
			return o, nil
		}
	}
	return e.promptCandidates(ctx, dstPath, candidates)
}

// promptCandidates builds one interactor.Option per candidate bit (fixed
// enumeration order) plus a trailing "n/skip", and maps the returned index
// back to an Opt (0 for skip).
func (e *Engine) promptCandidates(ctx context.Context, dstPath string, candidates Opt) (Opt, error) {
	var bits []Opt
	var options []interactor.Option
	for _, o := range allOpts {
		if candidates.Has(o) {
			bits = append(bits, o)
			options = append(options, interactor.ParseOption(label(o), len(options)))
		}
	}
	options = append(options, interactor.ParseOption("n/skip", len(options)))

	idx, err := e.Prompter.Confirm(ctx, "resolve "+dstPath+":", options)
	if err != nil {
		return 0, err
	}
	if idx < 0 || idx >= len(bits) {
		return 0, nil
	}
	return bits[idx], nil
}

// Execute implements Phase 2 (spec §4.7): entries are applied strictly in
// plan order (no concurrent execution — KV writes must totalize with
// observable filesystem state in program order, spec §4.7 "Complexity &
// ordering").
func (e *Engine) Execute(ctx context.Context, entries []Entry) error {
	for _, entry := range entries {
		if err := e.executeOne(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) executeOne(ctx context.Context, entry Entry) error {
	switch {
	case entry.Opt.Has(Overwrite) || entry.Opt.Has(Upload):
		if err := e.copy(ctx, e.Src, entry.Src, e.Dst, entry.Dst); err != nil {
			return err
		}
		return e.recordState(ctx, entry.Src, entry.Dst)
	case entry.Opt.Has(Update) || entry.Opt.Has(Download):
		if err := e.copy(ctx, e.Dst, entry.Dst, e.Src, entry.Src); err != nil {
			return err
		}
		return e.recordState(ctx, entry.Src, entry.Dst)
	case entry.Opt.Has(DeleteDst):
		if err := e.DB.Del(ctx, e.DstUID, entry.Dst); err != nil {
			return err
		}
		return e.Dst.Rm(ctx, entry.Dst)
	case entry.Opt.Has(DeleteSrc):
		if err := e.DB.Del(ctx, e.DstUID, entry.Src); err != nil {
			return err
		}
		return e.Src.Rm(ctx, entry.Src)
	default:
		return dverr.New(dverr.Unknown, "entry with no opt bit set reached execute")
	}
}

// copy streams fromPath on `from` into toPath on `to`, auto-creating a
// missing parent directory on the destination (delegated to Backend.Open's
// Create-flag contract, spec §4.2).
func (e *Engine) copy(ctx context.Context, from *facade.Facade, fromPath string, to *facade.Facade, toPath string) error {
	r, err := from.Open(ctx, fromPath, user.Read)
	if err != nil {
		return err
	}
	defer r.Close()

	w, err := to.Open(ctx, toPath, user.Write|user.Create|user.Truncate)
	if err != nil {
		return err
	}
	defer w.Close()

	if _, err := io.Copy(w, r); err != nil {
		return dverr.Wrap(dverr.IO, "copy "+fromPath+" -> "+toPath, err)
	}
	return nil
}

// recordState writes db[(DstUID, dst)] = (mtime(src), mtime(dst)) after a
// copy, fetching both mtimes fresh from the backends (spec §4.7, invariant
// 3 of spec §3).
func (e *Engine) recordState(ctx context.Context, srcPath, dstPath string) error {
	srcMtime, err := e.Src.GetMtime(ctx, srcPath)
	if err != nil {
		return err
	}
	dstMtime, err := e.Dst.GetMtime(ctx, dstPath)
	if err != nil {
		return err
	}
	if srcMtime == nil || dstMtime == nil {
		return dverr.New(dverr.Unknown, "mtime missing immediately after copy: "+srcPath+" / "+dstPath)
	}
	return e.DB.Set(ctx, e.DstUID, dstPath, kv.FormatInt64(*srcMtime), kv.FormatInt64(*dstMtime))
}

// relIndex maps every metadata's path, relative to root, to itself.
func relIndex(root string, metas []user.Metadata) map[string]user.Metadata {
	out := make(map[string]user.Metadata, len(metas))
	for _, m := range metas {
		out[relPath(root, m.Path)] = m
	}
	return out
}

func relPath(root, full string) string {
	rel := strings.TrimPrefix(full, root)
	return strings.TrimPrefix(rel, "/")
}

func joinRel(root, rel string) string {
	if rel == "" {
		return root
	}
	return path.Join(root, rel)
}

// unionSortedKeys returns the union of both maps' keys, sorted by raw byte
// value (spec §9: sorted merge must not locale-sort).
func unionSortedKeys(a, b map[string]user.Metadata) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var keys []string
	for k := range a {
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	for k := range b {
		if _, ok := seen[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
