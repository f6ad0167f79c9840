// Package dlcache implements the conditional-GET download cache spec §4.8
// and §6 describe: one file per URL under cache_dir, named by the
// URL-safe, unpadded base64 of the URL itself, with a companion KV row
// holding (fetch-unix-time, ETag).
//
// Grounded on dv-wrap/src/ops/dl.rs (original_source) for the conditional-
// GET flow and rclone's fs/fshttp idiom of wrapping net/http with a small
// retry/etag-aware client (fshttp.go's NewClient).
package dlcache

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/km0e/dv/internal/dverr"
	"github.com/km0e/dv/internal/dvlog"
	"github.com/km0e/dv/internal/kv"
)

// HTTPDoer is the narrow http.Client surface Cache needs; satisfied by
// *http.Client, and fakeable in tests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Cache is one download cache: a directory on the local filesystem plus a
// KV store for etags, one row per URL with the encoded URL as the device
// and "" as the key (spec §6: "companion KV row with the same string as
// the device field (keyed by "")").
type Cache struct {
	Dir    string
	DB     kv.DB
	Client HTTPDoer
	Now    func() time.Time
}

// New builds a Cache rooted at dir, using http.DefaultClient and time.Now
// unless overridden.
func New(dir string, db kv.DB) *Cache {
	return &Cache{Dir: dir, DB: db, Client: http.DefaultClient, Now: time.Now}
}

func encodeName(url string) string {
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(url))
}

// Dl fetches url if the cached copy is stale, returning the local file
// path either way. When ttl is non-nil and the cached fetch time is within
// ttl of now, no network request is issued at all (spec §8 property 5).
// A 304 response leaves the cached file untouched; a successful 2xx
// (re)writes it and records the new ETag.
func (c *Cache) Dl(ctx context.Context, url string, ttl *time.Duration) (string, error) {
	name := encodeName(url)
	path := filepath.Join(c.Dir, name)

	version, etag, found, err := c.DB.Get(ctx, name, "")
	if err != nil {
		return "", err
	}

	now := c.Now()
	if found && ttl != nil {
		if fetchedAt, perr := strconv.ParseInt(version, 10, 64); perr == nil {
			if now.Unix()-fetchedAt < int64(*ttl/time.Second) {
				return path, nil
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", dverr.Wrap(dverr.HTTP, "build request for "+url, err)
	}
	req.Header.Set("User-Agent", "dv/0.1")
	if found && etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", dverr.Wrap(dverr.HTTP, "fetch "+url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		dvlog.Logf(name, "cached response for %s", url)
		return path, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if err := c.store(path, resp.Body); err != nil {
			return "", err
		}
		newEtag := resp.Header.Get("ETag")
		if err := c.DB.Set(ctx, name, "", strconv.FormatInt(now.Unix(), 10), newEtag); err != nil {
			return "", err
		}
		return path, nil
	default:
		return "", dverr.New(dverr.HTTP, "unexpected status fetching "+url+": "+resp.Status)
	}
}

func (c *Cache) store(path string, body io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if os.IsNotExist(err) {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return dverr.Wrap(dverr.IO, "create cache dir", mkErr)
		}
		f, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	}
	if err != nil {
		return dverr.Wrap(dverr.IO, "open cache file "+path, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, body); err != nil {
		return dverr.Wrap(dverr.IO, "write cache file "+path, err)
	}
	return nil
}
